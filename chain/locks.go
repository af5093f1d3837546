package chain

import (
	"sync"

	"github.com/taigrr/colorhash"
)

// lockShards is the number of independent maps the arena spreads paths
// across. It only bounds contention on map bookkeeping; every path still
// gets its own mutex.
const lockShards = 64

type pathLock struct {
	mu   sync.Mutex
	refs int
}

type lockShard struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

// lockArena hands out one exclusive lock per backing path. Entries are
// reference counted and dropped once nobody holds or waits on them.
type lockArena struct {
	shards [lockShards]lockShard
}

func newLockArena() *lockArena {
	a := &lockArena{}
	for i := range a.shards {
		a.shards[i].locks = make(map[string]*pathLock)
	}
	return a
}

func (a *lockArena) shard(p string) *lockShard {
	h := uint(colorhash.HashString(p))
	return &a.shards[h%lockShards]
}

// lock blocks until p is held and returns the matching unlock.
func (a *lockArena) lock(p string) (unlock func()) {
	s := a.shard(p)

	s.mu.Lock()
	l, ok := s.locks[p]
	if !ok {
		l = &pathLock{}
		s.locks[p] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, p)
		}
		s.mu.Unlock()
	}
}

// lockPair holds two paths at once, always acquiring them in lexical order.
func (a *lockArena) lockPair(p, q string) (unlock func()) {
	if p == q {
		return a.lock(p)
	}
	if q < p {
		p, q = q, p
	}
	first := a.lock(p)
	second := a.lock(q)
	return func() {
		second()
		first()
	}
}

// held reports the number of live entries; used by tests.
func (a *lockArena) held() int {
	n := 0
	for i := range a.shards {
		s := &a.shards[i]
		s.mu.Lock()
		n += len(s.locks)
		s.mu.Unlock()
	}
	return n
}
