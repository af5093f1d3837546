package chain

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockReleasesEntries(t *testing.T) {
	a := newLockArena()
	unlock := a.lock("/store/a")
	assert.Equal(t, 1, a.held())
	unlock()
	assert.Equal(t, 0, a.held())
}

func TestLockIsExclusive(t *testing.T) {
	a := newLockArena()
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := a.lock("/store/same")
			defer unlock()
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, a.held())
}

// TestDistinctPathsDoNotBlock holds one path and expects another to be
// acquirable immediately, for many paths so that shard collisions occur.
func TestDistinctPathsDoNotBlock(t *testing.T) {
	a := newLockArena()
	unlock := a.lock("/store/held")
	defer unlock()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			a.lock(fmt.Sprintf("/store/other-%d", i))()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on an unrelated path blocked")
	}
}

// TestLockPairDeadlockFree runs opposing renames concurrently; unordered
// acquisition would deadlock.
func TestLockPairDeadlockFree(t *testing.T) {
	a := newLockArena()
	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				a.lockPair("/store/x", "/store/y")()
			}()
			go func() {
				defer wg.Done()
				a.lockPair("/store/y", "/store/x")()
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lockPair deadlocked - test timed out")
	}
	assert.Equal(t, 0, a.held())
}

func TestLockPairSamePath(t *testing.T) {
	a := newLockArena()
	done := make(chan struct{})
	go func() {
		a.lockPair("/store/x", "/store/x")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lockPair on one path deadlocked")
	}
}
