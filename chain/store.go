package chain

import (
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	// counterSize is the width of the on-disk counter: one int32, little endian.
	counterSize = 4
	// NoSnapshots is the counter value of a chain that was never backed up.
	NoSnapshots = -1

	counterPerm  os.FileMode = 0o644
	snapshotPerm os.FileMode = 0o444
)

// Snapshot describes one historical version of a tracked file.
type Snapshot struct {
	Index   int
	Path    string
	Size    int64
	ModTime time.Time
	Missing bool // the counter claims this index but no file backs it
}

// Store owns the on-disk representation of version chains: counter records
// and snapshot files living next to the tracked file in the backing store.
// All paths handed to a Store are already resolved.
type Store struct {
	fs    afero.Fs
	locks *lockArena
}

// NewStore creates a Store on top of fs.
func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs, locks: newLockArena()}
}

// Fs returns the backing filesystem.
func (s *Store) Fs() afero.Fs { return s.fs }

// InitCounter creates the counter record of p with no snapshots.
func (s *Store) InitCounter(p string) error {
	cp := CounterPath(p)
	f, err := s.fs.OpenFile(cp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, counterPerm)
	if err != nil {
		return wrap("init counter", cp, err)
	}
	if err := writeCounterTo(f, NoSnapshots); err != nil {
		f.Close()
		return wrap("init counter", cp, err)
	}
	return wrap("init counter", cp, f.Close())
}

// ReadCounter returns the counter value of p. A missing record is reported
// as ErrNotFound, which callers treat as an untracked file.
func (s *Store) ReadCounter(p string) (int, error) {
	cp := CounterPath(p)
	f, err := s.fs.Open(cp)
	if err != nil {
		return 0, wrap("read counter", cp, err)
	}
	defer f.Close()

	var buf [counterSize]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = errors.WithMessagef(ErrBadCounter, "%d byte record", counterSize)
		}
		return 0, wrap("read counter", cp, err)
	}
	n := int(int32(binary.LittleEndian.Uint32(buf[:])))
	if n < NoSnapshots {
		return 0, wrap("read counter", cp, errors.WithMessagef(ErrBadCounter, "value %d", n))
	}
	return n, nil
}

// BumpCounter increments the counter of p by one and returns the new value.
// The read-increment-write holds p's lock.
func (s *Store) BumpCounter(p string) (int, error) {
	unlock := s.locks.lock(p)
	defer unlock()
	return s.bumpCounter(p)
}

// bumpCounter is BumpCounter for callers already holding p's lock.
func (s *Store) bumpCounter(p string) (int, error) {
	n, err := s.ReadCounter(p)
	if err != nil {
		return 0, err
	}
	n++
	if err := s.writeCounter(p, n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) writeCounter(p string, n int) error {
	cp := CounterPath(p)
	f, err := s.fs.OpenFile(cp, os.O_WRONLY, counterPerm)
	if err != nil {
		return wrap("write counter", cp, err)
	}
	if err := writeCounterTo(f, n); err != nil {
		f.Close()
		return wrap("write counter", cp, err)
	}
	return wrap("write counter", cp, f.Close())
}

func writeCounterTo(f afero.File, n int) error {
	var buf [counterSize]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(int32(n)))
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return err
	}
	if err := f.Truncate(counterSize); err != nil {
		return err
	}
	return f.Sync()
}

// WriteSnapshot creates snapshot index of p and fills it with everything
// src yields. An existing snapshot at index is never overwritten; that
// indicates the counter and the chain disagree and fails with ErrConflict.
func (s *Store) WriteSnapshot(p string, index int, src io.Reader) (int64, error) {
	sp := SnapshotPath(p, index)
	f, err := s.fs.OpenFile(sp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, snapshotPerm)
	if errors.Is(err, os.ErrExist) {
		return 0, &Error{Kind: KindConflict, Op: "write snapshot", Path: sp, Err: err}
	} else if err != nil {
		return 0, wrap("write snapshot", sp, err)
	}

	n, err := io.Copy(f, src)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// A half-copied pre-image must not pass for history.
		s.fs.Remove(sp)
		return 0, &Error{Kind: KindIOFailure, Op: "write snapshot", Path: sp, Err: err}
	}
	return n, nil
}

// OpenSnapshot opens snapshot index of p for reading.
func (s *Store) OpenSnapshot(p string, index int) (afero.File, error) {
	sp := SnapshotPath(p, index)
	f, err := s.fs.Open(sp)
	if err != nil {
		return nil, wrap("open snapshot", sp, err)
	}
	return f, nil
}

// Snapshots enumerates the chain of p from index 0 up to the counter.
func (s *Store) Snapshots(p string) ([]Snapshot, error) {
	n, err := s.ReadCounter(p)
	if err != nil {
		return nil, err
	}
	snaps := make([]Snapshot, 0, n+1)
	for i := 0; i <= n; i++ {
		sp := SnapshotPath(p, i)
		snap := Snapshot{Index: i, Path: sp}
		info, err := s.fs.Stat(sp)
		switch {
		case errors.Is(err, os.ErrNotExist):
			snap.Missing = true
		case err != nil:
			return nil, wrap("stat snapshot", sp, err)
		default:
			snap.Size = info.Size()
			snap.ModTime = info.ModTime()
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// DestroyChain removes every snapshot of p, newest first, and then the
// counter record. Snapshots already missing are skipped.
//
// It stops at the first failure, leaving the counter record in place so
// the remaining chain can still be found and repaired.
func (s *Store) DestroyChain(p string) error {
	n, err := s.ReadCounter(p)
	if err != nil {
		return err
	}
	for i := n; i >= 0; i-- {
		sp := SnapshotPath(p, i)
		if err := s.fs.Remove(sp); err != nil && !errors.Is(err, os.ErrNotExist) {
			return wrap("remove snapshot", sp, err)
		}
	}
	cp := CounterPath(p)
	return wrap("remove counter", cp, s.fs.Remove(cp))
}

// RenameChain moves the counter record and every snapshot of oldP to the
// same indices under newP.
func (s *Store) RenameChain(oldP, newP string) error {
	oldC, newC := CounterPath(oldP), CounterPath(newP)
	if err := s.fs.Rename(oldC, newC); err != nil {
		return wrap("rename counter", oldC, err)
	}
	n, err := s.ReadCounter(newP)
	if err != nil {
		return err
	}
	for i := 0; i <= n; i++ {
		from, to := SnapshotPath(oldP, i), SnapshotPath(newP, i)
		if err := s.fs.Rename(from, to); err != nil && !errors.Is(err, os.ErrNotExist) {
			return wrap("rename snapshot", from, err)
		}
	}
	return nil
}
