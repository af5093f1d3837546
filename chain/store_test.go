package chain

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(testRoot, 0o755))
	return NewStore(fs), fs
}

func TestInitAndReadCounter(t *testing.T) {
	s, fs := newTestStore(t)
	p := testRoot + "/a.txt"

	_, err := s.ReadCounter(p)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	require.NoError(t, s.InitCounter(p))
	n, err := s.ReadCounter(p)
	require.NoError(t, err)
	assert.Equal(t, NoSnapshots, n)

	raw, err := afero.ReadFile(fs, CounterPath(p))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, raw)

	err = s.InitCounter(p)
	assert.True(t, errors.Is(err, ErrAlreadyExists), "got %v", err)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindAlreadyExists, kind)
}

func TestReadCounterMalformed(t *testing.T) {
	s, fs := newTestStore(t)
	p := testRoot + "/a.txt"

	writeRaw(t, fs, CounterPath(p), []byte{0x01, 0x00})
	_, err := s.ReadCounter(p)
	assert.True(t, errors.Is(err, ErrBadCounter), "got %v", err)
	assert.True(t, errors.Is(err, ErrIOFailure), "got %v", err)

	writeRaw(t, fs, CounterPath(p), []byte{0xfe, 0xff, 0xff, 0xff})
	_, err = s.ReadCounter(p)
	assert.True(t, errors.Is(err, ErrBadCounter), "got %v", err)
}

func TestBumpCounter(t *testing.T) {
	s, fs := newTestStore(t)
	p := testRoot + "/a.txt"

	_, err := s.BumpCounter(p)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.InitCounter(p))
	for want := 0; want < 300; want++ {
		got, err := s.BumpCounter(p)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	raw, err := afero.ReadFile(fs, CounterPath(p))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2b, 0x01, 0x00, 0x00}, raw)
	assert.Zero(t, s.locks.held())
}

func TestWriteSnapshot(t *testing.T) {
	s, fs := newTestStore(t)
	p := testRoot + "/a.txt"

	n, err := s.WriteSnapshot(p, 0, strings.NewReader("pre-image"))
	require.NoError(t, err)
	assert.EqualValues(t, len("pre-image"), n)
	assert.Equal(t, "pre-image", readFile(t, fs, SnapshotPath(p, 0)))

	_, err = s.WriteSnapshot(p, 0, strings.NewReader("other"))
	assert.True(t, errors.Is(err, ErrConflict), "got %v", err)
	assert.Equal(t, "pre-image", readFile(t, fs, SnapshotPath(p, 0)), "history must not be overwritten")

	big := bytes.Repeat([]byte("0123456789"), 100000)
	_, err = s.WriteSnapshot(p, 1, bytes.NewReader(big))
	require.NoError(t, err)
	assert.Equal(t, string(big), readFile(t, fs, SnapshotPath(p, 1)))
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriteSnapshotFailedCopyLeavesNothing(t *testing.T) {
	s, fs := newTestStore(t)
	p := testRoot + "/a.txt"

	_, err := s.WriteSnapshot(p, 0, io.MultiReader(strings.NewReader("part"), brokenReader{}))
	assert.True(t, errors.Is(err, ErrIOFailure), "got %v", err)
	assert.False(t, exists(t, fs, SnapshotPath(p, 0)))
}

func TestSnapshots(t *testing.T) {
	s, fs := newTestStore(t)
	p := testRoot + "/a.txt"

	require.NoError(t, s.InitCounter(p))
	snaps, err := s.Snapshots(p)
	require.NoError(t, err)
	assert.Empty(t, snaps)

	for i, content := range []string{"", "one", "three"} {
		idx, err := s.BumpCounter(p)
		require.NoError(t, err)
		require.Equal(t, i, idx)
		_, err = s.WriteSnapshot(p, idx, strings.NewReader(content))
		require.NoError(t, err)
	}
	require.NoError(t, fs.Remove(SnapshotPath(p, 1)))

	snaps, err = s.Snapshots(p)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.EqualValues(t, 0, snaps[0].Size)
	assert.True(t, snaps[1].Missing)
	assert.EqualValues(t, 5, snaps[2].Size)
	assert.Equal(t, SnapshotPath(p, 2), snaps[2].Path)

	f, err := s.OpenSnapshot(p, 2)
	require.NoError(t, err)
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "three", string(b))

	_, err = s.OpenSnapshot(p, 7)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func seedChain(t *testing.T, s *Store, p string, n int) {
	t.Helper()
	require.NoError(t, s.InitCounter(p))
	for i := 0; i < n; i++ {
		idx, err := s.BumpCounter(p)
		require.NoError(t, err)
		_, err = s.WriteSnapshot(p, idx, strings.NewReader(p+"@"+string(rune('a'+i%26))))
		require.NoError(t, err)
	}
}

func TestDestroyChain(t *testing.T) {
	s, fs := newTestStore(t)
	p := testRoot + "/a.txt"
	seedChain(t, s, p, 12)

	require.NoError(t, s.DestroyChain(p))
	assert.False(t, exists(t, fs, CounterPath(p)))
	for i := 0; i < 12; i++ {
		assert.False(t, exists(t, fs, SnapshotPath(p, i)))
	}

	err := s.DestroyChain(p)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDestroyChainStopsAndKeepsCounter(t *testing.T) {
	ffs := newFaultyFs()
	require.NoError(t, ffs.MkdirAll(testRoot, 0o755))
	s := NewStore(ffs)
	p := testRoot + "/a.txt"
	seedChain(t, s, p, 4)
	ffs.failRemove[SnapshotPath(p, 1)] = true

	err := s.DestroyChain(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIOFailure))

	// newest first: 3 and 2 went, 1 failed, 0 and the counter remain
	assert.False(t, exists(t, ffs, SnapshotPath(p, 3)))
	assert.False(t, exists(t, ffs, SnapshotPath(p, 2)))
	assert.True(t, exists(t, ffs, SnapshotPath(p, 1)))
	assert.True(t, exists(t, ffs, SnapshotPath(p, 0)))
	assert.True(t, exists(t, ffs, CounterPath(p)))
}

func TestRenameChain(t *testing.T) {
	s, fs := newTestStore(t)
	oldP, newP := testRoot+"/a.txt", testRoot+"/b.txt"
	seedChain(t, s, oldP, 11)

	want := make([]string, 11)
	for i := range want {
		want[i] = readFile(t, fs, SnapshotPath(oldP, i))
	}

	require.NoError(t, s.RenameChain(oldP, newP))

	n, err := s.ReadCounter(newP)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.False(t, exists(t, fs, CounterPath(oldP)))
	for i := range want {
		assert.False(t, exists(t, fs, SnapshotPath(oldP, i)))
		assert.Equal(t, want[i], readFile(t, fs, SnapshotPath(newP, i)))
	}
}

func TestRenameChainUntracked(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.RenameChain(testRoot+"/a", testRoot+"/b")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestChainOpsSkipMissingSnapshots(t *testing.T) {
	s, fs := newTestStore(t)
	p := testRoot + "/a.txt"
	seedChain(t, s, p, 4)
	require.NoError(t, fs.Remove(SnapshotPath(p, 2)))

	q := testRoot + "/b.txt"
	require.NoError(t, s.RenameChain(p, q))
	assert.True(t, exists(t, fs, SnapshotPath(q, 3)))
	assert.False(t, exists(t, fs, SnapshotPath(q, 2)))

	require.NoError(t, s.DestroyChain(q))
	assert.False(t, exists(t, fs, CounterPath(q)))
	assert.False(t, exists(t, fs, SnapshotPath(q, 0)))
}
