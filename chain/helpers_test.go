package chain

import (
	"io"
	"os"
	"sync"
	"syscall"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const testRoot = "/store"

func newTestVersioner(t *testing.T) (*Versioner, afero.Fs) {
	t.Helper()
	return newTestVersionerOn(t, afero.NewMemMapFs())
}

func newTestVersionerOn(t *testing.T, fs afero.Fs) (*Versioner, afero.Fs) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(testRoot, 0o755))
	v, err := New(testRoot, fs, WithLogger(log.New(io.Discard)))
	require.NoError(t, err)
	return v, fs
}

func readFile(t *testing.T, fs afero.Fs, p string) string {
	t.Helper()
	b, err := afero.ReadFile(fs, p)
	require.NoError(t, err)
	return string(b)
}

func exists(t *testing.T, fs afero.Fs, p string) bool {
	t.Helper()
	ok, err := afero.Exists(fs, p)
	require.NoError(t, err)
	return ok
}

func writeRaw(t *testing.T, fs afero.Fs, p string, data []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, p, data, 0o644))
}

// faultyFs fails Remove and Rename on chosen paths with EIO.
type faultyFs struct {
	afero.Fs

	mu         sync.Mutex
	failRemove map[string]bool
	failRename map[string]bool
	failOpen   map[string]bool
}

func newFaultyFs() *faultyFs {
	return &faultyFs{
		Fs:         afero.NewMemMapFs(),
		failRemove: make(map[string]bool),
		failRename: make(map[string]bool),
		failOpen:   make(map[string]bool),
	}
}

func (f *faultyFs) fails(set map[string]bool, p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return set[p]
}

func (f *faultyFs) Remove(name string) error {
	if f.fails(f.failRemove, name) {
		return &os.PathError{Op: "remove", Path: name, Err: syscall.EIO}
	}
	return f.Fs.Remove(name)
}

func (f *faultyFs) Rename(oldname, newname string) error {
	if f.fails(f.failRename, oldname) {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: syscall.EIO}
	}
	return f.Fs.Rename(oldname, newname)
}

func (f *faultyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if f.fails(f.failOpen, name) {
		return nil, &os.PathError{Op: "open", Path: name, Err: syscall.EIO}
	}
	return f.Fs.OpenFile(name, flag, perm)
}
