package versfs

import (
	"context"
	"io"
	"os"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/spf13/afero"
)

// File implements Node for files, symlinks and special files. Open
// returns a separate Handle.
type File struct {
	node
}

// Setattr truncates through the Versioner, so the old content is
// snapshotted first, then applies the remaining attributes.
func (f *File) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() {
		rel := f.rel()
		if err := f.fs.v.Truncate(rel, int64(req.Size)); err != nil {
			return f.fs.fail("truncate", rel, err)
		}
	}
	return f.setattr(req)
}

// Readlink returns the target of a symbolic link.
func (f *File) Readlink(ctx context.Context, req *fuse.ReadlinkRequest) (string, error) {
	rel, p, err := f.resolve()
	if err != nil {
		return "", f.fs.fail("readlink", rel, err)
	}
	reader, ok := f.fs.v.Fs().(afero.LinkReader)
	if !ok {
		return "", syscall.ENOSYS
	}
	target, err := reader.ReadlinkIfPossible(p)
	if err != nil {
		return "", f.fs.fail("readlink", rel, err)
	}
	return target, nil
}

// Open opens the file. O_TRUNC is applied through the Versioner.
func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	if req.Flags&fuse.OpenTruncate != 0 && !req.Flags.IsReadOnly() {
		rel := f.rel()
		if err := f.fs.v.Truncate(rel, 0); err != nil {
			return nil, f.fs.fail("open", rel, err)
		}
	}
	return f.open(req.Flags)
}

// open returns a handle for flags. Writes never go through the handle's
// descriptor, so write-only handles hold none.
func (f *File) open(flags fuse.OpenFlags) (*Handle, error) {
	h := &Handle{file: f}
	if flags.IsWriteOnly() {
		return h, nil
	}
	rel, p, err := f.resolve()
	if err != nil {
		return nil, f.fs.fail("open", rel, err)
	}
	r, err := f.fs.v.Fs().OpenFile(p, os.O_RDONLY, 0)
	if err != nil {
		return nil, f.fs.fail("open", rel, err)
	}
	h.r = r
	return h, nil
}

// Fsync flushes the backing file to stable storage.
func (f *File) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	rel, p, err := f.resolve()
	if err != nil {
		return f.fs.fail("fsync", rel, err)
	}
	fh, err := f.fs.v.Fs().OpenFile(p, os.O_RDONLY, 0)
	if err != nil {
		return f.fs.fail("fsync", rel, err)
	}
	err = fh.Sync()
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return f.fs.fail("fsync", rel, err)
	}
	return nil
}

// Handle is an open file. Reads use the descriptor opened with it; writes
// go through the Versioner by path so every one is preceded by a backup.
type Handle struct {
	file *File
	r    afero.File // nil for write-only handles
}

// Read reads at the requested offset.
func (h *Handle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	if h.r == nil {
		return syscall.EBADF
	}
	buf := make([]byte, req.Size)
	n, err := h.r.ReadAt(buf, req.Offset)
	if err != nil && err != io.EOF {
		return h.file.fs.fail("read", h.file.rel(), err)
	}
	resp.Data = buf[:n]
	return nil
}

// Write snapshots the file and then writes at the requested offset.
func (h *Handle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	rel := h.file.rel()
	n, err := h.file.fs.v.Write(rel, req.Data, req.Offset)
	resp.Size = n
	if err != nil {
		return h.file.fs.fail("write", rel, err)
	}
	return nil
}

// Flush is a no-op; writes reach the backing file before Write returns.
func (h *Handle) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	return nil
}

// Release closes the read descriptor.
func (h *Handle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	if h.r == nil {
		return nil
	}
	if err := h.r.Close(); err != nil {
		return h.file.fs.fail("release", h.file.rel(), err)
	}
	return nil
}
