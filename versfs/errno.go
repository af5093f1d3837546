package versfs

import (
	"io/fs"
	"syscall"

	"bazil.org/fuse"
	"github.com/dendrascience/versfs/chain"
	"github.com/pkg/errors"
)

// toErrno maps a chain or backing store error onto the errno the kernel
// sees. Errnos of the backing store pass through unchanged.
func toErrno(err error) fuse.Errno {
	switch {
	case errors.Is(err, chain.ErrReservedName), errors.Is(err, chain.ErrRelativePath):
		return fuse.Errno(syscall.EINVAL)
	}
	if kind, ok := chain.KindOf(err); ok {
		switch kind {
		case chain.KindNotFound:
			return fuse.Errno(syscall.ENOENT)
		case chain.KindAlreadyExists, chain.KindConflict:
			return fuse.Errno(syscall.EEXIST)
		case chain.KindInconsistent:
			return fuse.Errno(syscall.EIO)
		}
	}
	if errno, ok := chain.Errno(err); ok {
		return fuse.Errno(errno)
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fuse.Errno(syscall.ENOENT)
	case errors.Is(err, fs.ErrExist):
		return fuse.Errno(syscall.EEXIST)
	case errors.Is(err, fs.ErrPermission):
		return fuse.Errno(syscall.EACCES)
	}
	return fuse.Errno(syscall.EIO)
}
