package versfs

import (
	"context"
	"os"
	"path"
	"strings"
	"sync"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// pathNode is a Dir or File that can be re-keyed after a rename.
type pathNode interface {
	fs.Node
	base() *node
}

// node is the part of Dir and File that tracks the client path. The path
// changes when the node, or a directory above it, is renamed.
type node struct {
	fs  *FS
	dir bool

	mu   sync.RWMutex
	path string
}

func (n *node) base() *node { return n }

func (n *node) rel() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.path
}

func (n *node) setPath(p string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = p
}

func (n *node) child(name string) string {
	return path.Join(n.rel(), name)
}

// resolve returns the client path and the backing path of n.
func (n *node) resolve() (string, string, error) {
	rel := n.rel()
	p, err := n.fs.v.Resolve(rel)
	return rel, p, err
}

func lstat(afs afero.Fs, p string) (os.FileInfo, error) {
	if l, ok := afs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(p)
		return info, err
	}
	return afs.Stat(p)
}

// Attr returns the attributes of the backing file.
func (n *node) Attr(ctx context.Context, a *fuse.Attr) error {
	rel, p, err := n.resolve()
	if err != nil {
		return n.fs.fail("getattr", rel, err)
	}
	info, err := lstat(n.fs.v.Fs(), p)
	if err != nil {
		return n.fs.fail("getattr", rel, err)
	}
	fillAttr(info, a)
	return nil
}

func fillAttr(info os.FileInfo, a *fuse.Attr) {
	a.Mode = info.Mode()
	a.Size = uint64(info.Size())
	a.Mtime = info.ModTime()
	a.Atime = a.Mtime
	a.Ctime = a.Mtime
	a.Nlink = 1
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	a.Inode = st.Ino
	a.Nlink = uint32(st.Nlink)
	a.Uid = st.Uid
	a.Gid = st.Gid
	a.Rdev = uint32(st.Rdev)
	a.Blocks = uint64(st.Blocks)
	a.BlockSize = uint32(st.Blksize)
	a.Atime = time.Unix(st.Atim.Unix())
	a.Ctime = time.Unix(st.Ctim.Unix())
}

func direntType(m os.FileMode) fuse.DirentType {
	switch {
	case m.IsDir():
		return fuse.DT_Dir
	case m&os.ModeSymlink != 0:
		return fuse.DT_Link
	case m&os.ModeNamedPipe != 0:
		return fuse.DT_FIFO
	case m&os.ModeSocket != 0:
		return fuse.DT_Socket
	case m&os.ModeCharDevice != 0:
		return fuse.DT_Char
	case m&os.ModeDevice != 0:
		return fuse.DT_Block
	case m.IsRegular():
		return fuse.DT_File
	}
	return fuse.DT_Unknown
}

// setattr applies everything in req except a size change.
func (n *node) setattr(req *fuse.SetattrRequest) error {
	rel, p, err := n.resolve()
	if err != nil {
		return n.fs.fail("setattr", rel, err)
	}
	afs := n.fs.v.Fs()
	if req.Valid.Mode() {
		if err := afs.Chmod(p, req.Mode); err != nil {
			return n.fs.fail("chmod", rel, err)
		}
	}
	if req.Valid.Uid() || req.Valid.Gid() {
		uid, gid := -1, -1
		if req.Valid.Uid() {
			uid = int(req.Uid)
		}
		if req.Valid.Gid() {
			gid = int(req.Gid)
		}
		if err := afs.Chown(p, uid, gid); err != nil {
			return n.fs.fail("chown", rel, err)
		}
	}
	if req.Valid.Atime() || req.Valid.Mtime() || req.Valid.AtimeNow() || req.Valid.MtimeNow() {
		info, err := afs.Stat(p)
		if err != nil {
			return n.fs.fail("utimens", rel, err)
		}
		var cur fuse.Attr
		fillAttr(info, &cur)
		atime, mtime := cur.Atime, cur.Mtime
		now := time.Now()
		switch {
		case req.Valid.AtimeNow():
			atime = now
		case req.Valid.Atime():
			atime = req.Atime
		}
		switch {
		case req.Valid.MtimeNow():
			mtime = now
		case req.Valid.Mtime():
			mtime = req.Mtime
		}
		if err := afs.Chtimes(p, atime, mtime); err != nil {
			return n.fs.fail("utimens", rel, err)
		}
	}
	return nil
}

// Access checks req.Mask against the backing file.
func (n *node) Access(ctx context.Context, req *fuse.AccessRequest) error {
	rel, p, err := n.resolve()
	if err != nil {
		return n.fs.fail("access", rel, err)
	}
	if err := unix.Access(p, req.Mask); err != nil {
		return n.fs.fail("access", rel, err)
	}
	return nil
}

// Getxattr reads one extended attribute of the backing file.
func (n *node) Getxattr(ctx context.Context, req *fuse.GetxattrRequest, resp *fuse.GetxattrResponse) error {
	rel, p, err := n.resolve()
	if err != nil {
		return n.fs.fail("getxattr", rel, err)
	}
	size, err := unix.Lgetxattr(p, req.Name, nil)
	if err != nil {
		return xattrErr(n.fs.fail("getxattr", rel, err))
	}
	buf := make([]byte, size)
	size, err = unix.Lgetxattr(p, req.Name, buf)
	if err != nil {
		return xattrErr(n.fs.fail("getxattr", rel, err))
	}
	resp.Xattr = buf[:size]
	return nil
}

// Listxattr lists the extended attribute names of the backing file.
func (n *node) Listxattr(ctx context.Context, req *fuse.ListxattrRequest, resp *fuse.ListxattrResponse) error {
	rel, p, err := n.resolve()
	if err != nil {
		return n.fs.fail("listxattr", rel, err)
	}
	size, err := unix.Llistxattr(p, nil)
	if err != nil {
		return n.fs.fail("listxattr", rel, err)
	}
	buf := make([]byte, size)
	size, err = unix.Llistxattr(p, buf)
	if err != nil {
		return n.fs.fail("listxattr", rel, err)
	}
	for _, name := range strings.Split(string(buf[:size]), "\x00") {
		if name != "" {
			resp.Append(name)
		}
	}
	return nil
}

// Setxattr sets one extended attribute of the backing file.
func (n *node) Setxattr(ctx context.Context, req *fuse.SetxattrRequest) error {
	rel, p, err := n.resolve()
	if err != nil {
		return n.fs.fail("setxattr", rel, err)
	}
	if err := unix.Lsetxattr(p, req.Name, req.Xattr, int(req.Flags)); err != nil {
		return n.fs.fail("setxattr", rel, err)
	}
	return nil
}

// Removexattr removes one extended attribute of the backing file.
func (n *node) Removexattr(ctx context.Context, req *fuse.RemovexattrRequest) error {
	rel, p, err := n.resolve()
	if err != nil {
		return n.fs.fail("removexattr", rel, err)
	}
	if err := unix.Lremovexattr(p, req.Name); err != nil {
		return xattrErr(n.fs.fail("removexattr", rel, err))
	}
	return nil
}

func xattrErr(err error) error {
	if err == fuse.Errno(unix.ENODATA) {
		return fuse.ErrNoXattr
	}
	return err
}

// Forget drops the node from the registry once the kernel lets go of it.
func (n *node) Forget() {
	n.fs.forget(n)
}
