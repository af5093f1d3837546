package versfs

import (
	"context"
	"os"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/dendrascience/versfs/chain"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// Dir implements both Node and Handle for directories
type Dir struct {
	node
}

// Setattr changes mode, ownership or times of the directory.
func (d *Dir) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	return d.setattr(req)
}

// lookupChild stats the child rel and returns its node.
func (d *Dir) lookupChild(op, rel string) (fs.Node, error) {
	p, err := d.fs.v.Resolve(rel)
	if err != nil {
		return nil, d.fs.fail(op, rel, err)
	}
	info, err := lstat(d.fs.v.Fs(), p)
	if err != nil {
		return nil, d.fs.fail(op, rel, err)
	}
	return d.fs.nodeFor(rel, info), nil
}

// Lookup resolves a name to a node. Chain artifacts do not exist as far
// as clients are concerned.
func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	if chain.IsArtifact(name) {
		return nil, syscall.ENOENT
	}
	return d.lookupChild("lookup", d.child(name))
}

// ReadDirAll lists directory contents
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	rel := d.rel()
	infos, err := d.fs.v.ReadDir(rel)
	if err != nil {
		return nil, d.fs.fail("readdir", rel, err)
	}
	dirents := make([]fuse.Dirent, 0, len(infos))
	for _, info := range infos {
		de := fuse.Dirent{
			Name: info.Name(),
			Type: direntType(info.Mode()),
		}
		if st, ok := info.Sys().(*syscall.Stat_t); ok {
			de.Inode = st.Ino
		}
		dirents = append(dirents, de)
	}
	return dirents, nil
}

// Create creates a new tracked file and opens it
func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	rel := d.child(req.Name)
	if err := d.fs.v.Create(rel, req.Mode.Perm()); err != nil {
		return nil, nil, d.fs.fail("create", rel, err)
	}
	n, err := d.lookupChild("create", rel)
	if err != nil {
		return nil, nil, err
	}
	f, ok := n.(*File)
	if !ok {
		return nil, nil, syscall.EISDIR
	}
	h, err := f.open(req.Flags &^ fuse.OpenTruncate)
	if err != nil {
		return nil, nil, err
	}
	return f, h, nil
}

// Mknod creates regular files as tracked files and passes every other
// node type to the backing filesystem.
func (d *Dir) Mknod(ctx context.Context, req *fuse.MknodRequest) (fs.Node, error) {
	rel := d.child(req.Name)
	if req.Mode.IsRegular() {
		if err := d.fs.v.Create(rel, req.Mode.Perm()); err != nil {
			return nil, d.fs.fail("mknod", rel, err)
		}
		return d.lookupChild("mknod", rel)
	}
	if chain.IsArtifact(req.Name) {
		return nil, syscall.EINVAL
	}
	p, err := d.fs.v.Resolve(rel)
	if err != nil {
		return nil, d.fs.fail("mknod", rel, err)
	}
	if err := unix.Mknod(p, unixMode(req.Mode), int(req.Rdev)); err != nil {
		return nil, d.fs.fail("mknod", rel, err)
	}
	return d.lookupChild("mknod", rel)
}

func unixMode(m os.FileMode) uint32 {
	mode := uint32(m.Perm())
	switch {
	case m&os.ModeNamedPipe != 0:
		mode |= unix.S_IFIFO
	case m&os.ModeSocket != 0:
		mode |= unix.S_IFSOCK
	case m&os.ModeCharDevice != 0:
		mode |= unix.S_IFCHR
	case m&os.ModeDevice != 0:
		mode |= unix.S_IFBLK
	default:
		mode |= unix.S_IFREG
	}
	if m&os.ModeSetuid != 0 {
		mode |= unix.S_ISUID
	}
	if m&os.ModeSetgid != 0 {
		mode |= unix.S_ISGID
	}
	if m&os.ModeSticky != 0 {
		mode |= unix.S_ISVTX
	}
	return mode
}

// Mkdir creates a new directory
func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	rel := d.child(req.Name)
	if chain.IsArtifact(req.Name) {
		return nil, syscall.EINVAL
	}
	p, err := d.fs.v.Resolve(rel)
	if err != nil {
		return nil, d.fs.fail("mkdir", rel, err)
	}
	if err := d.fs.v.Fs().Mkdir(p, req.Mode.Perm()); err != nil {
		return nil, d.fs.fail("mkdir", rel, err)
	}
	return d.lookupChild("mkdir", rel)
}

// Remove unlinks a file together with its chain, or removes an empty
// directory.
func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	rel := d.child(req.Name)
	if chain.IsArtifact(req.Name) {
		return syscall.ENOENT
	}
	if req.Dir {
		p, err := d.fs.v.Resolve(rel)
		if err != nil {
			return d.fs.fail("rmdir", rel, err)
		}
		if err := d.fs.v.Fs().Remove(p); err != nil {
			return d.fs.fail("rmdir", rel, err)
		}
	} else if err := d.fs.v.Remove(rel); err != nil {
		if errors.Is(err, chain.ErrInconsistent) {
			d.fs.dropped(rel)
		}
		return d.fs.fail("unlink", rel, err)
	}
	d.fs.dropped(rel)
	return nil
}

// Rename moves a file and its chain, or a directory and everything in it.
func (d *Dir) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fs.Node) error {
	nd, ok := newDir.(*Dir)
	if !ok {
		return syscall.ENOTDIR
	}
	if chain.IsArtifact(req.OldName) {
		return syscall.ENOENT
	}
	oldRel, newRel := d.child(req.OldName), nd.child(req.NewName)
	err := d.fs.v.Rename(oldRel, newRel)
	if err == nil || errors.Is(err, chain.ErrInconsistent) {
		d.fs.moved(oldRel, newRel)
	}
	if err != nil {
		return d.fs.fail("rename", oldRel, err)
	}
	return nil
}

// Symlink creates an untracked symbolic link.
func (d *Dir) Symlink(ctx context.Context, req *fuse.SymlinkRequest) (fs.Node, error) {
	rel := d.child(req.NewName)
	if chain.IsArtifact(req.NewName) {
		return nil, syscall.EINVAL
	}
	linker, ok := d.fs.v.Fs().(afero.Linker)
	if !ok {
		return nil, syscall.ENOSYS
	}
	p, err := d.fs.v.Resolve(rel)
	if err != nil {
		return nil, d.fs.fail("symlink", rel, err)
	}
	if err := linker.SymlinkIfPossible(req.Target, p); err != nil {
		return nil, d.fs.fail("symlink", rel, err)
	}
	return d.lookupChild("symlink", rel)
}

// Link creates a hard link to an untracked file. Tracked files refuse
// with EPERM, since writes through a second name would bypass their chain.
func (d *Dir) Link(ctx context.Context, req *fuse.LinkRequest, old fs.Node) (fs.Node, error) {
	rel := d.child(req.NewName)
	if chain.IsArtifact(req.NewName) {
		return nil, syscall.EINVAL
	}
	src, ok := old.(pathNode)
	if !ok {
		return nil, syscall.EXDEV
	}
	oldRel, oldP, err := src.base().resolve()
	if err != nil {
		return nil, d.fs.fail("link", oldRel, err)
	}
	tracked, err := d.fs.v.Tracked(oldRel)
	if err != nil {
		return nil, d.fs.fail("link", oldRel, err)
	}
	if tracked {
		d.fs.logger.Debug("hard link to tracked file refused", "path", oldRel, "name", rel)
		return nil, syscall.EPERM
	}
	p, err := d.fs.v.Resolve(rel)
	if err != nil {
		return nil, d.fs.fail("link", rel, err)
	}
	if err := unix.Link(oldP, p); err != nil {
		return nil, d.fs.fail("link", rel, err)
	}
	return d.lookupChild("link", rel)
}
