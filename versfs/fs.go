package versfs

import (
	"context"
	"os"
	"strings"
	"sync"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/charmbracelet/log"
	"github.com/dendrascience/versfs/chain"
	"golang.org/x/sys/unix"
)

// FS implements the versfs FUSE filesystem on top of a Versioner.
type FS struct {
	v      *chain.Versioner
	logger *log.Logger

	mu    sync.Mutex
	nodes map[string]pathNode // live nodes by client path
}

// Option configures an FS.
type Option func(*FS)

// WithLogger sets the logger failed requests are reported to.
func WithLogger(l *log.Logger) Option {
	return func(f *FS) {
		f.logger = l
	}
}

// New creates a filesystem serving the storage root of v.
func New(v *chain.Versioner, opts ...Option) *FS {
	f := &FS{
		v:      v,
		logger: log.Default(),
		nodes:  make(map[string]pathNode),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.nodes["/"] = &Dir{node: node{fs: f, path: "/", dir: true}}
	return f
}

// Versioner returns the Versioner behind the filesystem.
func (f *FS) Versioner() *chain.Versioner { return f.v }

// Root returns the root directory node
func (f *FS) Root() (fs.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodes["/"], nil
}

// Statfs reports the statistics of the filesystem holding the storage root.
func (f *FS) Statfs(ctx context.Context, req *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	var st unix.Statfs_t
	if err := unix.Statfs(f.v.Resolver().Root(), &st); err != nil {
		return f.fail("statfs", "/", err)
	}
	resp.Blocks = st.Blocks
	resp.Bfree = st.Bfree
	resp.Bavail = st.Bavail
	resp.Files = st.Files
	resp.Ffree = st.Ffree
	resp.Bsize = uint32(st.Bsize)
	resp.Namelen = uint32(st.Namelen)
	resp.Frsize = uint32(st.Frsize)
	return nil
}

// nodeFor returns the registered node for rel, creating one when there is
// none or when the registered one is of the wrong type.
func (f *FS) nodeFor(rel string, info os.FileInfo) pathNode {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nodes[rel]; ok && n.base().dir == info.IsDir() {
		return n
	}
	var n pathNode
	if info.IsDir() {
		n = &Dir{node: node{fs: f, path: rel, dir: true}}
	} else {
		n = &File{node: node{fs: f, path: rel}}
	}
	f.nodes[rel] = n
	return n
}

// moved re-keys every node at or below oldRel under newRel. A node that
// the rename replaced is dropped.
func (f *FS) moved(oldRel, newRel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for p := range f.nodes {
		if under(p, newRel) {
			delete(f.nodes, p)
		}
	}
	carried := make(map[string]pathNode)
	for p, n := range f.nodes {
		if !under(p, oldRel) {
			continue
		}
		np := newRel + strings.TrimPrefix(p, oldRel)
		delete(f.nodes, p)
		n.base().setPath(np)
		carried[np] = n
	}
	for p, n := range carried {
		f.nodes[p] = n
	}
}

// dropped forgets rel after it was unlinked.
func (f *FS) dropped(rel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.nodes, rel)
}

// forget drops n unless its path has since been taken by another node.
func (f *FS) forget(n *node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := n.rel()
	if cur, ok := f.nodes[p]; ok && cur.base() == n && p != "/" {
		delete(f.nodes, p)
	}
}

func (f *FS) registered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nodes)
}

// under reports whether p is root or lies beneath it.
func under(p, root string) bool {
	return p == root || strings.HasPrefix(p, root+"/")
}

// fail translates err for the kernel and logs it.
func (f *FS) fail(op, rel string, err error) error {
	errno := toErrno(err)
	f.logger.Debug("request failed", "op", op, "path", rel, "errno", errno, "err", err)
	return errno
}
