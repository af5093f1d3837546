package chain

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dendrascience/versfs/metrics"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Versioner keeps tracked files and their version chains in step. Every
// workflow holds the per-path lock of the files it touches for all of its
// steps; unrelated paths never wait on each other.
type Versioner struct {
	resolver Resolver
	store    *Store
	logger   *log.Logger
}

// Option configures a Versioner.
type Option func(*Versioner)

// WithLogger sets the logger degraded states are reported to.
func WithLogger(l *log.Logger) Option {
	return func(v *Versioner) {
		v.logger = l
	}
}

// New creates a Versioner over the storage root on fs.
func New(root string, fs afero.Fs, opts ...Option) (*Versioner, error) {
	r, err := NewResolver(root)
	if err != nil {
		return nil, err
	}
	v := &Versioner{
		resolver: r,
		store:    NewStore(fs),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Resolver returns the path resolver of the storage root.
func (v *Versioner) Resolver() Resolver { return v.resolver }

// Store returns the snapshot store.
func (v *Versioner) Store() *Store { return v.store }

// Fs returns the backing filesystem.
func (v *Versioner) Fs() afero.Fs { return v.store.fs }

// Resolve maps a client path to its backing path.
func (v *Versioner) Resolve(rel string) (string, error) {
	return v.resolver.Resolve(rel)
}

func checkName(op, rel string) error {
	if IsArtifact(filepath.Base(rel)) {
		return &Error{Kind: KindReservedName, Op: op, Path: rel}
	}
	return nil
}

// Create makes an empty tracked file with a fresh counter record. A chain
// left behind under the same name by an earlier file is destroyed first; if
// that fails the new file is removed again and ErrInconsistent is returned.
// If the counter record cannot be created the file is kept and stays
// untracked.
func (v *Versioner) Create(rel string, perm os.FileMode) error {
	if err := checkName("create", rel); err != nil {
		return err
	}
	p, err := v.resolver.Resolve(rel)
	if err != nil {
		return err
	}
	unlock := v.store.locks.lock(p)
	defer unlock()
	metrics.OpsTotal.WithLabelValues(metrics.OpCreate).Inc()

	f, err := v.Fs().OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return wrap("create", p, err)
	}
	if err := f.Close(); err != nil {
		return wrap("create", p, err)
	}
	err = v.store.InitCounter(p)
	if errors.Is(err, ErrAlreadyExists) {
		v.logger.Warn("discarding orphaned version chain", "path", rel)
		if derr := v.store.DestroyChain(p); derr != nil {
			metrics.ChainErrorsTotal.WithLabelValues(metrics.OpCreate).Inc()
			if rerr := v.Fs().Remove(p); rerr != nil {
				v.logger.Error("new file left on an orphaned chain", "path", rel, "err", rerr)
			}
			return inconsistent("create", p, derr)
		}
		err = v.store.InitCounter(p)
	}
	if err != nil {
		metrics.ChainErrorsTotal.WithLabelValues(metrics.OpCreate).Inc()
		v.logger.Warn("file created without version counter", "path", rel, "err", err)
	}
	return nil
}

// Tracked reports whether rel has a counter record.
func (v *Versioner) Tracked(rel string) (bool, error) {
	p, err := v.resolver.Resolve(rel)
	if err != nil {
		return false, err
	}
	unlock := v.store.locks.lock(p)
	defer unlock()
	_, err = v.store.ReadCounter(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	}
	return false, err
}

// Backup snapshots the current content of rel. tracked is false when the
// file has no counter record, in which case nothing is written.
func (v *Versioner) Backup(rel string) (index int, tracked bool, err error) {
	p, err := v.resolver.Resolve(rel)
	if err != nil {
		return NoSnapshots, false, err
	}
	unlock := v.store.locks.lock(p)
	defer unlock()
	return v.backup(rel, p)
}

// backup requires p's lock.
func (v *Versioner) backup(rel, p string) (int, bool, error) {
	src, err := v.Fs().Open(p)
	if err != nil {
		return NoSnapshots, false, wrap("backup", p, err)
	}
	defer src.Close()

	index, err := v.store.bumpCounter(p)
	if errors.Is(err, ErrNotFound) {
		metrics.BackupsSkippedTotal.Inc()
		v.logger.Debug("untracked file, backup skipped", "path", rel)
		return NoSnapshots, false, nil
	} else if err != nil {
		metrics.ChainErrorsTotal.WithLabelValues(metrics.OpBackup).Inc()
		return NoSnapshots, true, err
	}

	n, err := v.store.WriteSnapshot(p, index, src)
	if err != nil {
		metrics.ChainErrorsTotal.WithLabelValues(metrics.OpBackup).Inc()
		if rerr := v.store.writeCounter(p, index-1); rerr != nil {
			v.logger.Error("counter left ahead of its snapshots", "path", rel, "index", index, "err", rerr)
		}
		return NoSnapshots, true, err
	}
	metrics.SnapshotsTotal.Inc()
	metrics.SnapshotBytesTotal.Add(float64(n))
	v.logger.Debug("snapshot written", "path", rel, "index", index, "bytes", n)
	return index, true, nil
}

// Write captures the pre-image of rel as a new snapshot and then writes
// data at off. The file is left untouched if the snapshot fails.
func (v *Versioner) Write(rel string, data []byte, off int64) (int, error) {
	p, err := v.resolver.Resolve(rel)
	if err != nil {
		return 0, err
	}
	unlock := v.store.locks.lock(p)
	defer unlock()
	metrics.OpsTotal.WithLabelValues(metrics.OpWrite).Inc()

	if _, _, err := v.backup(rel, p); err != nil {
		return 0, err
	}
	f, err := v.Fs().OpenFile(p, os.O_WRONLY, 0)
	if err != nil {
		return 0, wrap("write", p, err)
	}
	n, err := f.WriteAt(data, off)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, wrap("write", p, err)
}

// Truncate captures the pre-image of rel and then sets its size.
func (v *Versioner) Truncate(rel string, size int64) error {
	p, err := v.resolver.Resolve(rel)
	if err != nil {
		return err
	}
	unlock := v.store.locks.lock(p)
	defer unlock()
	metrics.OpsTotal.WithLabelValues(metrics.OpTruncate).Inc()

	if _, _, err := v.backup(rel, p); err != nil {
		return err
	}
	f, err := v.Fs().OpenFile(p, os.O_WRONLY, 0)
	if err != nil {
		return wrap("truncate", p, err)
	}
	err = f.Truncate(size)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return wrap("truncate", p, err)
}

// Remove deletes the tracked file and then its whole chain. A chain failure
// after the file is gone is reported as ErrInconsistent; the file is not
// brought back.
func (v *Versioner) Remove(rel string) error {
	p, err := v.resolver.Resolve(rel)
	if err != nil {
		return err
	}
	unlock := v.store.locks.lock(p)
	defer unlock()
	metrics.OpsTotal.WithLabelValues(metrics.OpRemove).Inc()

	if err := v.Fs().Remove(p); err != nil {
		return wrap("remove", p, err)
	}
	if _, err := v.store.ReadCounter(p); errors.Is(err, ErrNotFound) {
		return nil
	}
	if err := v.store.DestroyChain(p); err != nil {
		metrics.ChainErrorsTotal.WithLabelValues(metrics.OpRemove).Inc()
		v.logger.Error("file removed but its chain was not", "path", rel, "err", err)
		return inconsistent("remove", p, err)
	}
	return nil
}

// Rename moves oldRel to newRel and carries its chain along, index for
// index. A chain left behind at the destination by a file the rename
// replaced is destroyed first. Chain failures after the file moved are
// reported as ErrInconsistent.
func (v *Versioner) Rename(oldRel, newRel string) error {
	if err := checkName("rename", newRel); err != nil {
		return err
	}
	op, err := v.resolver.Resolve(oldRel)
	if err != nil {
		return err
	}
	np, err := v.resolver.Resolve(newRel)
	if err != nil {
		return err
	}
	if op == np {
		return nil
	}
	unlock := v.store.locks.lockPair(op, np)
	defer unlock()
	metrics.OpsTotal.WithLabelValues(metrics.OpRename).Inc()

	_, err = v.store.ReadCounter(op)
	srcTracked := !errors.Is(err, ErrNotFound)
	_, err = v.store.ReadCounter(np)
	dstTracked := !errors.Is(err, ErrNotFound)

	if err := v.Fs().Rename(op, np); err != nil {
		return wrap("rename", op, err)
	}

	var first error
	if dstTracked {
		if err := v.store.DestroyChain(np); err != nil {
			first = err
		}
	}
	if srcTracked {
		if err := v.store.RenameChain(op, np); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		metrics.ChainErrorsTotal.WithLabelValues(metrics.OpRename).Inc()
		v.logger.Error("file renamed but its chain was not", "from", oldRel, "to", newRel, "err", first)
		return inconsistent("rename", op, first)
	}
	return nil
}

// ReadDir lists the directory rel with every chain artifact filtered out.
func (v *Versioner) ReadDir(rel string) ([]os.FileInfo, error) {
	p, err := v.resolver.Resolve(rel)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(v.Fs(), p)
	if err != nil {
		return nil, wrap("readdir", p, err)
	}
	return FilterEntries(infos), nil
}

// History lists the snapshots of rel, oldest first.
func (v *Versioner) History(rel string) ([]Snapshot, error) {
	p, err := v.resolver.Resolve(rel)
	if err != nil {
		return nil, err
	}
	unlock := v.store.locks.lock(p)
	defer unlock()
	return v.store.Snapshots(p)
}

// OpenSnapshot opens snapshot index of rel for reading.
func (v *Versioner) OpenSnapshot(rel string, index int) (afero.File, error) {
	p, err := v.resolver.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return v.store.OpenSnapshot(p, index)
}

// Restore replaces the content of rel with snapshot index. The content
// being replaced is itself backed up first, so a restore never loses
// history. Files without a counter record are refused with ErrNotFound.
func (v *Versioner) Restore(rel string, index int) error {
	p, err := v.resolver.Resolve(rel)
	if err != nil {
		return err
	}
	unlock := v.store.locks.lock(p)
	defer unlock()
	metrics.OpsTotal.WithLabelValues(metrics.OpRestore).Inc()

	if _, err := v.store.ReadCounter(p); err != nil {
		return err
	}
	snap, err := v.store.OpenSnapshot(p, index)
	if err != nil {
		return err
	}
	defer snap.Close()

	if _, _, err := v.backup(rel, p); err != nil {
		return err
	}
	f, err := v.Fs().OpenFile(p, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return wrap("restore", p, err)
	}
	_, err = io.Copy(f, snap)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return wrap("restore", p, err)
}
