package chain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ProblemKind classifies a chain that breaks the counter/snapshot invariant.
type ProblemKind int

const (
	// MissingCounter: a regular file without a counter record.
	MissingCounter ProblemKind = iota
	// BadCounter: a counter record that cannot be decoded.
	BadCounter
	// Gap: the counter claims an index that has no snapshot.
	Gap
	// Stale: a snapshot above the counter value.
	Stale
	// Orphan: artifacts whose tracked file no longer exists.
	Orphan
)

var problemKindNames = map[ProblemKind]string{
	MissingCounter: "missing counter",
	BadCounter:     "bad counter",
	Gap:            "gap",
	Stale:          "stale snapshot",
	Orphan:         "orphan chain",
}

func (k ProblemKind) String() string {
	if name, ok := problemKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Problem is one inconsistency found by Check.
type Problem struct {
	Path     string // client path of the tracked file
	Kind     ProblemKind
	Detail   string
	Repaired bool
}

// chainScan is what one directory listing says about one logical name.
type chainScan struct {
	file      bool
	counter   bool
	snapshots []int
	unindexed []string // digit suffixes too large to address
}

// Check walks the whole storage root looking for chains that break the
// counter invariant. With repair set, orphan chains are deleted and every
// other broken chain is compacted: its snapshots are renumbered 0..k-1 in
// their original order and the counter record is rewritten to k-1.
func (v *Versioner) Check(repair bool) ([]Problem, error) {
	var problems []Problem
	root := v.resolver.Root()
	err := afero.Walk(v.Fs(), root, func(dir string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		found, err := v.checkDir(dir, repair)
		problems = append(problems, found...)
		return err
	})
	if err != nil {
		return problems, wrap("check", root, err)
	}
	return problems, nil
}

func (v *Versioner) checkDir(dir string, repair bool) ([]Problem, error) {
	infos, err := afero.ReadDir(v.Fs(), dir)
	if err != nil {
		return nil, err
	}
	scans := make(map[string]*chainScan)
	get := func(name string) *chainScan {
		s, ok := scans[name]
		if !ok {
			s = &chainScan{}
			scans[name] = s
		}
		return s
	}
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		a, ok := ParseArtifact(info.Name())
		switch {
		case !ok:
			if info.Mode().IsRegular() {
				get(info.Name()).file = true
			}
		case a.Kind == CounterArtifact:
			get(a.Logical).counter = true
		case a.Index < 0:
			s := get(a.Logical)
			s.unindexed = append(s.unindexed, info.Name())
		default:
			s := get(a.Logical)
			s.snapshots = append(s.snapshots, a.Index)
		}
	}

	names := make([]string, 0, len(scans))
	for name := range scans {
		names = append(names, name)
	}
	sort.Strings(names)

	var problems []Problem
	for _, name := range names {
		found, err := v.checkChain(filepath.Join(dir, name), scans[name], repair)
		problems = append(problems, found...)
		if err != nil {
			return problems, err
		}
	}
	return problems, nil
}

func (v *Versioner) checkChain(p string, s *chainScan, repair bool) ([]Problem, error) {
	rel, err := v.resolver.Relative(p)
	if err != nil {
		return nil, err
	}
	unlock := v.store.locks.lock(p)
	defer unlock()

	sort.Ints(s.snapshots)
	if !s.file {
		if !s.counter && len(s.snapshots) == 0 && len(s.unindexed) == 0 {
			return nil, nil
		}
		pr := Problem{Path: rel, Kind: Orphan,
			Detail: fmt.Sprintf("%d snapshots, counter record %t", len(s.snapshots)+len(s.unindexed), s.counter)}
		if repair {
			if err := v.removeOrphan(p, s); err != nil {
				return []Problem{pr}, err
			}
			pr.Repaired = true
		}
		return []Problem{pr}, nil
	}

	var problems []Problem
	var counter int
	if !s.counter {
		problems = append(problems, Problem{Path: rel, Kind: MissingCounter,
			Detail: fmt.Sprintf("%d snapshots on disk", len(s.snapshots))})
	} else if counter, err = v.store.ReadCounter(p); errors.Is(err, ErrBadCounter) {
		problems = append(problems, Problem{Path: rel, Kind: BadCounter, Detail: err.Error()})
	} else if err != nil {
		return nil, err
	} else {
		have := make(map[int]bool, len(s.snapshots))
		for _, i := range s.snapshots {
			have[i] = true
			if i > counter {
				problems = append(problems, Problem{Path: rel, Kind: Stale,
					Detail: fmt.Sprintf("index %d above counter %d", i, counter)})
			}
		}
		for i := 0; i <= counter; i++ {
			if !have[i] {
				problems = append(problems, Problem{Path: rel, Kind: Gap,
					Detail: fmt.Sprintf("index %d of %d missing", i, counter)})
			}
		}
	}
	for _, name := range s.unindexed {
		problems = append(problems, Problem{Path: rel, Kind: Stale,
			Detail: fmt.Sprintf("%s has an index too large to address", name)})
	}

	if len(problems) == 0 || !repair {
		return problems, nil
	}
	if err := v.compact(p, s); err != nil {
		return problems, err
	}
	for i := range problems {
		problems[i].Repaired = true
	}
	return problems, nil
}

func (v *Versioner) removeOrphan(p string, s *chainScan) error {
	dir := filepath.Dir(p)
	for _, i := range s.snapshots {
		if err := v.Fs().Remove(SnapshotPath(p, i)); err != nil {
			return wrap("remove orphan", SnapshotPath(p, i), err)
		}
	}
	for _, name := range s.unindexed {
		if err := v.Fs().Remove(filepath.Join(dir, name)); err != nil {
			return wrap("remove orphan", name, err)
		}
	}
	if s.counter {
		return wrap("remove orphan", CounterPath(p), v.Fs().Remove(CounterPath(p)))
	}
	return nil
}

// compact renumbers the snapshots of p into 0..k-1, keeping their order,
// and rewrites the counter to k-1. Unaddressable snapshots are dropped.
func (v *Versioner) compact(p string, s *chainScan) error {
	dir := filepath.Dir(p)
	for _, name := range s.unindexed {
		if err := v.Fs().Remove(filepath.Join(dir, name)); err != nil {
			return wrap("compact", name, err)
		}
	}
	// s.snapshots is ascending and every target index is <= its source, so
	// moving in ascending order never lands on a snapshot not yet moved.
	for next, i := range s.snapshots {
		if i == next {
			continue
		}
		if err := v.Fs().Rename(SnapshotPath(p, i), SnapshotPath(p, next)); err != nil {
			return wrap("compact", SnapshotPath(p, i), err)
		}
	}
	if !s.counter {
		if err := v.store.InitCounter(p); err != nil {
			return err
		}
	}
	return v.store.writeCounter(p, len(s.snapshots)-1)
}
