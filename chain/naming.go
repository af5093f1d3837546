package chain

import (
	"strconv"
	"strings"
)

const (
	// Separator joins a logical name to its artifact suffix.
	Separator = ","
	// CounterMarker is the suffix of a counter record.
	CounterMarker = "v"
)

// ArtifactKind distinguishes the two on-disk artifact types of a chain.
type ArtifactKind int

const (
	CounterArtifact ArtifactKind = iota + 1
	SnapshotArtifact
)

// Artifact is a parsed counter record or snapshot name.
type Artifact struct {
	Logical string // name of the tracked file the artifact belongs to
	Kind    ArtifactKind
	Index   int // snapshot index, -1 for counter records
}

// CounterPath returns the counter record path of the tracked file p.
func CounterPath(p string) string {
	return p + Separator + CounterMarker
}

// SnapshotPath returns the path of snapshot index of the tracked file p.
func SnapshotPath(p string, index int) string {
	return p + Separator + strconv.Itoa(index)
}

// ParseArtifact decides whether name (a base name or a full path) is a
// chain artifact. The suffix after the last separator must be exactly the
// counter marker or a run of ASCII digits, and the logical part must be
// non-empty.
func ParseArtifact(name string) (Artifact, bool) {
	i := strings.LastIndex(name, Separator)
	if i <= 0 || i == len(name)-1 {
		return Artifact{}, false
	}
	logical, suffix := name[:i], name[i+1:]
	if strings.HasSuffix(logical, "/") {
		return Artifact{}, false
	}
	if suffix == CounterMarker {
		return Artifact{Logical: logical, Kind: CounterArtifact, Index: -1}, true
	}
	for j := 0; j < len(suffix); j++ {
		if suffix[j] < '0' || suffix[j] > '9' {
			return Artifact{}, false
		}
	}
	index, err := strconv.Atoi(suffix)
	if err != nil {
		// overflowing digit runs are still artifacts, just unaddressable ones
		index = -1
	}
	return Artifact{Logical: logical, Kind: SnapshotArtifact, Index: index}, true
}

// IsArtifact reports whether name is a counter record or snapshot name.
func IsArtifact(name string) bool {
	_, ok := ParseArtifact(name)
	return ok
}
