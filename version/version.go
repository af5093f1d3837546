package version

import (
	"fmt"
	"io"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/dendrascience/versfs/version.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the resolved build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"goVersion"`
}

// Get resolves build metadata. Values injected at link time win; the
// module's build info fills in the rest.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		if info.Version == "dev" {
			info.Version = "development"
		}
		return info
	}
	info.GoVersion = bi.GoVersion
	if info.Version == "dev" || info.Version == "" {
		info.Version = "development"
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			info.Version = v
		}
	}
	vcs := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		vcs[s.Key] = s.Value
	}
	if info.Commit == "unknown" || info.Commit == "" {
		if rev, ok := vcs["vcs.revision"]; ok {
			info.Commit = rev
			if vcs["vcs.modified"] == "true" {
				info.Commit += "-dirty"
			}
		}
	}
	if info.Date == "unknown" || info.Date == "" {
		if t, ok := vcs["vcs.time"]; ok {
			info.Date = t
		}
	}
	return info
}

// String formats the version with a short commit and the build date.
func (i Info) String() string {
	if i.Commit == "unknown" || len(i.Commit) <= 7 {
		return i.Version
	}
	if i.Date == "unknown" {
		return fmt.Sprintf("%s (%s)", i.Version, i.Commit[:7])
	}
	return fmt.Sprintf("%s (%s, built %s)", i.Version, i.Commit[:7], i.Date)
}

// Fprint writes the full build metadata for appName to w.
func (i Info) Fprint(w io.Writer, appName string) {
	fmt.Fprintf(w, "%s version %s\n", appName, i)
	fmt.Fprintf(w, "Commit: %s\n", i.Commit)
	fmt.Fprintf(w, "Build Date: %s\n", i.Date)
	if i.GoVersion != "" {
		fmt.Fprintf(w, "Go: %s\n", i.GoVersion)
	}
}
