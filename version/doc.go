// Package version reports the build metadata of versfs.
//
// Version, Commit and Date can be injected at link time:
//
//	-ldflags "-X github.com/dendrascience/versfs/version.Version=v1.0.0 -X github.com/dendrascience/versfs/version.Commit=abc1234"
//
// Anything left unset is read from the module build info, falling back to
// "development" and "unknown".
package version
