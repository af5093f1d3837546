package chain

import "os"

// FilterEntries drops chain artifacts from a directory listing, preserving
// order.
func FilterEntries(infos []os.FileInfo) []os.FileInfo {
	out := make([]os.FileInfo, 0, len(infos))
	for _, info := range infos {
		if !IsArtifact(info.Name()) {
			out = append(out, info)
		}
	}
	return out
}
