// Package versfs implements the FUSE side of the versioning filesystem.
//
// Every request the kernel sends is translated into a call on a
// chain.Versioner or passed straight to the backing directory. Requests
// that change file content go through the Versioner, so the content a
// write or truncate replaces is first kept as the next snapshot.
//
// Key Components:
//   - FS: the filesystem root, statfs, and the registry of live nodes
//   - Dir: lookup, listing, create, mkdir, mknod, remove, rename, links
//   - File: attributes, truncation, readlink, fsync, and Open
//   - Handle: positioned reads and versioned writes on an open file
//
// Chain artifacts ("name,v" and "name,N") are never visible through the
// mount: listings leave them out and lookups report them as missing.
//
// Failures are reported to the kernel as errnos. Missing files become
// ENOENT, existing files and occupied snapshot slots EEXIST, chains left
// out of step with their file EIO, and backing store errnos are passed on
// unchanged.
//
// The main entry point is New() which wraps a chain.Versioner in an FS
// that can be mounted using the bazil.org/fuse library.
package versfs
