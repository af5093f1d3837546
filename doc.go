// Package main provides the versfs command-line interface.
//
// versfs is a FUSE filesystem that mirrors a storage directory and keeps the
// full history of every file in it. Each write or truncate first saves the
// file's current content as snapshot "name,N"; the counter record "name,v"
// holds the index of the newest snapshot. Deletes and renames carry the
// snapshots along, and directory listings through the mount never show them.
//
// The main binary supports multiple subcommands:
//   - mount: Mount a versioning filesystem at a specified mountpoint
//   - history: List the snapshots of a file
//   - restore: Restore a file from one of its snapshots
//   - check: Check version chains and repair them
//   - seed: Generate tracked test files
//   - stats: Count files and snapshots in a storage directory
package main
