// Package chain implements the version-chain lifecycle of versfs.
//
// Every regular file P in the backing storage directory owns a version chain
// stored right next to it:
//   - P,v: the counter record, a 4-byte little-endian int32 holding the
//     index of the newest snapshot, or -1 when none exist yet
//   - P,0 ... P,N: snapshots, full byte-for-byte copies of P taken before
//     each write or truncate, N being the counter value
//
// The chain is contiguous from 0 to the counter value and snapshots are
// never modified once written, only renamed with their file or deleted.
//
// Key Components:
//   - Resolver: maps client paths under a configured absolute root
//   - naming: CounterPath, SnapshotPath and ParseArtifact, shared by the
//     Store and the listing filter
//   - Store: counter and snapshot primitives over an afero.Fs
//   - Versioner: create, write, truncate, remove and rename workflows that
//     keep a file and its chain in step under a per-path lock
//   - FilterEntries: hides artifacts from directory listings
//   - Check: detects and repairs broken chains
//
// Failures are *Error values whose Kind is one of NotFound, AlreadyExists,
// Conflict, IOFailure, Inconsistent or ReservedName; errors.Is matches them
// against the package sentinels.
package chain
