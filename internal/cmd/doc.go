// Package cmd provides the command-line interface implementation for versfs.
//
// This package contains all the subcommand implementations for the versfs CLI tool.
// It uses the Cobra library for command structure and Fang for styling.
//
// The package is organized into the following commands:
//   - root: Main command coordinator and entry point
//   - mount: FUSE filesystem mounting, optionally driven by a config file
//   - history: Snapshot listing for one file
//   - restore: Rolling a file back to a snapshot
//   - check: Version chain validation and repair
//   - seed: Test data generation through the versioning layer
//   - stats: File and snapshot counts of a storage directory
//
// Each command is implemented as a separate file with its own constructor function
// that returns a *cobra.Command. Commands other than mount work directly on the
// storage directory through the chain package.
package cmd
