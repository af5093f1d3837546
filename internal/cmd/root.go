package cmd

import (
	"github.com/dendrascience/versfs/version"
	"github.com/spf13/cobra"
)

// NewRootCmd creates and returns the root cobra command for the versfs CLI.
// It sets up all subcommands, command groups, and basic configuration.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "versfs",
		Short: "versfs - A FUSE filesystem that keeps every version of every file",
		Long: `versfs is a FUSE filesystem that keeps every version of every file.

Before a file is written or truncated, its current content is saved as the
next numbered snapshot next to it in the storage directory. Deleting or
renaming a file deletes or moves its snapshots with it. Snapshots never show
up through the mount.

Use subcommands to perform different operations:
  - mount: Mount a versioning filesystem over a storage directory
  - history: List the snapshots of a file
  - restore: Restore a file from one of its snapshots
  - check: Check version chains and repair them
  - seed: Generate tracked test files
  - stats: Count files and snapshots
  - version: Print build information`,
		Version:      version.Get().String(),
		SilenceUsage: true,
	}

	groupFilesystem := "filesystem"
	groupChains := "chains"
	groupUtilities := "utilities"

	// Add command groups for better organization
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupFilesystem,
		Title: "Filesystem Operations",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupChains,
		Title: "Version Chains",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupUtilities,
		Title: "Utility Commands",
	})

	mountCmd := NewMountCmd()
	historyCmd := NewHistoryCmd()
	restoreCmd := NewRestoreCmd()
	checkCmd := NewCheckCmd()
	seedCmd := NewSeedCmd()
	statsCmd := NewStatsCmd()
	versionCmd := NewVersionCmd()

	mountCmd.GroupID = groupFilesystem
	historyCmd.GroupID = groupChains
	restoreCmd.GroupID = groupChains
	checkCmd.GroupID = groupChains
	seedCmd.GroupID = groupUtilities
	statsCmd.GroupID = groupUtilities
	versionCmd.GroupID = groupUtilities

	// Add subcommands
	rootCmd.AddCommand(mountCmd, historyCmd, restoreCmd, checkCmd, seedCmd, statsCmd, versionCmd)

	return rootCmd
}
