package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/dendrascience/versfs/chain"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewRestoreCmd creates and returns the restore subcommand for the versfs CLI.
// It brings back an earlier version of a file.
func NewRestoreCmd() *cobra.Command {
	var storage string

	cmd := &cobra.Command{
		Use:   "restore PATH INDEX",
		Short: "Restore a file from one of its snapshots",
		Long: `Replace the content of a file with the content of snapshot INDEX.

The content being replaced is kept as a new snapshot first, so a restore
can itself be undone. Run this against a storage directory that is not
mounted, or through the mount's own path, not both at once.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil || index < 0 {
				return errors.Errorf("invalid snapshot index %q", args[1])
			}
			v, err := openVersioner(afero.NewOsFs(), storage, newLogger(log.WarnLevel))
			if err != nil {
				return err
			}
			return runRestore(cmd.OutOrStdout(), v, args[0], index)
		},
	}
	addStorageFlag(cmd, &storage)

	return cmd
}

func runRestore(out io.Writer, v *chain.Versioner, p string, index int) error {
	rel := clientPath(p)
	if err := v.Restore(rel, index); err != nil {
		return err
	}
	snaps, err := v.History(rel)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Restored %s to snapshot %d (previous content saved as snapshot %d)\n",
		rel, index, len(snaps)-1)
	return nil
}
