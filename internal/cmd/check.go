package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/dendrascience/versfs/chain"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewCheckCmd creates and returns the check subcommand for the versfs CLI.
// It provides version chain validation and repair.
func NewCheckCmd() *cobra.Command {
	var (
		storage string
		verbose bool
		repair  bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check version chains for gaps and leftovers",
		Long: `Check every version chain in a storage directory.

Reports files without a counter record, unreadable counter records, missing
snapshots, snapshots beyond the counter, and chains whose file is gone.
With --repair, leftover chains are deleted and broken chains are renumbered
so the counter matches the snapshots on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := log.WarnLevel
			if verbose {
				level = log.InfoLevel
			}
			v, err := openVersioner(afero.NewOsFs(), storage, newLogger(level))
			if err != nil {
				return err
			}
			return runCheck(cmd.OutOrStdout(), v, repair)
		},
	}

	addStorageFlag(cmd, &storage)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	cmd.Flags().BoolVarP(&repair, "repair", "r", false, "Repair the problems found")

	return cmd
}

func runCheck(out io.Writer, v *chain.Versioner, repair bool) error {
	problems, err := v.Check(repair)
	for _, p := range problems {
		status := ""
		if p.Repaired {
			status = " (repaired)"
		}
		fmt.Fprintf(out, "%s: %s: %s%s\n", p.Path, p.Kind, p.Detail, status)
	}
	if err != nil {
		return err
	}

	unrepaired := 0
	for _, p := range problems {
		if !p.Repaired {
			unrepaired++
		}
	}
	fmt.Fprintf(out, "Checked %s: %d problems, %d repaired\n",
		v.Resolver().Root(), len(problems), len(problems)-unrepaired)
	if unrepaired > 0 {
		return errors.Errorf("%d problems left unrepaired", unrepaired)
	}
	return nil
}
