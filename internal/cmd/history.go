package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dendrascience/versfs/chain"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates and returns the history subcommand for the versfs CLI.
// It lists the snapshots kept for one file.
func NewHistoryCmd() *cobra.Command {
	var (
		storage string
		show    int
	)

	cmd := &cobra.Command{
		Use:   "history PATH",
		Short: "List the snapshots of a file",
		Long: `List every snapshot kept for a file, oldest first.

PATH is the file's path inside the filesystem, e.g. /reports/q3.txt.
Snapshot N holds the content the file had before its N+1th change.
With --show N the content of snapshot N is printed instead of the list.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVersioner(afero.NewOsFs(), storage, newLogger(log.WarnLevel))
			if err != nil {
				return err
			}
			if show >= 0 {
				return runShow(cmd.OutOrStdout(), v, args[0], show)
			}
			return runHistory(cmd.OutOrStdout(), v, args[0])
		},
	}
	addStorageFlag(cmd, &storage)
	cmd.Flags().IntVar(&show, "show", -1, "Print the content of snapshot N")

	return cmd
}

// clientPath makes p absolute within the filesystem.
func clientPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

func runHistory(out io.Writer, v *chain.Versioner, p string) error {
	rel := clientPath(p)
	snaps, err := v.History(rel)
	if errors.Is(err, chain.ErrNotFound) {
		fmt.Fprintf(out, "%s is not tracked\n", rel)
		return nil
	} else if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintf(out, "%s has no snapshots\n", rel)
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Index", "Size", "Modified", "Status")
	for _, s := range snaps {
		row := []string{strconv.Itoa(s.Index), "-", "-", "ok"}
		if s.Missing {
			row[3] = "missing"
		} else {
			row[1] = humanize.IBytes(uint64(s.Size))
			row[2] = humanize.Time(s.ModTime)
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func runShow(out io.Writer, v *chain.Versioner, p string, index int) error {
	f, err := v.OpenSnapshot(clientPath(p), index)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(out, f)
	return errors.Wrapf(err, "read snapshot %d", index)
}
