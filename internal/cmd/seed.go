package cmd

import (
	"context"
	"fmt"
	"path"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/dendrascience/versfs/chain"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type seedOptions struct {
	files     int
	revisions int
	dirs      int
	workers   int
}

// NewSeedCmd creates and returns the seed subcommand for the versfs CLI.
// It generates tracked test files with a history of revisions.
func NewSeedCmd() *cobra.Command {
	var (
		storage string
		verbose bool
		opts    seedOptions
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate tracked test files with revision history",
		Long: `Generate tracked files for testing versfs functionality.

Files are spread over a number of directories and created through the
versioning layer, so each one gets a counter record. Every revision appends
a UUID line, leaving one snapshot per revision behind.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := log.WarnLevel
			if verbose {
				level = log.InfoLevel
			}
			logger := newLogger(level)
			afs := afero.NewOsFs()
			if err := afs.MkdirAll(storage, 0o755); err != nil {
				return errors.Wrap(err, "create storage directory")
			}
			v, err := openVersioner(afs, storage, logger)
			if err != nil {
				return err
			}
			created, err := runSeed(cmd.Context(), v, opts, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d files with %d snapshots each\n", created, opts.revisions)
			return nil
		},
	}

	addStorageFlag(cmd, &storage)
	cmd.Flags().IntVarP(&opts.files, "count", "c", 1000, "Number of files to generate")
	cmd.Flags().IntVarP(&opts.revisions, "revisions", "r", 5, "Revisions written to each file")
	cmd.Flags().IntVar(&opts.dirs, "dirs", 16, "Number of directories to spread files over")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 8, "Files generated concurrently")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	return cmd
}

func runSeed(ctx context.Context, v *chain.Versioner, opts seedOptions, logger *log.Logger) (int, error) {
	if opts.files < 0 || opts.revisions < 0 || opts.dirs < 1 || opts.workers < 1 {
		return 0, errors.New("count and revisions must not be negative, dirs and workers must be positive")
	}
	for d := 0; d < opts.dirs; d++ {
		p, err := v.Resolve(seedDir(d))
		if err != nil {
			return 0, err
		}
		if err := v.Fs().MkdirAll(p, 0o755); err != nil {
			return 0, errors.Wrapf(err, "create %s", p)
		}
	}

	var created atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers)
	for i := 0; i < opts.files; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			id := uuid.New().String()
			rel := path.Join(seedDir(i%opts.dirs), fmt.Sprintf("%06d-%s.txt", i, id[:8]))
			if err := v.Create(rel, 0o644); err != nil {
				return err
			}
			var off int64
			for r := 0; r < opts.revisions; r++ {
				line := []byte(uuid.New().String() + "\n")
				if _, err := v.Write(rel, line, off); err != nil {
					return err
				}
				off += int64(len(line))
			}
			if n := created.Add(1); n%1000 == 0 {
				logger.Info("progress", "files", n, "of", opts.files)
			}
			return nil
		})
	}
	err := g.Wait()
	return int(created.Load()), err
}

func seedDir(d int) string {
	return fmt.Sprintf("/seed-%02d", d)
}
