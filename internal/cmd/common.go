package cmd

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dendrascience/versfs/chain"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	errMountpointMissing = errors.New("mountpoint is required")
	errPathsOverlap      = errors.New("storage and mountpoint must not contain one another")
	errNotADirectory     = errors.New("storage path is not a directory")
)

// newLogger returns the logger every command reports through.
func newLogger(level log.Level) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		Prefix:          "versfs",
		ReportTimestamp: true,
	})
}

// addStorageFlag registers the required --storage flag.
func addStorageFlag(cmd *cobra.Command, storage *string) {
	cmd.Flags().StringVarP(storage, "storage", "s", "", "Path to the backing storage directory (required)")
	cmd.MarkFlagRequired("storage")
}

// openVersioner opens the existing storage directory at storage.
func openVersioner(afs afero.Fs, storage string, logger *log.Logger) (*chain.Versioner, error) {
	root, err := filepath.Abs(storage)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve storage path %s", storage)
	}
	info, err := afs.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "open storage")
	}
	if !info.IsDir() {
		return nil, errors.WithMessage(errNotADirectory, root)
	}
	return chain.New(root, afs, chain.WithLogger(logger))
}
