package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/dendrascience/versfs/chain"
	"github.com/dendrascience/versfs/config"
	"github.com/dendrascience/versfs/version"
	"github.com/dendrascience/versfs/versfs"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewMountCmd creates and returns the mount subcommand for the versfs CLI.
// It handles mounting a versioning filesystem over a storage directory.
func NewMountCmd() *cobra.Command {
	var (
		configPath  string
		fsName      string
		allowOther  bool
		debug       bool
		metricsAddr string
		writeConfig string
	)

	cmd := &cobra.Command{
		Use:   "mount [STORAGE_PATH MOUNTPOINT]",
		Short: "Mount a versioning filesystem",
		Long: `Mount a versioning filesystem at the specified mountpoint.

STORAGE_PATH is the directory that holds the files and their version chains.
MOUNTPOINT is the directory where the filesystem will be mounted.

Both may instead come from a config file given with --config. Arguments and
flags override the file. --write-config saves the resulting settings as such
a file and exits without mounting.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(afero.NewOsFs(), configPath); err != nil {
					return err
				}
			}
			for i, dst := range []*string{&cfg.Storage, &cfg.Mountpoint} {
				if i < len(args) {
					abs, err := filepath.Abs(args[i])
					if err != nil {
						return errors.Wrapf(err, "resolve %s", args[i])
					}
					*dst = abs
				}
			}
			flags := cmd.Flags()
			if flags.Changed("fsname") {
				cfg.FSName = fsName
			}
			if flags.Changed("allow-other") {
				cfg.AllowOther = allowOther
			}
			if flags.Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if debug {
				cfg.LogLevel = "debug"
			}
			if writeConfig != "" {
				return writeMountConfig(cmd.OutOrStdout(), afero.NewOsFs(), cfg, writeConfig)
			}
			return runMount(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&fsName, "fsname", config.DefaultFSName, "Filesystem name shown in the mount table")
	cmd.Flags().BoolVar(&allowOther, "allow-other", false, "Allow other users to access the mount")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log every failed request")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
	cmd.Flags().StringVar(&writeConfig, "write-config", "", "Write the effective config to this file instead of mounting")

	return cmd
}

// writeMountConfig saves cfg so that a later mount can be started from it
// with --config.
func writeMountConfig(out io.Writer, afs afero.Fs, cfg *config.Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(afs, path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote mount config to %s\n", path)
	return nil
}

func runMount(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Mountpoint == "" {
		return errMountpointMissing
	}
	if pathsOverlap(cfg.Storage, cfg.Mountpoint) {
		return errPathsOverlap
	}

	logger := newLogger(cfg.Level())
	logger.Info("starting", "version", version.Get().String())

	if err := os.MkdirAll(cfg.Storage, 0o755); err != nil {
		return errors.Wrap(err, "create storage directory")
	}
	v, err := chain.New(cfg.Storage, afero.NewOsFs(), chain.WithLogger(logger))
	if err != nil {
		return err
	}
	filesystem := versfs.New(v, versfs.WithLogger(logger))

	opts := []fuse.MountOption{
		fuse.FSName(cfg.FSName),
		fuse.Subtype("versfs"),
	}
	if cfg.AllowOther {
		opts = append(opts, fuse.AllowOther())
	}
	c, err := fuse.Mount(cfg.Mountpoint, opts...)
	if err != nil {
		return errors.Wrapf(err, "mount %s", cfg.Mountpoint)
	}
	defer c.Close()

	g, ctx := errgroup.WithContext(ctx)
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	served := make(chan struct{})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
		g.Go(func() error {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-served:
			case <-ctx.Done():
			}
			return srv.Close()
		})
	}

	g.Go(func() error {
		select {
		case <-sigCtx.Done():
			logger.Info("received signal, unmounting", "mountpoint", cfg.Mountpoint)
			return errors.Wrap(fuse.Unmount(cfg.Mountpoint), "unmount")
		case <-served:
			return nil
		}
	})
	g.Go(func() error {
		defer close(served)
		logger.Info("mounted", "mountpoint", cfg.Mountpoint, "storage", cfg.Storage)
		return fs.Serve(c, filesystem)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// pathsOverlap reports whether one path is, or lies inside, the other.
func pathsOverlap(path1, path2 string) bool {
	a, err := filepath.Abs(path1)
	if err != nil {
		return filepath.Clean(path1) == filepath.Clean(path2)
	}
	b, err := filepath.Abs(path2)
	if err != nil {
		return filepath.Clean(path1) == filepath.Clean(path2)
	}
	return within(a, b) || within(b, a)
}

func within(p, root string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
