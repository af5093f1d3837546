// Package metrics declares the prometheus collectors of versfs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation label values.
const (
	OpCreate   = "create"
	OpWrite    = "write"
	OpTruncate = "truncate"
	OpRemove   = "remove"
	OpRename   = "rename"
	OpRestore  = "restore"
	OpBackup   = "backup"
)

var (
	SnapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versfs_snapshots_total",
		Help: "Cumulative number of snapshots written.",
	})
	SnapshotBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versfs_snapshot_bytes_total",
		Help: "Cumulative number of bytes copied into snapshots.",
	})
	BackupsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versfs_backups_skipped_total",
		Help: "Cumulative number of backups skipped because the file has no counter record.",
	})
	ChainErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versfs_chain_errors_total",
		Help: "Cumulative number of version chain mutations that failed, by operation.",
	}, []string{"op"})
	OpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versfs_ops_total",
		Help: "Cumulative number of versioned operations served, by operation.",
	}, []string{"op"})
)
