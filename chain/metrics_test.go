package chain

import (
	"testing"

	"github.com/dendrascience/versfs/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetricsRecorded(t *testing.T) {
	v, fs := newTestVersioner(t)
	snaps := counterValue(t, metrics.SnapshotsTotal)
	bytes := counterValue(t, metrics.SnapshotBytesTotal)
	skipped := counterValue(t, metrics.BackupsSkippedTotal)
	writes := counterValue(t, metrics.OpsTotal.WithLabelValues(metrics.OpWrite))

	require.NoError(t, v.Create("/a", 0o644))
	_, err := v.Write("/a", []byte("12345"), 0)
	require.NoError(t, err)
	_, err = v.Write("/a", []byte("x"), 0)
	require.NoError(t, err)

	writeRaw(t, fs, "/store/plain", []byte("p"))
	_, err = v.Write("/plain", []byte("q"), 0)
	require.NoError(t, err)

	require.Equal(t, snaps+2, counterValue(t, metrics.SnapshotsTotal))
	require.Equal(t, bytes+5, counterValue(t, metrics.SnapshotBytesTotal))
	require.Equal(t, skipped+1, counterValue(t, metrics.BackupsSkippedTotal))
	require.Equal(t, writes+3, counterValue(t, metrics.OpsTotal.WithLabelValues(metrics.OpWrite)))
}
