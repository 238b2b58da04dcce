package resolution

import (
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/entigo/internal/infrastructure/monitoring/prometheus"
)

func newTestMetrics(t *testing.T) *prometheus.AppMetrics {
	t.Helper()
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, nil)
	require.NoError(t, err)
	return prometheus.NewAppMetrics(collector)
}

func counterValue(t *testing.T, vec prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, ok := vec.WithLabelValues(labels...).(promclient.Counter)
	require.True(t, ok, "counter is a no-op")
	return promtestutil.ToFloat64(c)
}

//Personal.AI order the ending
