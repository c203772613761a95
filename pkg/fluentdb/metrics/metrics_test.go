package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_RecordHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPrometheus(registry)

	m.RecordHistogram(context.Background(), "fluentdb_sql_stats", 120,
		"hostname", "host-a", "database", "test", "type", "SELECT")
	m.RecordHistogram(context.Background(), "fluentdb_sql_stats", 80,
		"hostname", "host-a", "database", "test", "type", "INSERT")

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)

	assert.Equal(t, "fluentdb_sql_stats", families[0].GetName())
	assert.Len(t, families[0].GetMetric(), 2, "one series per label combination")

	for _, metric := range families[0].GetMetric() {
		assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
	}
}

func TestPrometheusMetrics_OddLabelsDropped(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPrometheus(registry)

	m.RecordHistogram(context.Background(), "odd_labels", 1, "type", "SELECT", "dangling")

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)

	metric := families[0].GetMetric()
	require.Len(t, metric, 1)
	require.Len(t, metric[0].GetLabel(), 1)
	assert.Equal(t, "type", metric[0].GetLabel()[0].GetName())
}

func TestNopMetrics(t *testing.T) {
	NopMetrics{}.RecordHistogram(context.Background(), "anything", 1)
}
