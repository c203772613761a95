// Package metrics defines the metrics interface consumed by fluentdb and a
// Prometheus-backed implementation of it.
package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records query statistics. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordHistogram(ctx context.Context, name string, value float64, labels ...string)
}

type prometheusMetrics struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheus returns a Metrics implementation backed by the given
// registerer. Histograms are created lazily on first use, keyed by metric
// name, with label names taken from the first observation.
func NewPrometheus(registerer prometheus.Registerer) Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &prometheusMetrics{
		registerer: registerer,
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (p *prometheusMetrics) RecordHistogram(_ context.Context, name string, value float64, labels ...string) {
	if len(labels)%2 != 0 {
		labels = labels[:len(labels)-1]
	}

	keys := make([]string, 0, len(labels)/2)
	values := make([]string, 0, len(labels)/2)

	for i := 0; i+1 < len(labels); i += 2 {
		keys = append(keys, labels[i])
		values = append(values, labels[i+1])
	}

	p.mu.Lock()

	h, ok := p.histograms[name]
	if !ok {
		h = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    "fluentdb recorded histogram",
			Buckets: prometheus.DefBuckets,
		}, keys)

		p.registerer.MustRegister(h)
		p.histograms[name] = h
	}

	p.mu.Unlock()

	h.WithLabelValues(values...).Observe(value)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) RecordHistogram(context.Context, string, float64, ...string) {}
