package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the index module.
type Metrics struct {
	Rebuilds        prometheus.Counter
	IndexedEntries  prometheus.Gauge
	RebuildDuration prometheus.Histogram
}

// New creates a new Metrics instance with all index module metrics registered.
func New() *Metrics {
	return &Metrics{
		Rebuilds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainscreen_index_rebuilds_total",
			Help: "Total index rebuild-and-publish cycles",
		}),
		IndexedEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chainscreen_index_entries",
			Help: "Distinct addresses in the published index",
		}),
		RebuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainscreen_index_rebuild_duration_seconds",
			Help:    "Duration of index rebuild including store loads",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// ObserveRebuild records one completed rebuild and the published entry count.
func (m *Metrics) ObserveRebuild(start time.Time, entries int) {
	if m != nil {
		m.Rebuilds.Inc()
		m.IndexedEntries.Set(float64(entries))
		m.RebuildDuration.Observe(time.Since(start).Seconds())
	}
}
