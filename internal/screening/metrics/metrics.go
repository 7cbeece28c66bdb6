package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the screening module.
type Metrics struct {
	Screenings       *prometheus.CounterVec
	ExactHits        prometheus.Counter
	ClearedOverrides prometheus.Counter
	OracleFailures   prometheus.Counter
	PersistFailures  prometheus.Counter
	ScreenDuration   prometheus.Histogram
	OracleDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all screening module metrics registered.
func New() *Metrics {
	return &Metrics{
		Screenings: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainscreen_screenings_total",
			Help: "Screenings performed, by action and match type",
		}, []string{"action", "match_type"}),
		ExactHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainscreen_screening_exact_hits_total",
			Help: "Screenings that hit the sanctions index exactly",
		}),
		ClearedOverrides: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainscreen_screening_cleared_overrides_total",
			Help: "Vendor-driven dispositions softened by the cleared registry",
		}),
		OracleFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainscreen_screening_oracle_failures_total",
			Help: "Vendor oracle queries that timed out or failed",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainscreen_screening_persist_failures_total",
			Help: "Screenings failed closed because the decision could not be persisted",
		}),
		ScreenDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainscreen_screen_duration_seconds",
			Help:    "Duration of full screening including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		OracleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainscreen_screening_oracle_duration_seconds",
			Help:    "Duration of vendor oracle queries",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementScreening records one completed screening.
func (m *Metrics) IncrementScreening(action, matchType string) {
	if m != nil {
		m.Screenings.WithLabelValues(action, matchType).Inc()
	}
}

// IncrementExactHit records an exact index hit.
func (m *Metrics) IncrementExactHit() {
	if m != nil {
		m.ExactHits.Inc()
	}
}

// IncrementClearedOverride records a cleared-registry downgrade.
func (m *Metrics) IncrementClearedOverride() {
	if m != nil {
		m.ClearedOverrides.Inc()
	}
}

// IncrementOracleFailure records an unavailable vendor oracle.
func (m *Metrics) IncrementOracleFailure() {
	if m != nil {
		m.OracleFailures.Inc()
	}
}

// IncrementPersistFailure records a screening failed closed.
func (m *Metrics) IncrementPersistFailure() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

// ObserveScreen records the duration of a Screen call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveScreen(start time.Time) {
	if m != nil {
		m.ScreenDuration.Observe(time.Since(start).Seconds())
	}
}

// ObserveOracle records the duration of a vendor oracle query.
func (m *Metrics) ObserveOracle(start time.Time) {
	if m != nil {
		m.OracleDuration.Observe(time.Since(start).Seconds())
	}
}
