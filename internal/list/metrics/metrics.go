package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the list module.
// Tracks ingestion outcomes, version promotions, and validation failures.
type Metrics struct {
	Ingested           *prometheus.CounterVec
	Promotions         *prometheus.CounterVec
	Rollbacks          *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	QuarantinedRecords *prometheus.CounterVec
	DeduplicatedPairs  *prometheus.CounterVec
	ValidateDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all list module metrics registered.
func New() *Metrics {
	return &Metrics{
		Ingested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainscreen_list_versions_ingested_total",
			Help: "List versions ingested, by source and outcome",
		}, []string{"source", "outcome"}),
		Promotions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainscreen_list_promotions_total",
			Help: "List versions promoted to active, by source",
		}, []string{"source"}),
		Rollbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainscreen_list_rollbacks_total",
			Help: "Active list versions rolled back, by source",
		}, []string{"source"}),
		ValidationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainscreen_list_validation_failures_total",
			Help: "Version validation failures, by source and rule",
		}, []string{"source", "rule"}),
		QuarantinedRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainscreen_list_quarantined_records_total",
			Help: "Parsed records quarantined during validation, by source",
		}, []string{"source"}),
		DeduplicatedPairs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainscreen_list_deduplicated_pairs_total",
			Help: "Duplicate (chain, address) pairs dropped during validation, by source",
		}, []string{"source"}),
		ValidateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainscreen_list_validate_duration_seconds",
			Help:    "Duration of full version validation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementIngested records one ingestion attempt outcome.
func (m *Metrics) IncrementIngested(source, outcome string) {
	if m != nil {
		m.Ingested.WithLabelValues(source, outcome).Inc()
	}
}

// IncrementPromotion records a successful promotion.
func (m *Metrics) IncrementPromotion(source string) {
	if m != nil {
		m.Promotions.WithLabelValues(source).Inc()
	}
}

// IncrementRollback records a successful rollback.
func (m *Metrics) IncrementRollback(source string) {
	if m != nil {
		m.Rollbacks.WithLabelValues(source).Inc()
	}
}

// IncrementValidationFailure records a validation rule rejecting a version.
func (m *Metrics) IncrementValidationFailure(source, rule string) {
	if m != nil {
		m.ValidationFailures.WithLabelValues(source, rule).Inc()
	}
}

// AddQuarantined records records quarantined while validating a version.
func (m *Metrics) AddQuarantined(source string, n int) {
	if m != nil {
		m.QuarantinedRecords.WithLabelValues(source).Add(float64(n))
	}
}

// AddDeduplicated records duplicate pairs dropped while validating a version.
func (m *Metrics) AddDeduplicated(source string, n int) {
	if m != nil {
		m.DeduplicatedPairs.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveValidate records the duration of a Validate operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveValidate(start time.Time) {
	if m != nil {
		m.ValidateDuration.Observe(time.Since(start).Seconds())
	}
}
