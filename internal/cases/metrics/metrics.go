package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the cases module.
type Metrics struct {
	Opened      *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Rejected    prometheus.Counter
	SLABreaches *prometheus.CounterVec
	OpenCases   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all cases module metrics registered.
func New() *Metrics {
	return &Metrics{
		Opened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainscreen_cases_opened_total",
			Help: "Cases opened, by priority",
		}, []string{"priority"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainscreen_case_transitions_total",
			Help: "Case status transitions, by target status",
		}, []string{"to"}),
		Rejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainscreen_case_transitions_rejected_total",
			Help: "Transitions rejected by the lifecycle table",
		}),
		SLABreaches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainscreen_case_sla_breaches_total",
			Help: "Cases observed past their SLA deadline, by priority",
		}, []string{"priority"}),
		OpenCases: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainscreen_cases_open",
			Help: "Currently open cases, by status",
		}, []string{"status"}),
	}
}

// IncrementOpened records a newly opened case.
func (m *Metrics) IncrementOpened(priority string) {
	if m != nil {
		m.Opened.WithLabelValues(priority).Inc()
	}
}

// IncrementTransition records a successful status transition.
func (m *Metrics) IncrementTransition(to string) {
	if m != nil {
		m.Transitions.WithLabelValues(to).Inc()
	}
}

// IncrementRejected records a transition rejected as illegal.
func (m *Metrics) IncrementRejected() {
	if m != nil {
		m.Rejected.Inc()
	}
}

// IncrementSLABreach records a case observed past its deadline.
func (m *Metrics) IncrementSLABreach(priority string) {
	if m != nil {
		m.SLABreaches.WithLabelValues(priority).Inc()
	}
}

// SetOpenCases records the open-case count for a status.
func (m *Metrics) SetOpenCases(status string, n int) {
	if m != nil {
		m.OpenCases.WithLabelValues(status).Set(float64(n))
	}
}
