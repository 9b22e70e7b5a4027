package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics tracks candidates scanned and per-flow outcomes.
type ReconcileMetrics struct {
	candidates      *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	confirmAttempts prometheus.Histogram
}

// NewReconcileMetrics registers the reconciliation metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	candidates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_candidates_total",
		Help:      "Candidates yielded by the scanner, by run label.",
	}, []string{"run"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_outcomes_total",
		Help:      "Reconciliation outcomes by flow and failure reason (empty on success).",
	}, []string{"flow", "reason"})
	confirmAttempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reconcile_confirm_attempts",
		Help:      "Confirm-by-token attempts needed per candidate.",
		Buckets:   []float64{1, 2, 3, 4},
	})
	reg.MustRegister(candidates, outcomes, confirmAttempts)
	return &ReconcileMetrics{
		candidates:      candidates,
		outcomes:        outcomes,
		confirmAttempts: confirmAttempts,
	}
}

// AddCandidates records n scanned candidates for the given run label.
func (m *ReconcileMetrics) AddCandidates(run string, n int) {
	if m == nil || m.candidates == nil || n <= 0 {
		return
	}
	m.candidates.WithLabelValues(normalizeLabel(run)).Add(float64(n))
}

// IncOutcome records one reconciliation result.
func (m *ReconcileMetrics) IncOutcome(flow, reason string) {
	if m == nil || m.outcomes == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.outcomes.WithLabelValues(normalizeLabel(flow), reason).Inc()
}

// ObserveConfirmAttempts records how many confirm calls a candidate needed.
func (m *ReconcileMetrics) ObserveConfirmAttempts(attempts int) {
	if m == nil || m.confirmAttempts == nil || attempts <= 0 {
		return
	}
	m.confirmAttempts.Observe(float64(attempts))
}
