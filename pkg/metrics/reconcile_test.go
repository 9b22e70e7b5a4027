package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestReconcileMetricsExports(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReconcileMetrics(reg)

	m.AddCandidates("frequent", 3)
	m.AddCandidates("frequent", 0)
	m.IncOutcome("order", "")
	m.IncOutcome("order", "ValidationFailed")
	m.IncOutcome("order", "ValidationFailed")
	m.ObserveConfirmAttempts(4)
	m.ObserveConfirmAttempts(1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "orderrecon_reconcile_candidates_total", "run", "frequent"); err != nil || got != 3 {
		t.Fatalf("expected 3 candidates, got %f (%v)", got, err)
	}

	outcomes := findMetricFamily(mfs, "orderrecon_reconcile_outcomes_total")
	if outcomes == nil {
		t.Fatal("outcomes metric missing")
	}
	byReason := map[string]float64{}
	for _, metric := range outcomes.GetMetric() {
		byReason[labelValue(metric.GetLabel(), "reason")] = metric.GetCounter().GetValue()
	}
	if byReason["none"] != 1 || byReason["ValidationFailed"] != 2 {
		t.Fatalf("unexpected outcomes %v", byReason)
	}

	attempts := findMetricFamily(mfs, "orderrecon_reconcile_confirm_attempts")
	if attempts == nil {
		t.Fatal("confirm attempts metric missing")
	}
	h := attempts.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 || h.GetSampleSum() != 5 {
		t.Fatalf("unexpected histogram count=%d sum=%f", h.GetSampleCount(), h.GetSampleSum())
	}
}

func labelValue(labels []*dto.LabelPair, name string) string {
	for _, label := range labels {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}
