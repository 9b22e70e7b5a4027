package cron

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/db/models"
)

type scanSource struct {
	since time.Time
	err   error
}

func (s *scanSource) ListPendingCarts(_ context.Context, _ string, since time.Time) iter.Seq2[reconcile.Candidate, error] {
	s.since = since
	return func(yield func(reconcile.Candidate, error) bool) {
		if s.err != nil {
			yield(reconcile.Candidate{}, s.err)
		}
	}
}

type noopReconciler struct{}

func (noopReconciler) ReconcileCandidate(_ context.Context, c reconcile.Candidate) reconcile.Result {
	return reconcile.Result{Success: true, StoreID: c.StoreID}
}

type recordingNotifier struct {
	reports []reconcile.GroupedReport
	err     error
}

func (n *recordingNotifier) SendGroupedReport(_ context.Context, report reconcile.GroupedReport) error {
	n.reports = append(n.reports, report)
	return n.err
}

func (n *recordingNotifier) SendInvoice(context.Context, *models.Invoice) error { return nil }

func (n *recordingNotifier) SendOrderConfirmation(context.Context, *models.Order) error { return nil }

type summaryRecorder struct {
	runs []reconcile.RunSummary
}

func (r *summaryRecorder) RecordRun(_ context.Context, summary reconcile.RunSummary) error {
	r.runs = append(r.runs, summary)
	return nil
}

func newJobRunner(t *testing.T, source *scanSource, recorder *summaryRecorder, now time.Time) *reconcile.Runner {
	t.Helper()
	r, err := reconcile.NewRunner(reconcile.RunnerParams{
		Logger:        testLogger(),
		Source:        source,
		Reconciler:    noopReconciler{},
		Notifier:      &recordingNotifier{},
		PaymentMethod: "laybuy_payment",
		Recorder:      recorder,
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func TestReconcileJobRunsWindowWithLabel(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	source := &scanSource{}
	recorder := &summaryRecorder{}
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger: testLogger(),
		Runner: newJobRunner(t, source, recorder, now),
		Name:   QuoteRecoveryJobName,
		Window: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewReconcileJob: %v", err)
	}
	if job.Name() != QuoteRecoveryJobName {
		t.Fatalf("unexpected name %q", job.Name())
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !source.since.Equal(now.Add(-time.Hour)) {
		t.Fatalf("expected scan since %s, got %s", now.Add(-time.Hour), source.since)
	}
	if len(recorder.runs) != 1 || recorder.runs[0].Label != QuoteRecoveryJobName {
		t.Fatalf("expected one run labelled %q, got %+v", QuoteRecoveryJobName, recorder.runs)
	}
}

func TestReconcileJobPropagatesScanError(t *testing.T) {
	source := &scanSource{err: errors.New("scan failed")}
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger: testLogger(),
		Runner: newJobRunner(t, source, &summaryRecorder{}, time.Now()),
		Name:   CatchupJobName,
		Window: 168 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewReconcileJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewReconcileJobValidates(t *testing.T) {
	r := newJobRunner(t, &scanSource{}, &summaryRecorder{}, time.Now())
	cases := []ReconcileJobParams{
		{Runner: r, Name: "x", Window: time.Hour},
		{Logger: testLogger(), Name: "x", Window: time.Hour},
		{Logger: testLogger(), Runner: r, Window: time.Hour},
		{Logger: testLogger(), Runner: r, Name: "x"},
	}
	for i, params := range cases {
		if _, err := NewReconcileJob(params); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
