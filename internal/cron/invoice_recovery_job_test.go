package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/db/models"
)

type fakeUninvoiced struct {
	orders []models.Order
	err    error
	method string
	since  time.Time
}

func (f *fakeUninvoiced) ListUninvoicedOrders(_ context.Context, method string, since time.Time) ([]models.Order, error) {
	f.method = method
	f.since = since
	return f.orders, f.err
}

type scriptedInvoices struct {
	results map[string]reconcile.Result
	tokens  []string
}

func (s *scriptedInvoices) ReconcileInvoice(_ context.Context, _ uuid.UUID, incrementID, token string) reconcile.Result {
	s.tokens = append(s.tokens, token)
	return s.results[incrementID]
}

func newInvoiceJob(t *testing.T, orders *fakeUninvoiced, rec *scriptedInvoices, notifier *recordingNotifier, now time.Time) *invoiceRecoveryJob {
	t.Helper()
	job, err := NewInvoiceRecoveryJob(InvoiceRecoveryJobParams{
		Logger:        testLogger(),
		Orders:        orders,
		Reconciler:    rec,
		Notifier:      notifier,
		PaymentMethod: "laybuy_payment",
		Window:        24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewInvoiceRecoveryJob: %v", err)
	}
	impl := job.(*invoiceRecoveryJob)
	impl.now = func() time.Time { return now }
	return impl
}

func TestInvoiceRecoveryJobReportsAndAggregatesFailures(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	storeA, storeB := uuid.New(), uuid.New()
	orders := &fakeUninvoiced{orders: []models.Order{
		{ID: uuid.New(), IncrementID: "100000001", StoreID: storeA, PaymentSessionToken: "t1"},
		{ID: uuid.New(), IncrementID: "100000002", StoreID: storeB, PaymentSessionToken: "t2"},
		{ID: uuid.New(), IncrementID: "100000003", StoreID: storeA, PaymentSessionToken: "t3"},
		{ID: uuid.New(), IncrementID: "100000004", StoreID: storeB, PaymentSessionToken: "t4"},
	}}
	rec := &scriptedInvoices{results: map[string]reconcile.Result{
		"100000001": {Success: true, StoreID: storeA},
		"100000002": {Reason: reconcile.ReasonAlreadyInvoiced},
		"100000003": {Reason: reconcile.ReasonRemoteOrderDetailUnavailable, Message: "503"},
		"100000004": {Reason: reconcile.ReasonInvoiceCreationFailed, Message: "db down"},
	}}
	notifier := &recordingNotifier{}
	job := newInvoiceJob(t, orders, rec, notifier, now)

	err := job.Run(context.Background())

	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 aggregated failures, got %d (%v)", got, err)
	}
	if orders.method != "laybuy_payment" || !orders.since.Equal(now.Add(-24*time.Hour)) {
		t.Fatalf("unexpected listing args %q %s", orders.method, orders.since)
	}
	if len(rec.tokens) != 4 || rec.tokens[0] != "t1" {
		t.Fatalf("expected every order reconciled with its session token, got %v", rec.tokens)
	}
	if len(notifier.reports) != 1 {
		t.Fatalf("expected exactly one report, got %d", len(notifier.reports))
	}
	report := notifier.reports[0]
	if report.Label != InvoiceRecoveryJobName || len(report.Stores) != 2 || report.Stores[0].StoreID != storeA {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Len() != 4 {
		t.Fatalf("expected 4 results, got %d", report.Len())
	}
}

func TestInvoiceRecoveryJobNothingToDo(t *testing.T) {
	notifier := &recordingNotifier{}
	job := newInvoiceJob(t, &fakeUninvoiced{}, &scriptedInvoices{}, notifier, time.Now())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.reports) != 0 {
		t.Fatal("empty runs must not send a report")
	}
}

func TestInvoiceRecoveryJobListError(t *testing.T) {
	job := newInvoiceJob(t, &fakeUninvoiced{err: errors.New("db down")}, &scriptedInvoices{}, &recordingNotifier{}, time.Now())
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
