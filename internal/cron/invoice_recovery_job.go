package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/logger"
)

const InvoiceRecoveryJobName = "invoice-recovery"

type invoiceReconciler interface {
	ReconcileInvoice(ctx context.Context, orderID uuid.UUID, incrementID, token string) reconcile.Result
}

type reportSender interface {
	SendGroupedReport(ctx context.Context, report reconcile.GroupedReport) error
}

// InvoiceRecoveryJobParams configure the invoice-recovery job.
type InvoiceRecoveryJobParams struct {
	Logger        *logger.Logger
	Orders        reconcile.InvoiceCandidateSource
	Reconciler    invoiceReconciler
	Notifier      reportSender
	PaymentMethod string
	Window        time.Duration
}

// NewInvoiceRecoveryJob builds a job that invoices provider-paid orders left
// without an invoice.
func NewInvoiceRecoveryJob(params InvoiceRecoveryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order source required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("invoice reconciler required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if strings.TrimSpace(params.PaymentMethod) == "" {
		return nil, fmt.Errorf("payment method required")
	}
	if params.Window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}
	return &invoiceRecoveryJob{
		logg:          params.Logger,
		orders:        params.Orders,
		reconciler:    params.Reconciler,
		notifier:      params.Notifier,
		paymentMethod: params.PaymentMethod,
		window:        params.Window,
		now:           time.Now,
	}, nil
}

type invoiceRecoveryJob struct {
	logg          *logger.Logger
	orders        reconcile.InvoiceCandidateSource
	reconciler    invoiceReconciler
	notifier      reportSender
	paymentMethod string
	window        time.Duration
	now           func() time.Time
}

func (j *invoiceRecoveryJob) Name() string { return InvoiceRecoveryJobName }

// Run reconciles each uninvoiced order. Already-invoiced and validation
// failures are expected and only reported; provider and storage failures
// fail the job.
func (j *invoiceRecoveryJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.window)
	orders, err := j.orders.ListUninvoicedOrders(ctx, j.paymentMethod, since)
	if err != nil {
		return fmt.Errorf("list uninvoiced orders: %w", err)
	}

	var (
		results []reconcile.Result
		errs    error
	)
	for _, order := range orders {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		result := j.reconciler.ReconcileInvoice(ctx, order.ID, order.IncrementID, order.PaymentSessionToken)
		if result.StoreID == uuid.Nil {
			result.StoreID = order.StoreID
		}
		if result.OrderID == uuid.Nil {
			result.OrderID = order.ID
		}
		results = append(results, result)
		if retryable(result.Reason) {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %s", order.IncrementID, result.Message))
		}
	}

	report := reconcile.GroupByStore(results)
	report.RunID = uuid.New()
	report.Label = InvoiceRecoveryJobName
	if !report.Empty() {
		if err := j.notifier.SendGroupedReport(ctx, report); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("send invoice report: %w", err))
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"since":  since,
		"orders": len(orders),
		"failed": len(multierr.Errors(errs)),
		"stores": len(report.Stores),
		"run_id": report.RunID.String(),
	}), "invoice recovery complete")
	return errs
}

func retryable(reason reconcile.Reason) bool {
	switch reason {
	case reconcile.ReasonRemoteOrderDetailUnavailable, reconcile.ReasonInvoiceCreationFailed, reconcile.ReasonPanic:
		return true
	}
	return false
}
