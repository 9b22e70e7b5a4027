package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderrecon/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderrecon/pkg/errors"
	"github.com/angelmondragon/orderrecon/pkg/logger"
	"github.com/angelmondragon/orderrecon/pkg/metrics"
)

// InvoiceReconcilerParams wires the collaborators of an InvoiceReconciler.
type InvoiceReconcilerParams struct {
	Logger                *logger.Logger
	Provider              Provider
	Orders                OrderStore
	Invoices              InvoiceStore
	Transactions          TransactionRecorder
	Notifier              Notifier
	PaymentMethod         string
	SendInvoiceToCustomer bool
	Metrics               *metrics.ReconcileMetrics
}

// InvoiceReconciler invoices orders the provider reports as charged.
type InvoiceReconciler struct {
	logg          *logger.Logger
	provider      Provider
	orders        OrderStore
	invoices      InvoiceStore
	txns          TransactionRecorder
	notifier      Notifier
	paymentMethod string
	sendInvoice   bool
	metrics       *metrics.ReconcileMetrics
}

func NewInvoiceReconciler(params InvoiceReconcilerParams) (*InvoiceReconciler, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("provider required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice store required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transaction recorder required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if strings.TrimSpace(params.PaymentMethod) == "" {
		return nil, fmt.Errorf("payment method required")
	}
	return &InvoiceReconciler{
		logg:          params.Logger,
		provider:      params.Provider,
		orders:        params.Orders,
		invoices:      params.Invoices,
		txns:          params.Transactions,
		notifier:      params.Notifier,
		paymentMethod: params.PaymentMethod,
		sendInvoice:   params.SendInvoiceToCustomer,
		metrics:       params.Metrics,
	}, nil
}

// ReconcileInvoice creates the missing invoice for a charged order. Running it
// again for the same order fails with ReasonAlreadyInvoiced and changes nothing.
func (r *InvoiceReconciler) ReconcileInvoice(ctx context.Context, orderID uuid.UUID, incrementID, token string) (result Result) {
	ctx = r.logg.WithOrderID(ctx, orderID.String())
	ctx = r.logg.WithField(ctx, "increment_id", incrementID)
	p := &progress{state: StateStart, orderID: orderID}

	defer func() {
		if rec := recover(); rec != nil {
			err := failf(ReasonPanic, p.state, "panic: %v", rec)
			r.logg.Error(ctx, "invoice reconciliation panicked", err)
			result = failedResult(p.result(Candidate{}), err)
		}
		r.metrics.IncOutcome(flowInvoice, string(result.Reason))
	}()

	storeID, err := r.reconcile(ctx, orderID, incrementID, token, p)
	base := p.result(Candidate{StoreID: storeID})
	if err != nil {
		r.logg.Error(r.logg.WithField(ctx, "reason", err.Reason), "can't create order invoice", err)
		return failedResult(base, err)
	}
	base.Success = true
	return base
}

func (r *InvoiceReconciler) reconcile(ctx context.Context, orderID uuid.UUID, incrementID, token string, p *progress) (uuid.UUID, *Error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return uuid.Nil, failf(ReasonMalformedSessionData, p.state, "token is required")
	}
	p.state = StateTokenExtracted

	remote, err := r.provider.GetOrderByIncrementID(ctx, incrementID)
	if err != nil {
		return uuid.Nil, fail(ReasonRemoteOrderDetailUnavailable, p.state, err)
	}
	if remote == nil || strings.TrimSpace(remote.RemoteOrderID) == "" {
		return uuid.Nil, failf(ReasonRemoteOrderNotFound, p.state, "provider has no order for %s", incrementID)
	}
	p.remoteOrderID = remote.RemoteOrderID
	if remote.HasRefunds {
		return uuid.Nil, fail(ReasonValidationFailed, p.state, errRemoteRefunded)
	}
	p.state = StateRemoteOrderFetched

	order, err := r.orders.Load(ctx, orderID)
	if err != nil {
		return uuid.Nil, fail(ReasonInvoiceCreationFailed, p.state, fmt.Errorf("load order: %w", err))
	}
	order.SetState(enums.OrderStateProcessing)
	order.SetStatus(enums.OrderStateProcessing.DefaultStatus())

	if order.Method() != r.paymentMethod {
		return order.StoreID, failf(ReasonValidationFailed, p.state, "order paid with %q, not %q", order.Method(), r.paymentMethod)
	}
	if !order.CanInvoice() {
		return order.StoreID, failf(ReasonAlreadyInvoiced, p.state, "order %s has nothing left to invoice", order.IncrementID)
	}
	p.state = StateValidated

	txnID := TransactionID(remote.RemoteOrderID, token)
	if err := r.txns.RecordTransaction(ctx, order, txnID); err != nil {
		return order.StoreID, fail(ReasonInvoiceCreationFailed, p.state, fmt.Errorf("record transaction: %w", err))
	}
	p.state = StateTransactionRecorded

	invoice, err := r.invoices.Prepare(ctx, order)
	if err != nil {
		return order.StoreID, fail(ReasonInvoiceCreationFailed, p.state, fmt.Errorf("prepare invoice: %w", err))
	}
	invoice.SetCaptureMode(enums.CaptureOnline)
	invoice.SetTransactionID(txnID)
	if err := invoice.Register(); err != nil {
		return order.StoreID, fail(ReasonInvoiceCreationFailed, p.state, fmt.Errorf("register invoice: %w", err))
	}
	if err := r.invoices.SaveAtomic(ctx, invoice, order); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			return order.StoreID, fail(ReasonAlreadyInvoiced, p.state, err)
		}
		return order.StoreID, fail(ReasonInvoiceCreationFailed, p.state, fmt.Errorf("save invoice: %w", err))
	}
	p.state = StateInvoiceRegistered

	order.AddAuditComment(AuditInvoicedComment)
	if err := r.orders.Save(ctx, order); err != nil {
		return order.StoreID, fail(ReasonInvoiceCreationFailed, p.state, fmt.Errorf("save order: %w", err))
	}

	if r.sendInvoice {
		if err := r.notifier.SendInvoice(ctx, invoice); err != nil {
			return order.StoreID, fail(ReasonInvoiceCreationFailed, p.state, fmt.Errorf("send invoice: %w", err))
		}
	}
	p.state = StateSuccess

	r.logg.Info(ctx, "order invoiced from provider charge")
	return order.StoreID, nil
}
