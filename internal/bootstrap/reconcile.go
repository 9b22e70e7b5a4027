// Package bootstrap assembles the reconciliation graph shared by the api,
// cron-worker and reconcile binaries.
package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/orderrecon/internal/cart"
	"github.com/angelmondragon/orderrecon/internal/invoices"
	"github.com/angelmondragon/orderrecon/internal/notifications"
	"github.com/angelmondragon/orderrecon/internal/orders"
	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/config"
	"github.com/angelmondragon/orderrecon/pkg/db"
	"github.com/angelmondragon/orderrecon/pkg/laybuy"
	"github.com/angelmondragon/orderrecon/pkg/logger"
	"github.com/angelmondragon/orderrecon/pkg/metrics"
	"github.com/angelmondragon/orderrecon/pkg/outbox"
)

// ReconcileParams carries the infrastructure the graph is built on.
type ReconcileParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            *db.Client
	Registerer    prometheus.Registerer
	Recorder      reconcile.RunRecorder
	Component     string
	LaybuyOptions []laybuy.Option
}

// Reconcile exposes every wired collaborator so binaries can pick what they serve.
type Reconcile struct {
	Carts             cart.Repository
	Orders            orders.Repository
	Invoices          *invoices.Repository
	OutboxRepo        *outbox.Repository
	Outbox            *outbox.Service
	Notifier          *notifications.Sink
	Reconciler        *reconcile.Reconciler
	InvoiceReconciler *reconcile.InvoiceReconciler
	Runner            *reconcile.Runner
	Metrics           *metrics.ReconcileMetrics
}

func NewReconcile(params ReconcileParams) (*Reconcile, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	cfg := params.Config

	laybuyClient, err := laybuy.NewClient(cfg.Laybuy, params.LaybuyOptions...)
	if err != nil {
		return nil, fmt.Errorf("laybuy client: %w", err)
	}
	provider := reconcile.NewLaybuyProvider(laybuyClient)

	carts := cart.NewRepository(params.DB.DB())
	orderRepo := orders.NewRepository(params.DB.DB())
	invoiceRepo, err := invoices.NewRepository(params.DB)
	if err != nil {
		return nil, fmt.Errorf("invoice repository: %w", err)
	}

	outboxRepo := outbox.NewRepository(params.DB.DB())
	outboxSvc := outbox.NewService(outboxRepo, params.Logger)
	sink, err := notifications.NewSink(notifications.SinkParams{
		DB:        params.DB,
		Outbox:    outboxSvc,
		Logger:    params.Logger,
		Component: params.Component,
	})
	if err != nil {
		return nil, fmt.Errorf("notification sink: %w", err)
	}

	reconcileMetrics := metrics.NewReconcileMetrics(params.Registerer)

	reconciler, err := reconcile.NewReconciler(reconcile.ReconcilerParams{
		Logger:       params.Logger,
		Provider:     provider,
		Carts:        carts,
		Orders:       orderRepo,
		Transactions: orderRepo,
		Notifier:     sink,
		Limits: reconcile.Limits{
			MinOrderTotal: cfg.Reconcile.MinOrderTotal,
			MaxOrderTotal: cfg.Reconcile.MaxOrderTotal,
		},
		Metrics: reconcileMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("reconciler: %w", err)
	}

	invoiceReconciler, err := reconcile.NewInvoiceReconciler(reconcile.InvoiceReconcilerParams{
		Logger:                params.Logger,
		Provider:              provider,
		Orders:                orderRepo,
		Invoices:              invoiceRepo,
		Transactions:          orderRepo,
		Notifier:              sink,
		PaymentMethod:         cfg.Reconcile.PaymentMethod,
		SendInvoiceToCustomer: cfg.Reconcile.SendInvoiceToCustomer,
		Metrics:               reconcileMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("invoice reconciler: %w", err)
	}

	runner, err := reconcile.NewRunner(reconcile.RunnerParams{
		Logger:        params.Logger,
		Source:        carts,
		Reconciler:    reconciler,
		Notifier:      sink,
		PaymentMethod: cfg.Reconcile.PaymentMethod,
		Recorder:      params.Recorder,
		Metrics:       reconcileMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}

	return &Reconcile{
		Carts:             carts,
		Orders:            orderRepo,
		Invoices:          invoiceRepo,
		OutboxRepo:        outboxRepo,
		Outbox:            outboxSvc,
		Notifier:          sink,
		Reconciler:        reconciler,
		InvoiceReconciler: invoiceReconciler,
		Runner:            runner,
		Metrics:           reconcileMetrics,
	}, nil
}
