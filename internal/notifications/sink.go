// Package notifications queues reconciliation emails and run reports on the outbox.
package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/db/models"
	"github.com/angelmondragon/orderrecon/pkg/enums"
	"github.com/angelmondragon/orderrecon/pkg/logger"
	"github.com/angelmondragon/orderrecon/pkg/outbox"
	"github.com/angelmondragon/orderrecon/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SinkParams wires an outbox-backed notification sink.
type SinkParams struct {
	DB        txRunner
	Outbox    emitter
	Logger    *logger.Logger
	Component string
}

// Sink implements reconcile.Notifier by writing outbox events; the outbox
// publisher fans them out to the notification topic.
type Sink struct {
	db        txRunner
	outbox    emitter
	logg      *logger.Logger
	component string
}

func NewSink(params SinkParams) (*Sink, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	component := params.Component
	if component == "" {
		component = "reconciler"
	}
	return &Sink{db: params.DB, outbox: params.Outbox, logg: params.Logger, component: component}, nil
}

func (s *Sink) SendGroupedReport(ctx context.Context, report reconcile.GroupedReport) error {
	if report.Empty() {
		return nil
	}
	runID := report.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	data := payloads.ReconcileReportReady{RunID: runID, Label: report.Label}
	for _, store := range report.Stores {
		bucket := payloads.StoreReport{StoreID: store.StoreID}
		for _, result := range store.Results {
			bucket.Results = append(bucket.Results, payloads.ReportResult{
				Success:       result.Success,
				Reason:        string(result.Reason),
				State:         string(result.State),
				Message:       result.Message,
				CartID:        result.CartID,
				OrderID:       result.OrderID,
				RemoteOrderID: result.RemoteOrderID,
			})
		}
		data.Stores = append(data.Stores, bucket)
	}

	err := s.emit(ctx, outbox.DomainEvent{
		EventType:     enums.EventReconcileReportReady,
		AggregateType: enums.AggregateReconcileRun,
		AggregateID:   runID,
		Source:        s.source(report.Label),
		Data:          data,
	})
	if err != nil {
		return err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"run_id": runID.String(), "stores": len(data.Stores)})
	s.logg.Info(ctx, "reconcile report queued")
	return nil
}

func (s *Sink) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order required")
	}
	return s.emit(ctx, outbox.DomainEvent{
		EventType:     enums.EventOrderConfirmationRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Source:        s.source(""),
		Data: payloads.OrderConfirmationRequested{
			OrderID:       order.ID,
			IncrementID:   order.IncrementID,
			StoreID:       order.StoreID,
			CustomerEmail: order.CustomerEmail,
			GrandTotal:    order.GrandTotal.StringFixed(2),
			Currency:      order.Currency,
		},
	})
}

func (s *Sink) SendInvoice(ctx context.Context, invoice *models.Invoice) error {
	if invoice == nil {
		return fmt.Errorf("invoice required")
	}
	data := payloads.InvoiceEmailRequested{
		InvoiceID:     invoice.ID,
		OrderID:       invoice.OrderID,
		TransactionID: invoice.TransactionID,
		GrandTotal:    invoice.GrandTotal.StringFixed(2),
	}
	if order := invoice.Order(); order != nil {
		data.IncrementID = order.IncrementID
		data.StoreID = order.StoreID
		data.CustomerEmail = order.CustomerEmail
	}
	return s.emit(ctx, outbox.DomainEvent{
		EventType:     enums.EventInvoiceEmailRequested,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   invoice.ID,
		Source:        s.source(""),
		Data:          data,
	})
}

func (s *Sink) emit(ctx context.Context, event outbox.DomainEvent) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return fmt.Errorf("emit %s: %w", event.EventType, err)
		}
		return nil
	})
}

func (s *Sink) source(label string) *outbox.SourceRef {
	return &outbox.SourceRef{Component: s.component, RunLabel: label}
}
