package reconcile

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderrecon/pkg/db/models"
)

// CandidateSource yields charged carts that have no order yet.
type CandidateSource interface {
	ListPendingCarts(ctx context.Context, paymentMethod string, since time.Time) iter.Seq2[Candidate, error]
}

type CartStore interface {
	Load(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
}

type OrderStore interface {
	PlaceOrder(ctx context.Context, cartID uuid.UUID) (uuid.UUID, error)
	Load(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
}

type InvoiceStore interface {
	Prepare(ctx context.Context, order *models.Order) (*models.Invoice, error)
	// SaveAtomic persists the invoice and its order in a single transaction.
	SaveAtomic(ctx context.Context, invoice *models.Invoice, order *models.Order) error
}

// Provider is the remote payment provider, the source of truth for charges.
type Provider interface {
	ConfirmByToken(ctx context.Context, token string) (string, error)
	GetOrderByID(ctx context.Context, remoteOrderID string) (*RemoteOrderState, error)
	GetOrderByIncrementID(ctx context.Context, incrementID string) (*RemoteOrderState, error)
}

type TransactionRecorder interface {
	RecordTransaction(ctx context.Context, order *models.Order, txnID string) error
}

type Notifier interface {
	SendGroupedReport(ctx context.Context, report GroupedReport) error
	SendInvoice(ctx context.Context, invoice *models.Invoice) error
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
}

// InvoiceCandidateSource lists orders paid through the provider that still have a balance to invoice.
type InvoiceCandidateSource interface {
	ListUninvoicedOrders(ctx context.Context, paymentMethod string, since time.Time) ([]models.Order, error)
}
