package reconcile

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditCreatedComment is appended to orders created by the reconciler.
const AuditCreatedComment = "Automatically Created - Detected as Order not created but charged on laybuy"

// AuditInvoicedComment is appended to orders invoiced by the reconciler.
const AuditInvoicedComment = "Automatically Invoiced - Detected as Order was not Invoiced but charged on laybuy"

// State is the last step a reconciliation reached.
type State string

const (
	StateStart               State = "start"
	StateTokenExtracted      State = "token_extracted"
	StateRemoteOrderResolved State = "remote_order_resolved"
	StateRemoteOrderFetched  State = "remote_order_fetched"
	StateValidated           State = "validated"
	StateOrderCreated        State = "order_created"
	StateTransactionRecorded State = "transaction_recorded"
	StateInvoiceRegistered   State = "invoice_registered"
	StateSuccess             State = "success"
)

// Candidate is a charged cart with no local order.
type Candidate struct {
	CartID            uuid.UUID
	StoreID           uuid.UUID
	SessionToken      string
	RawSessionPayload string
	UpdatedAt         time.Time
}

// RemoteOrderState is the provider's view of an order, fetched fresh per reconciliation.
type RemoteOrderState struct {
	RemoteOrderID string
	Amount        decimal.Decimal
	Currency      string
	HasRefunds    bool
	Raw           json.RawMessage
}

// Result is the outcome of reconciling one candidate or one invoice.
type Result struct {
	Success       bool
	Reason        Reason
	State         State
	Message       string
	StoreID       uuid.UUID
	CartID        uuid.UUID
	OrderID       uuid.UUID
	RemoteOrderID string
}

// TransactionID builds the provider transaction reference stored on orders and invoices.
func TransactionID(remoteOrderID, token string) string {
	return remoteOrderID + "_" + token
}

// RunSummary describes one scan-and-reconcile pass.
type RunSummary struct {
	RunID      uuid.UUID
	Label      string
	Window     time.Duration
	Since      time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Candidates int
	Succeeded  int
	Failed     int
	Report     GroupedReport
}
