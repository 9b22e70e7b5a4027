package payloads

import (
	"github.com/google/uuid"
)

// OrderConfirmationRequested asks the mailer to send the order confirmation email.
type OrderConfirmationRequested struct {
	OrderID       uuid.UUID `json:"order_id"`
	IncrementID   string    `json:"increment_id"`
	StoreID       uuid.UUID `json:"store_id"`
	CustomerEmail string    `json:"customer_email"`
	GrandTotal    string    `json:"grand_total"`
	Currency      string    `json:"currency"`
}

// InvoiceEmailRequested asks the mailer to send an invoice to the customer.
type InvoiceEmailRequested struct {
	InvoiceID     uuid.UUID `json:"invoice_id"`
	OrderID       uuid.UUID `json:"order_id"`
	IncrementID   string    `json:"increment_id"`
	StoreID       uuid.UUID `json:"store_id"`
	CustomerEmail string    `json:"customer_email"`
	TransactionID string    `json:"transaction_id"`
	GrandTotal    string    `json:"grand_total"`
}

// ReconcileReportReady carries one run's results grouped by store, in first-seen order.
type ReconcileReportReady struct {
	RunID  uuid.UUID     `json:"run_id"`
	Label  string        `json:"label,omitempty"`
	Stores []StoreReport `json:"stores"`
}

// StoreReport is the bucket of results for one store.
type StoreReport struct {
	StoreID uuid.UUID      `json:"store_id"`
	Results []ReportResult `json:"results"`
}

// ReportResult is a flattened reconciliation result.
type ReportResult struct {
	Success       bool      `json:"success"`
	Reason        string    `json:"reason,omitempty"`
	State         string    `json:"state"`
	Message       string    `json:"message,omitempty"`
	CartID        uuid.UUID `json:"cart_id,omitempty"`
	OrderID       uuid.UUID `json:"order_id,omitempty"`
	RemoteOrderID string    `json:"remote_order_id,omitempty"`
}
