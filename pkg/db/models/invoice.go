package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderrecon/pkg/enums"
)

var (
	ErrInvoiceWithoutOrder      = errors.New("invoice is not bound to an order")
	ErrInvoiceAlreadyRegistered = errors.New("invoice already registered")
)

// Invoice records a capture against an order. TransactionID is unique across invoices.
type Invoice struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	TransactionID string             `gorm:"column:transaction_id;type:text;not null;uniqueIndex"`
	CaptureCase   enums.CaptureCase  `gorm:"column:capture_case;type:text;not null"`
	State         enums.InvoiceState `gorm:"column:state;type:text;not null"`
	GrandTotal    decimal.Decimal    `gorm:"column:grand_total;type:numeric(12,2);not null"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`

	order *Order
}

// NewInvoice prepares an open invoice covering the order's uninvoiced balance.
func NewInvoice(order *Order) *Invoice {
	return &Invoice{
		OrderID:     order.ID,
		CaptureCase: enums.CaptureNotCapture,
		State:       enums.InvoiceStateOpen,
		GrandTotal:  order.GrandTotal.Sub(order.TotalInvoiced),
		order:       order,
	}
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i *Invoice) Order() *Order {
	return i.order
}

func (i *Invoice) SetCaptureMode(mode enums.CaptureCase) {
	i.CaptureCase = mode
}

func (i *Invoice) SetTransactionID(txnID string) {
	i.TransactionID = txnID
}

// Register marks the invoice paid and advances the order's invoiced total.
func (i *Invoice) Register() error {
	if i.order == nil {
		return ErrInvoiceWithoutOrder
	}
	if i.State != enums.InvoiceStateOpen {
		return ErrInvoiceAlreadyRegistered
	}
	i.State = enums.InvoiceStatePaid
	i.order.TotalInvoiced = i.order.TotalInvoiced.Add(i.GrandTotal)
	return nil
}
