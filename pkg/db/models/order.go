package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderrecon/pkg/enums"
)

// Order is the storefront order converted from a cart. Rows are never deleted.
type Order struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	IncrementID         string               `gorm:"column:increment_id;type:text;not null;uniqueIndex"`
	CartID              uuid.UUID            `gorm:"column:cart_id;type:uuid;not null;uniqueIndex"`
	StoreID             uuid.UUID            `gorm:"column:store_id;type:uuid;not null;index"`
	CustomerEmail       string               `gorm:"column:customer_email;type:text"`
	Currency            string               `gorm:"column:currency;type:text;not null"`
	State               enums.OrderState     `gorm:"column:state;type:text;not null"`
	Status              string               `gorm:"column:status;type:text;not null"`
	GrandTotal          decimal.Decimal      `gorm:"column:grand_total;type:numeric(12,2);not null"`
	TotalInvoiced       decimal.Decimal      `gorm:"column:total_invoiced;type:numeric(12,2);not null"`
	PaymentMethod       string               `gorm:"column:payment_method;type:text;not null;index"`
	PaymentSessionToken string               `gorm:"column:payment_session_token;type:text"`
	PaymentTxnID        *string              `gorm:"column:payment_txn_id;type:text"`
	Items               []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History             []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Invoices            []Invoice            `gorm:"foreignKey:OrderID"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (o *Order) Method() string {
	return o.PaymentMethod
}

func (o *Order) SetState(state enums.OrderState) {
	o.State = state
}

func (o *Order) SetStatus(status string) {
	o.Status = status
}

// AddAuditComment appends an unsaved history entry; the order repository persists it on Save.
func (o *Order) AddAuditComment(comment string) {
	o.History = append(o.History, OrderStatusHistory{
		OrderID: o.ID,
		State:   o.State,
		Status:  o.Status,
		Comment: comment,
	})
}

// CanInvoice reports whether the order is in an invoiceable state with an uninvoiced balance.
func (o *Order) CanInvoice() bool {
	if o == nil || !o.State.AcceptsInvoice() {
		return false
	}
	return o.TotalInvoiced.LessThan(o.GrandTotal)
}

// OrderItem is a line copied from the cart when the order is placed.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	SKU       string          `gorm:"column:sku;type:text;not null"`
	Name      string          `gorm:"column:name;type:text"`
	Qty       int             `gorm:"column:qty;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// OrderStatusHistory is an append-only audit trail entry on an order.
type OrderStatusHistory struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index"`
	State     enums.OrderState `gorm:"column:state;type:text;not null"`
	Status    string           `gorm:"column:status;type:text;not null"`
	Comment   string           `gorm:"column:comment;type:text;not null"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
