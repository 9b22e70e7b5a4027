package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart is a storefront quote. Once converted it is deactivated and linked to an order.
type Cart struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	StoreID        uuid.UUID       `gorm:"column:store_id;type:uuid;not null;index"`
	CustomerEmail  string          `gorm:"column:customer_email;type:text"`
	Currency       string          `gorm:"column:currency;type:text;not null"`
	IsActive       bool            `gorm:"column:is_active;not null"`
	Subtotal       decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ShippingAmount decimal.Decimal `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	GrandTotal     decimal.Decimal `gorm:"column:grand_total;type:numeric(12,2);not null"`
	Items          []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	Payment        *CartPayment    `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *Cart) Active() bool {
	return c != nil && c.IsActive
}

func (c *Cart) SetActive(active bool) {
	c.IsActive = active
}

func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

// CollectTotals recomputes subtotal and grand total from the loaded items.
func (c *Cart) CollectTotals() {
	subtotal := decimal.Zero
	for _, item := range c.Items {
		subtotal = subtotal.Add(item.RowTotal())
	}
	c.Subtotal = subtotal
	c.GrandTotal = subtotal.Add(c.ShippingAmount).Sub(c.DiscountAmount)
}

func (c *Cart) Total() decimal.Decimal {
	return c.GrandTotal
}

// CartItem is a single line on a cart.
type CartItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index"`
	SKU       string          `gorm:"column:sku;type:text;not null"`
	Name      string          `gorm:"column:name;type:text"`
	Qty       int             `gorm:"column:qty;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i CartItem) RowTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Qty)))
}

// CartPayment holds the payment method chosen at checkout and the provider session payload.
type CartPayment struct {
	ID                    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID                uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex"`
	Method                string    `gorm:"column:method;type:text;not null;index"`
	AdditionalInformation string    `gorm:"column:additional_information;type:text"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *CartPayment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
