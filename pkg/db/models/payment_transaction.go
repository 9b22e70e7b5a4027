package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderrecon/pkg/enums"
)

// PaymentTransaction is the local record of a provider transaction id attached to an order.
type PaymentTransaction struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	TxnID     string               `gorm:"column:txn_id;type:text;not null;uniqueIndex"`
	TxnType   enums.PaymentTxnType `gorm:"column:txn_type;type:text;not null"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (t *PaymentTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
