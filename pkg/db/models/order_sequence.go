package models

import (
	"fmt"
	"time"
)

const incrementBase = 100000000

// OrderSequence hands out monotonically increasing order numbers.
type OrderSequence struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderSequence) TableName() string {
	return "order_sequence"
}

// IncrementID formats the storefront-facing order number.
func (s OrderSequence) IncrementID() string {
	return fmt.Sprintf("%09d", incrementBase+s.ID)
}
