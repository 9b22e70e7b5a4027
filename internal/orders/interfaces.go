package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderrecon/pkg/db/models"
)

// Repository places, loads and saves storefront orders and their payment transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	PlaceOrder(ctx context.Context, cartID uuid.UUID) (uuid.UUID, error)
	Load(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	RecordTransaction(ctx context.Context, order *models.Order, txnID string) error
	ListUninvoicedOrders(ctx context.Context, paymentMethod string, since time.Time) ([]models.Order, error)
}
