package cart

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/db/models"
)

// Repository reads charged carts and persists the cart flags the reconciler touches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListPendingCarts(ctx context.Context, paymentMethod string, since time.Time) iter.Seq2[reconcile.Candidate, error]
	Load(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
}
