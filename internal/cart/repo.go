package cart

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderrecon/pkg/errors"
)

const defaultPageSize = 100

type repository struct {
	db       *gorm.DB
	pageSize int
	now      func() time.Time
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, pageSize: defaultPageSize, now: time.Now}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, pageSize: r.pageSize, now: r.now}
}

type pendingRow struct {
	ID                    uuid.UUID
	StoreID               uuid.UUID
	UpdatedAt             time.Time
	AdditionalInformation string
}

type pageCursor struct {
	updatedAt time.Time
	id        uuid.UUID
}

// ListPendingCarts yields carts paid with paymentMethod, updated after since,
// that have no order. Rows are read in (updated_at, id) pages; carts touched
// after the scan started are left for the next run so a cart the reconciler
// just saved is never yielded twice. The first query error is yielded once
// and ends the sequence.
func (r *repository) ListPendingCarts(ctx context.Context, paymentMethod string, since time.Time) iter.Seq2[reconcile.Candidate, error] {
	return func(yield func(reconcile.Candidate, error) bool) {
		until := r.now().UTC()
		var cursor *pageCursor
		for {
			rows, err := r.pendingPage(ctx, paymentMethod, since, until, cursor)
			if err != nil {
				yield(reconcile.Candidate{}, err)
				return
			}
			for _, row := range rows {
				if strings.TrimSpace(row.AdditionalInformation) == "" {
					continue
				}
				candidate := reconcile.Candidate{
					CartID:            row.ID,
					StoreID:           row.StoreID,
					RawSessionPayload: row.AdditionalInformation,
					UpdatedAt:         row.UpdatedAt,
				}
				if !yield(candidate, nil) {
					return
				}
			}
			if len(rows) < r.pageSize {
				return
			}
			last := rows[len(rows)-1]
			cursor = &pageCursor{updatedAt: last.UpdatedAt, id: last.ID}
		}
	}
}

func (r *repository) pendingPage(ctx context.Context, paymentMethod string, since, until time.Time, cursor *pageCursor) ([]pendingRow, error) {
	query := r.db.WithContext(ctx).
		Table("carts AS c").
		Select("c.id, c.store_id, c.updated_at, p.additional_information").
		Joins("JOIN cart_payments AS p ON p.cart_id = c.id").
		Joins("LEFT JOIN orders AS o ON o.cart_id = c.id").
		Where("p.method = ?", paymentMethod).
		Where("c.updated_at > ?", since).
		Where("c.updated_at <= ?", until).
		Where("o.id IS NULL")
	if cursor != nil {
		query = query.Where("(c.updated_at > ? OR (c.updated_at = ? AND c.id > ?))", cursor.updatedAt, cursor.updatedAt, cursor.id)
	}

	var rows []pendingRow
	err := query.
		Order("c.updated_at ASC").
		Order("c.id ASC").
		Limit(r.pageSize).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) Load(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Payment").
		Where("id = ?", cartID).
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "cart %s not found", cartID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return &cart, nil
}

// Save persists the active flag and totals; items and payment are left untouched.
func (r *repository) Save(ctx context.Context, cart *models.Cart) error {
	if cart == nil || cart.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	res := r.db.WithContext(ctx).
		Model(cart).
		Select("is_active", "subtotal", "shipping_amount", "discount_amount", "grand_total", "updated_at").
		Updates(cart)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "save cart")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "cart %s not found", cart.ID)
	}
	return nil
}
