// Package invoices persists invoices registered against storefront orders.
package invoices

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderrecon/internal/orders"
	"github.com/angelmondragon/orderrecon/pkg/db"
	"github.com/angelmondragon/orderrecon/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderrecon/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Repository prepares invoices and saves them together with their order.
type Repository struct {
	db txRunner
}

func NewRepository(db txRunner) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Repository{db: db}, nil
}

// Prepare builds an open invoice for the order's uninvoiced balance.
func (r *Repository) Prepare(_ context.Context, order *models.Order) (*models.Invoice, error) {
	if order == nil || order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if !order.CanInvoice() {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order %s cannot be invoiced", order.IncrementID)
	}
	return models.NewInvoice(order), nil
}

// SaveAtomic inserts the invoice and updates its order in one transaction. A second
// invoice for the same provider transaction fails with CodeConflict.
func (r *Repository) SaveAtomic(ctx context.Context, invoice *models.Invoice, order *models.Order) error {
	if invoice == nil || order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice and order are required")
	}
	if invoice.OrderID != order.ID {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invoice belongs to order %s", invoice.OrderID)
	}
	if invoice.TransactionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice transaction id is required")
	}

	return r.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(invoice).Error; err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "invoice already exists for transaction")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create invoice")
		}
		order.PaymentTxnID = &invoice.TransactionID
		return orders.SaveTx(tx, order)
	})
}

// ForOrder lists invoices registered against an order, oldest first.
func (r *Repository) ForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Invoice, error) {
	var out []models.Invoice
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Where("order_id = ?", orderID).Order("created_at ASC").Find(&out).Error
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list invoices")
	}
	return out, nil
}
