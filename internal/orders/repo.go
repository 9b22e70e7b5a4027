package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/db"
	"github.com/angelmondragon/orderrecon/pkg/db/models"
	"github.com/angelmondragon/orderrecon/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderrecon/pkg/errors"
)

const uninvoicedLimit = 500

var savedOrderColumns = []string{
	"state",
	"status",
	"total_invoiced",
	"payment_txn_id",
	"customer_email",
	"updated_at",
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// PlaceOrder converts an active cart into a new order and deactivates the cart.
// A cart can back at most one order.
func (r *repository) PlaceOrder(ctx context.Context, cartID uuid.UUID) (uuid.UUID, error) {
	var orderID uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		err := tx.Preload("Items").Preload("Payment").Where("id = ?", cartID).First(&cart).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "cart %s not found", cartID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if !cart.Active() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cart %s is not active", cartID)
		}
		if cart.ItemCount() == 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "cart %s has no items", cartID)
		}
		if cart.Payment == nil || strings.TrimSpace(cart.Payment.Method) == "" {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "cart %s has no payment method", cartID)
		}
		cart.CollectTotals()

		seq := models.OrderSequence{}
		if err := tx.Create(&seq).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocate order number")
		}

		token, _ := reconcile.ExtractToken(cart.Payment.AdditionalInformation)
		order := models.Order{
			IncrementID:         seq.IncrementID(),
			CartID:              cart.ID,
			StoreID:             cart.StoreID,
			CustomerEmail:       cart.CustomerEmail,
			Currency:            cart.Currency,
			State:               enums.OrderStateNew,
			Status:              enums.OrderStateNew.DefaultStatus(),
			GrandTotal:          cart.GrandTotal,
			PaymentMethod:       cart.Payment.Method,
			PaymentSessionToken: token,
		}
		for _, item := range cart.Items {
			order.Items = append(order.Items, models.OrderItem{
				SKU:       item.SKU,
				Name:      item.Name,
				Qty:       item.Qty,
				UnitPrice: item.UnitPrice,
			})
		}
		if err := tx.Create(&order).Error; err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart already has an order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		cart.SetActive(false)
		if err := tx.Model(&cart).Select("is_active", "subtotal", "grand_total", "updated_at").Updates(&cart).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate cart")
		}
		orderID = order.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return orderID, nil
}

func (r *repository) Load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Invoices").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return &order, nil
}

// Save updates the mutable order columns and appends unsaved history entries.
func (r *repository) Save(ctx context.Context, order *models.Order) error {
	if order == nil || order.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveOrder(tx, order)
	})
}

func saveOrder(tx *gorm.DB, order *models.Order) error {
	res := tx.Model(order).Select(savedOrderColumns).Updates(order)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "save order")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", order.ID)
	}
	for i := range order.History {
		entry := &order.History[i]
		if entry.ID != uuid.Nil {
			continue
		}
		entry.OrderID = order.ID
		if err := tx.Create(entry).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append order history")
		}
	}
	return nil
}

// SaveTx is used by stores that must persist an order inside their own transaction.
func SaveTx(tx *gorm.DB, order *models.Order) error {
	return saveOrder(tx, order)
}

// RecordTransaction stores the provider transaction id for the order. Recording the same
// id for the same order again is a no-op; the id may never move to another order.
func (r *repository) RecordTransaction(ctx context.Context, order *models.Order, txnID string) error {
	if order == nil || order.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	txnType := enums.PaymentTxnOrder
	if order.State == enums.OrderStateProcessing {
		txnType = enums.PaymentTxnCapture
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.PaymentTransaction
		err := tx.Where("txn_id = ?", txnID).First(&existing).Error
		switch {
		case err == nil:
			if existing.OrderID != order.ID {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "transaction %s belongs to another order", txnID)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			record := models.PaymentTransaction{OrderID: order.ID, TxnID: txnID, TxnType: txnType}
			if err := tx.Create(&record).Error; err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "transaction already recorded")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record transaction")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup transaction")
		}

		order.PaymentTxnID = &txnID
		if err := tx.Model(order).Update("payment_txn_id", txnID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach transaction to order")
		}
		return nil
	})
}

// ListUninvoicedOrders returns orders paid with paymentMethod since the cutoff that still
// have an uninvoiced balance and are in an invoiceable state.
func (r *repository) ListUninvoicedOrders(ctx context.Context, paymentMethod string, since time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_method = ?", paymentMethod).
		Where("created_at >= ?", since).
		Where("total_invoiced < grand_total").
		Where("state NOT IN ?", []enums.OrderState{
			enums.OrderStateCanceled,
			enums.OrderStateHolded,
			enums.OrderStateComplete,
			enums.OrderStateClosed,
		}).
		Order("created_at ASC").
		Limit(uninvoicedLimit).
		Find(&orders).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list uninvoiced orders")
	}
	return orders, nil
}
