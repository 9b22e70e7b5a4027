package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/db/dbtest"
	"github.com/angelmondragon/orderrecon/pkg/db/models"
	"github.com/angelmondragon/orderrecon/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderrecon/pkg/errors"
)

const laybuyMethod = "laybuy_payment"

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seedCart(t *testing.T, db *gorm.DB, storeID uuid.UUID, updatedAt time.Time, method, payload string) models.Cart {
	t.Helper()
	cart := models.Cart{
		StoreID:   storeID,
		Currency:  "NZD",
		IsActive:  false,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
		Items: []models.CartItem{
			{SKU: "sku-1", Name: "Widget", Qty: 2, UnitPrice: decimal.RequireFromString("10.50")},
		},
		Payment: &models.CartPayment{Method: method, AdditionalInformation: payload},
	}
	require.NoError(t, db.Create(&cart).Error)
	return cart
}

func newTestRepo(db *gorm.DB, pageSize int) *repository {
	return &repository{
		db:       db,
		pageSize: pageSize,
		now:      func() time.Time { return baseTime.Add(time.Hour) },
	}
}

func collect(t *testing.T, repo Repository, since time.Time) []reconcile.Candidate {
	t.Helper()
	var out []reconcile.Candidate
	for candidate, err := range repo.ListPendingCarts(context.Background(), laybuyMethod, since) {
		require.NoError(t, err)
		out = append(out, candidate)
	}
	return out
}

func TestListPendingCartsFiltersByPredicate(t *testing.T) {
	db := dbtest.Open(t)
	repo := newTestRepo(db, 100)
	storeID := uuid.New()
	payload := `{"Token":"tok-1"}`

	pending := seedCart(t, db, storeID, baseTime.Add(-10*time.Minute), laybuyMethod, payload)
	seedCart(t, db, storeID, baseTime.Add(-3*time.Hour), laybuyMethod, payload)
	seedCart(t, db, storeID, baseTime.Add(-5*time.Minute), "checkmo", payload)
	seedCart(t, db, storeID, baseTime.Add(-5*time.Minute), laybuyMethod, "  ")

	converted := seedCart(t, db, storeID, baseTime.Add(-5*time.Minute), laybuyMethod, payload)
	require.NoError(t, db.Create(&models.Order{
		IncrementID:   "100000001",
		CartID:        converted.ID,
		StoreID:       storeID,
		Currency:      "NZD",
		State:         enums.OrderStateNew,
		Status:        enums.OrderStateNew.DefaultStatus(),
		PaymentMethod: laybuyMethod,
	}).Error)

	got := collect(t, repo, baseTime.Add(-time.Hour))
	require.Len(t, got, 1)
	assert.Equal(t, pending.ID, got[0].CartID)
	assert.Equal(t, storeID, got[0].StoreID)
	assert.Equal(t, payload, got[0].RawSessionPayload)
}

func TestListPendingCartsPagesInUpdateOrder(t *testing.T) {
	db := dbtest.Open(t)
	repo := newTestRepo(db, 2)

	var want []uuid.UUID
	for i := 0; i < 5; i++ {
		cart := seedCart(t, db, uuid.New(), baseTime.Add(time.Duration(i-10)*time.Minute), laybuyMethod, `{"Token":"t"}`)
		want = append(want, cart.ID)
	}

	got := collect(t, repo, baseTime.Add(-time.Hour))
	require.Len(t, got, len(want))
	for i, candidate := range got {
		assert.Equal(t, want[i], candidate.CartID, "position %d", i)
	}
}

func TestListPendingCartsEmptyIsNoop(t *testing.T) {
	db := dbtest.Open(t)
	assert.Empty(t, collect(t, newTestRepo(db, 10), baseTime.Add(-time.Hour)))
}

func TestListPendingCartsStopsWhenConsumerBreaks(t *testing.T) {
	db := dbtest.Open(t)
	repo := newTestRepo(db, 1)
	for i := 0; i < 3; i++ {
		seedCart(t, db, uuid.New(), baseTime.Add(time.Duration(-i-1)*time.Minute), laybuyMethod, `{"Token":"t"}`)
	}

	seen := 0
	for _, err := range repo.ListPendingCarts(context.Background(), laybuyMethod, baseTime.Add(-time.Hour)) {
		require.NoError(t, err)
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestListPendingCartsYieldsQueryErrorOnce(t *testing.T) {
	db := dbtest.Open(t, &models.Cart{})
	repo := newTestRepo(db, 10)

	var errs int
	for _, err := range repo.ListPendingCarts(context.Background(), laybuyMethod, baseTime.Add(-time.Hour)) {
		if err != nil {
			errs++
		}
	}
	assert.Equal(t, 1, errs)
}

func TestLoadAndSaveCart(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	seeded := seedCart(t, db, uuid.New(), baseTime, laybuyMethod, `{"Token":"t"}`)

	cart, err := repo.Load(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.NotNil(t, cart.Payment)
	assert.False(t, cart.Active())

	cart.CollectTotals()
	cart.SetActive(true)
	require.NoError(t, repo.Save(context.Background(), cart))

	reloaded, err := repo.Load(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Active())
	assert.True(t, reloaded.GrandTotal.Equal(decimal.RequireFromString("21")))

	reloaded.SetActive(false)
	require.NoError(t, repo.Save(context.Background(), reloaded))
	again, err := repo.Load(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.False(t, again.Active())
}

func TestLoadMissingCartIsNotFound(t *testing.T) {
	db := dbtest.Open(t)
	_, err := NewRepository(db).Load(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
