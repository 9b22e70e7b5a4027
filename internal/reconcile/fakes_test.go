package reconcile

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderrecon/pkg/db/models"
	"github.com/angelmondragon/orderrecon/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderrecon/pkg/errors"
	"github.com/angelmondragon/orderrecon/pkg/logger"
)

const testMethod = "laybuy_payment"

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type fakeProvider struct {
	mu           sync.Mutex
	confirm      func(token string, attempt int) (string, error)
	confirmCalls map[string]int
	orders       map[string]*RemoteOrderState
	byIncrement  map[string]*RemoteOrderState
	detailErr    error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		confirmCalls: map[string]int{},
		orders:       map[string]*RemoteOrderState{},
		byIncrement:  map[string]*RemoteOrderState{},
	}
}

// charge registers a confirmed provider order for token.
func (p *fakeProvider) charge(token, remoteID, amount string) *RemoteOrderState {
	state := &RemoteOrderState{
		RemoteOrderID: remoteID,
		Amount:        decimal.RequireFromString(amount),
		Currency:      "NZD",
		Raw:           []byte(`{"orderId":"` + remoteID + `"}`),
	}
	p.orders[remoteID] = state
	prev := p.confirm
	p.confirm = func(t string, attempt int) (string, error) {
		if t == token {
			return remoteID, nil
		}
		if prev != nil {
			return prev(t, attempt)
		}
		return "", nil
	}
	return state
}

func (p *fakeProvider) ConfirmByToken(_ context.Context, token string) (string, error) {
	p.mu.Lock()
	p.confirmCalls[token]++
	attempt := p.confirmCalls[token]
	p.mu.Unlock()
	if p.confirm == nil {
		return "", nil
	}
	return p.confirm(token, attempt)
}

func (p *fakeProvider) GetOrderByID(_ context.Context, remoteOrderID string) (*RemoteOrderState, error) {
	if p.detailErr != nil {
		return nil, p.detailErr
	}
	return p.orders[remoteOrderID], nil
}

func (p *fakeProvider) GetOrderByIncrementID(_ context.Context, incrementID string) (*RemoteOrderState, error) {
	if p.detailErr != nil {
		return nil, p.detailErr
	}
	return p.byIncrement[incrementID], nil
}

type fakeCarts struct {
	carts   map[uuid.UUID]*models.Cart
	saves   []bool
	saveErr error
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: map[uuid.UUID]*models.Cart{}}
}

// add stores a cart with one line worth total and returns its candidate.
func (f *fakeCarts) add(storeID uuid.UUID, token, total string) Candidate {
	cart := &models.Cart{
		ID:       uuid.New(),
		StoreID:  storeID,
		Currency: "NZD",
		Items: []models.CartItem{
			{SKU: "sku-1", Qty: 1, UnitPrice: decimal.RequireFromString(total)},
		},
		Payment: &models.CartPayment{Method: testMethod, AdditionalInformation: `{"Token":"` + token + `"}`},
	}
	f.carts[cart.ID] = cart
	return Candidate{
		CartID:            cart.ID,
		StoreID:           storeID,
		RawSessionPayload: cart.Payment.AdditionalInformation,
		UpdatedAt:         time.Now(),
	}
}

func (f *fakeCarts) Load(_ context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, ok := f.carts[cartID]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "cart %s not found", cartID)
	}
	clone := *cart
	clone.Items = append([]models.CartItem(nil), cart.Items...)
	return &clone, nil
}

func (f *fakeCarts) Save(_ context.Context, cart *models.Cart) error {
	f.saves = append(f.saves, cart.IsActive)
	if f.saveErr != nil {
		return f.saveErr
	}
	stored, ok := f.carts[cart.ID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	stored.IsActive = cart.IsActive
	return nil
}

func (f *fakeCarts) active(cartID uuid.UUID) bool {
	return f.carts[cartID].IsActive
}

type fakeOrders struct {
	carts     *fakeCarts
	orders    map[uuid.UUID]*models.Order
	seq       int
	placeErr  error
	saveErr   error
	loadErr   error
	placeHook func()
}

func newFakeOrders(carts *fakeCarts) *fakeOrders {
	return &fakeOrders{carts: carts, orders: map[uuid.UUID]*models.Order{}}
}

func (f *fakeOrders) PlaceOrder(_ context.Context, cartID uuid.UUID) (uuid.UUID, error) {
	if f.placeHook != nil {
		f.placeHook()
	}
	if f.placeErr != nil {
		return uuid.Nil, f.placeErr
	}
	cart, ok := f.carts.carts[cartID]
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	if !cart.IsActive {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is not active")
	}
	cart.CollectTotals()
	f.seq++
	order := &models.Order{
		ID:            uuid.New(),
		IncrementID:   (&models.OrderSequence{ID: uint64(f.seq)}).IncrementID(),
		CartID:        cart.ID,
		StoreID:       cart.StoreID,
		Currency:      cart.Currency,
		State:         enums.OrderStateNew,
		Status:        enums.OrderStateNew.DefaultStatus(),
		GrandTotal:    cart.GrandTotal,
		PaymentMethod: cart.Payment.Method,
	}
	f.orders[order.ID] = order
	cart.IsActive = false
	return order.ID, nil
}

func (f *fakeOrders) add(order *models.Order) {
	f.orders[order.ID] = order
}

func (f *fakeOrders) Load(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	order, ok := f.orders[orderID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	clone := *order
	clone.History = append([]models.OrderStatusHistory(nil), order.History...)
	return &clone, nil
}

func (f *fakeOrders) Save(_ context.Context, order *models.Order) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	clone := *order
	clone.History = append([]models.OrderStatusHistory(nil), order.History...)
	f.orders[order.ID] = &clone
	return nil
}

func (f *fakeOrders) only() *models.Order {
	for _, order := range f.orders {
		return order
	}
	return nil
}

type fakeTxns struct {
	recorded map[string]uuid.UUID
	err      error
}

func newFakeTxns() *fakeTxns {
	return &fakeTxns{recorded: map[string]uuid.UUID{}}
}

func (f *fakeTxns) RecordTransaction(_ context.Context, order *models.Order, txnID string) error {
	if f.err != nil {
		return f.err
	}
	if owner, ok := f.recorded[txnID]; ok && owner != order.ID {
		return pkgerrors.New(pkgerrors.CodeConflict, "transaction belongs to another order")
	}
	f.recorded[txnID] = order.ID
	order.PaymentTxnID = &txnID
	return nil
}

type fakeInvoices struct {
	orders  *fakeOrders
	byTxn   map[string]*models.Invoice
	saveErr error
}

func newFakeInvoices(orders *fakeOrders) *fakeInvoices {
	return &fakeInvoices{orders: orders, byTxn: map[string]*models.Invoice{}}
}

func (f *fakeInvoices) Prepare(_ context.Context, order *models.Order) (*models.Invoice, error) {
	if !order.CanInvoice() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be invoiced")
	}
	return models.NewInvoice(order), nil
}

func (f *fakeInvoices) SaveAtomic(ctx context.Context, invoice *models.Invoice, order *models.Order) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := f.byTxn[invoice.TransactionID]; ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "invoice already exists for transaction")
	}
	invoice.ID = uuid.New()
	f.byTxn[invoice.TransactionID] = invoice
	return f.orders.Save(ctx, order)
}

type fakeNotifier struct {
	mu            sync.Mutex
	reports       []GroupedReport
	confirmations []*models.Order
	invoices      []*models.Invoice
	reportErr     error
	confirmErr    error
	confirmPanic  bool
}

func (f *fakeNotifier) SendGroupedReport(_ context.Context, report GroupedReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return f.reportErr
}

func (f *fakeNotifier) SendInvoice(_ context.Context, invoice *models.Invoice) error {
	f.invoices = append(f.invoices, invoice)
	return nil
}

func (f *fakeNotifier) SendOrderConfirmation(_ context.Context, order *models.Order) error {
	if f.confirmPanic {
		panic("mailer exploded")
	}
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmations = append(f.confirmations, order)
	return nil
}

// sliceSource yields fixed candidates, then err if set.
type sliceSource struct {
	candidates []Candidate
	err        error
	since      time.Time
	method     string
}

func (s *sliceSource) ListPendingCarts(_ context.Context, paymentMethod string, since time.Time) iter.Seq2[Candidate, error] {
	s.method = paymentMethod
	s.since = since
	return func(yield func(Candidate, error) bool) {
		for _, c := range s.candidates {
			if !yield(c, nil) {
				return
			}
		}
		if s.err != nil {
			yield(Candidate{}, s.err)
		}
	}
}

type recordingRecorder struct {
	runs []RunSummary
	err  error
}

func (r *recordingRecorder) RecordRun(_ context.Context, summary RunSummary) error {
	r.runs = append(r.runs, summary)
	return r.err
}

var errBoom = errors.New("boom")
