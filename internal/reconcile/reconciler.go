package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderrecon/pkg/db/models"
	"github.com/angelmondragon/orderrecon/pkg/logger"
	"github.com/angelmondragon/orderrecon/pkg/metrics"
	"github.com/angelmondragon/orderrecon/pkg/money"
	"github.com/angelmondragon/orderrecon/pkg/retry"
)

const (
	flowOrder   = "order"
	flowInvoice = "invoice"
)

// Limits bounds the cart totals the provider accepts.
type Limits struct {
	MinOrderTotal decimal.Decimal
	MaxOrderTotal decimal.Decimal
}

// ReconcilerParams wires the collaborators of a Reconciler.
type ReconcilerParams struct {
	Logger        *logger.Logger
	Provider      Provider
	Carts         CartStore
	Orders        OrderStore
	Transactions  TransactionRecorder
	Notifier      Notifier
	Limits        Limits
	ConfirmPolicy *retry.Policy
	Metrics       *metrics.ReconcileMetrics
}

// Reconciler turns a charged cart into an order when the provider confirms the charge.
type Reconciler struct {
	logg          *logger.Logger
	provider      Provider
	carts         CartStore
	orders        OrderStore
	txns          TransactionRecorder
	notifier      Notifier
	limits        Limits
	confirmPolicy retry.Policy
	metrics       *metrics.ReconcileMetrics
}

func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("provider required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transaction recorder required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Limits.MaxOrderTotal.LessThan(params.Limits.MinOrderTotal) {
		return nil, fmt.Errorf("max order total must be >= min order total")
	}
	policy := retry.ConfirmPolicy()
	if params.ConfirmPolicy != nil {
		policy = *params.ConfirmPolicy
	}
	return &Reconciler{
		logg:          params.Logger,
		provider:      params.Provider,
		carts:         params.Carts,
		orders:        params.Orders,
		txns:          params.Transactions,
		notifier:      params.Notifier,
		limits:        params.Limits,
		confirmPolicy: policy,
		metrics:       params.Metrics,
	}, nil
}

// progress tracks how far one candidate got; it outlives a panic.
type progress struct {
	state         State
	remoteOrderID string
	orderID       uuid.UUID
}

func (p *progress) result(c Candidate) Result {
	return Result{
		State:         p.state,
		StoreID:       c.StoreID,
		CartID:        c.CartID,
		OrderID:       p.orderID,
		RemoteOrderID: p.remoteOrderID,
	}
}

// ReconcileCandidate runs the full state machine for one candidate. It never
// returns an error and never panics: every failure becomes a failed Result.
func (r *Reconciler) ReconcileCandidate(ctx context.Context, c Candidate) (result Result) {
	ctx = r.logg.WithStoreID(ctx, c.StoreID.String())
	ctx = r.logg.WithCartID(ctx, c.CartID.String())
	p := &progress{state: StateStart}

	defer func() {
		if rec := recover(); rec != nil {
			err := failf(ReasonPanic, p.state, "panic: %v", rec)
			r.logg.Error(ctx, "reconciliation panicked", err)
			result = failedResult(p.result(c), err)
		}
		r.metrics.IncOutcome(flowOrder, string(result.Reason))
	}()

	if err := r.reconcile(ctx, c, p); err != nil {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"reason": err.Reason,
			"state":  err.State,
			"error":  err.Error(),
		}), "candidate not reconciled")
		return failedResult(p.result(c), err)
	}

	res := p.result(c)
	res.Success = true
	return res
}

func (r *Reconciler) reconcile(ctx context.Context, c Candidate, p *progress) *Error {
	token := strings.TrimSpace(c.SessionToken)
	if token == "" {
		extracted, err := ExtractToken(c.RawSessionPayload)
		if err != nil {
			return fail(ReasonMalformedSessionData, p.state, err)
		}
		token = extracted
	}
	p.state = StateTokenExtracted

	remoteOrderID, err := r.resolveRemoteOrder(ctx, token)
	if err != nil {
		return fail(ReasonRemoteOrderNotFound, p.state, err)
	}
	p.remoteOrderID = remoteOrderID
	p.state = StateRemoteOrderResolved
	ctx = r.logg.WithField(ctx, "remote_order_id", remoteOrderID)

	remote, err := r.provider.GetOrderByID(ctx, remoteOrderID)
	if err != nil {
		return fail(ReasonRemoteOrderDetailUnavailable, p.state, err)
	}
	if remote == nil {
		return failf(ReasonRemoteOrderDetailUnavailable, p.state, "provider returned no detail for order %s", remoteOrderID)
	}
	p.state = StateRemoteOrderFetched

	cart, verr := r.validate(ctx, c.CartID, remote)
	if verr != nil {
		r.logg.Error(r.logg.WithField(ctx, "remote_order", string(remote.Raw)), "cart failed validation against provider order", verr)
		return fail(ReasonValidationFailed, p.state, verr)
	}
	p.state = StateValidated

	return r.createOrder(ctx, p, cart, token)
}

// resolveRemoteOrder confirms the token, retrying empty answers and errors alike.
func (r *Reconciler) resolveRemoteOrder(ctx context.Context, token string) (string, error) {
	remoteOrderID, attempts, err := retry.Bounded(ctx, r.confirmPolicy, func(ctx context.Context, attempt int) (string, error) {
		id, err := r.provider.ConfirmByToken(ctx, token)
		if err != nil {
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
				"attempt": attempt,
				"error":   err.Error(),
			}), "confirm by token failed")
		}
		return strings.TrimSpace(id), err
	})
	r.metrics.ObserveConfirmAttempts(attempts)
	if err != nil {
		return "", fmt.Errorf("confirm token after %d attempts: %w", attempts, err)
	}
	return remoteOrderID, nil
}

var (
	errCartEmpty        = errors.New("cart has no items")
	errTotalOutOfBounds = errors.New("cart total outside provider limits")
	errRemoteRefunded   = errors.New("provider order has refunds")
	errAmountMismatch   = errors.New("cart total does not match provider amount")
	errCurrencyMismatch = errors.New("cart currency does not match provider currency")
)

// validate reloads the cart and checks it against the provider's order.
func (r *Reconciler) validate(ctx context.Context, cartID uuid.UUID, remote *RemoteOrderState) (*models.Cart, error) {
	cart, err := r.carts.Load(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart == nil {
		return nil, fmt.Errorf("cart %s not found", cartID)
	}
	cart.CollectTotals()

	switch {
	case cart.ItemCount() == 0:
		return nil, errCartEmpty
	case !money.Within(cart.Total(), r.limits.MinOrderTotal, r.limits.MaxOrderTotal):
		return nil, fmt.Errorf("%w: %s not in [%s, %s]", errTotalOutOfBounds, cart.Total(), r.limits.MinOrderTotal, r.limits.MaxOrderTotal)
	case remote.HasRefunds:
		return nil, errRemoteRefunded
	case !money.Equal(cart.Total(), remote.Amount):
		return nil, fmt.Errorf("%w: cart %s remote %s", errAmountMismatch, cart.Total(), remote.Amount)
	case cart.Currency != "" && remote.Currency != "" && !strings.EqualFold(cart.Currency, remote.Currency):
		return nil, fmt.Errorf("%w: cart %s remote %s", errCurrencyMismatch, cart.Currency, remote.Currency)
	}
	return cart, nil
}

// createOrder converts the cart. Any failure after the first write leaves the cart inactive.
func (r *Reconciler) createOrder(ctx context.Context, p *progress, cart *models.Cart, token string) *Error {
	defer func() {
		if rec := recover(); rec != nil {
			r.rollback(ctx, cart)
			panic(rec)
		}
	}()

	if err := r.persistOrder(ctx, p, cart, token); err != nil {
		r.logg.Error(ctx, "can't create new order", err)
		r.rollback(ctx, cart)
		return fail(ReasonOrderCreationFailed, p.state, err)
	}
	return nil
}

func (r *Reconciler) persistOrder(ctx context.Context, p *progress, cart *models.Cart, token string) error {
	if !cart.Active() {
		cart.SetActive(true)
		if err := r.carts.Save(ctx, cart); err != nil {
			return fmt.Errorf("reactivate cart: %w", err)
		}
	}

	orderID, err := r.orders.PlaceOrder(ctx, cart.ID)
	if err != nil {
		return fmt.Errorf("place order: %w", err)
	}
	p.orderID = orderID
	ctx = r.logg.WithOrderID(ctx, orderID.String())

	order, err := r.orders.Load(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	order.AddAuditComment(AuditCreatedComment)
	if err := r.orders.Save(ctx, order); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	p.state = StateOrderCreated

	if err := r.txns.RecordTransaction(ctx, order, TransactionID(p.remoteOrderID, token)); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	p.state = StateTransactionRecorded

	if err := r.notifier.SendOrderConfirmation(ctx, order); err != nil {
		return fmt.Errorf("send order confirmation: %w", err)
	}
	p.state = StateSuccess

	r.logg.Info(ctx, "order created from charged cart")
	return nil
}

func (r *Reconciler) rollback(ctx context.Context, cart *models.Cart) {
	cart.SetActive(false)
	if err := r.carts.Save(ctx, cart); err != nil {
		r.logg.Error(ctx, "failed to deactivate cart after order failure", err)
	}
}
