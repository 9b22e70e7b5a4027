package reconcile

import (
	"context"

	"github.com/angelmondragon/orderrecon/pkg/laybuy"
)

type laybuyAPI interface {
	Confirm(ctx context.Context, token string) (string, error)
	OrderByID(ctx context.Context, orderID string) (*laybuy.Order, error)
	OrderByMerchantReference(ctx context.Context, reference string) (*laybuy.Order, error)
}

// LaybuyProvider adapts the Laybuy API client to Provider.
type LaybuyProvider struct {
	api laybuyAPI
}

func NewLaybuyProvider(api laybuyAPI) *LaybuyProvider {
	return &LaybuyProvider{api: api}
}

func (p *LaybuyProvider) ConfirmByToken(ctx context.Context, token string) (string, error) {
	return p.api.Confirm(ctx, token)
}

func (p *LaybuyProvider) GetOrderByID(ctx context.Context, remoteOrderID string) (*RemoteOrderState, error) {
	order, err := p.api.OrderByID(ctx, remoteOrderID)
	return toRemoteState(order), err
}

// GetOrderByIncrementID looks the order up by the merchant reference the store sent at checkout.
func (p *LaybuyProvider) GetOrderByIncrementID(ctx context.Context, incrementID string) (*RemoteOrderState, error) {
	order, err := p.api.OrderByMerchantReference(ctx, incrementID)
	return toRemoteState(order), err
}

func toRemoteState(order *laybuy.Order) *RemoteOrderState {
	if order == nil {
		return nil
	}
	return &RemoteOrderState{
		RemoteOrderID: order.OrderID,
		Amount:        order.Amount,
		Currency:      order.Currency,
		HasRefunds:    order.HasRefunds,
		Raw:           order.Raw,
	}
}
