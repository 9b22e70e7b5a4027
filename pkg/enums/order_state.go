package enums

import "fmt"

// OrderState is the coarse lifecycle state of a storefront order.
type OrderState string

const (
	OrderStateNew            OrderState = "new"
	OrderStatePendingPayment OrderState = "pending_payment"
	OrderStateProcessing     OrderState = "processing"
	OrderStateComplete       OrderState = "complete"
	OrderStateClosed         OrderState = "closed"
	OrderStateCanceled       OrderState = "canceled"
	OrderStateHolded         OrderState = "holded"
)

var validOrderStates = []OrderState{
	OrderStateNew,
	OrderStatePendingPayment,
	OrderStateProcessing,
	OrderStateComplete,
	OrderStateClosed,
	OrderStateCanceled,
	OrderStateHolded,
}

var defaultOrderStatuses = map[OrderState]string{
	OrderStateNew:            "pending",
	OrderStatePendingPayment: "pending_payment",
	OrderStateProcessing:     "processing",
	OrderStateComplete:       "complete",
	OrderStateClosed:         "closed",
	OrderStateCanceled:       "canceled",
	OrderStateHolded:         "holded",
}

// String implements fmt.Stringer.
func (s OrderState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderState.
func (s OrderState) IsValid() bool {
	for _, candidate := range validOrderStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// DefaultStatus returns the status label an order gets when it enters the state.
func (s OrderState) DefaultStatus() string {
	return defaultOrderStatuses[s]
}

// AcceptsInvoice reports whether orders in this state may still be invoiced.
func (s OrderState) AcceptsInvoice() bool {
	switch s {
	case OrderStateCanceled, OrderStateHolded, OrderStateComplete, OrderStateClosed:
		return false
	}
	return true
}

// ParseOrderState converts raw input into an OrderState.
func ParseOrderState(value string) (OrderState, error) {
	for _, candidate := range validOrderStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order state %q", value)
}
