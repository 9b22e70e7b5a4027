package models

// All lists every table the service owns, in dependency order.
func All() []any {
	return []any{
		&Cart{},
		&CartItem{},
		&CartPayment{},
		&OrderSequence{},
		&Order{},
		&OrderItem{},
		&OrderStatusHistory{},
		&Invoice{},
		&PaymentTransaction{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
