package main

import (
	"strconv"
	"time"

	"github.com/angelmondragon/orderrecon/pkg/config"
	"github.com/angelmondragon/orderrecon/pkg/enums"
	"github.com/angelmondragon/orderrecon/pkg/outbox/payloads"
)

// deliveryPolicy decides how long a row keeps being retried and which
// attributes its Pub/Sub message carries. Rows whose event is older than
// staleAfter are parked; zero never parks.
type deliveryPolicy struct {
	maxAttempts int
	staleAfter  time.Duration
	attributes  func(payload any) map[string]string
}

func (p deliveryPolicy) stale(occurredAt, now time.Time) bool {
	if p.staleAfter <= 0 || occurredAt.IsZero() {
		return false
	}
	return now.Sub(occurredAt) > p.staleAfter
}

type deliveryPolicies struct {
	byType   map[enums.OutboxEventType]deliveryPolicy
	fallback deliveryPolicy
}

// newDeliveryPolicies builds the policy table. Run reports keep the full
// attempt budget; customer emails get the email budget, capped at the full
// one, and stop being sent once they are stale.
func newDeliveryPolicies(cfg config.OutboxConfig, maxAttempts int) deliveryPolicies {
	emailAttempts := cfg.EmailMaxAttempts
	if emailAttempts <= 0 || emailAttempts > maxAttempts {
		emailAttempts = maxAttempts
	}
	email := func(attrs func(any) map[string]string) deliveryPolicy {
		return deliveryPolicy{maxAttempts: emailAttempts, staleAfter: cfg.EmailStaleAfter, attributes: attrs}
	}
	return deliveryPolicies{
		byType: map[enums.OutboxEventType]deliveryPolicy{
			enums.EventReconcileReportReady:       {maxAttempts: maxAttempts, attributes: reportAttributes},
			enums.EventOrderConfirmationRequested: email(orderConfirmationAttributes),
			enums.EventInvoiceEmailRequested:      email(invoiceEmailAttributes),
		},
		fallback: deliveryPolicy{maxAttempts: maxAttempts},
	}
}

func (p deliveryPolicies) forEvent(eventType enums.OutboxEventType) deliveryPolicy {
	if policy, ok := p.byType[eventType]; ok {
		return policy
	}
	return p.fallback
}

func reportAttributes(payload any) map[string]string {
	report, ok := payload.(*payloads.ReconcileReportReady)
	if !ok || report == nil {
		return nil
	}
	failures := 0
	for _, store := range report.Stores {
		for _, result := range store.Results {
			if !result.Success {
				failures++
			}
		}
	}
	attrs := map[string]string{
		"run_id":        report.RunID.String(),
		"store_count":   strconv.Itoa(len(report.Stores)),
		"failure_count": strconv.Itoa(failures),
	}
	if report.Label != "" {
		attrs["run_label"] = report.Label
	}
	return attrs
}

func orderConfirmationAttributes(payload any) map[string]string {
	confirmation, ok := payload.(*payloads.OrderConfirmationRequested)
	if !ok || confirmation == nil {
		return nil
	}
	return map[string]string{
		"order_id":     confirmation.OrderID.String(),
		"increment_id": confirmation.IncrementID,
		"store_id":     confirmation.StoreID.String(),
	}
}

func invoiceEmailAttributes(payload any) map[string]string {
	invoice, ok := payload.(*payloads.InvoiceEmailRequested)
	if !ok || invoice == nil {
		return nil
	}
	return map[string]string{
		"invoice_id":     invoice.InvoiceID.String(),
		"order_id":       invoice.OrderID.String(),
		"increment_id":   invoice.IncrementID,
		"store_id":       invoice.StoreID.String(),
		"transaction_id": invoice.TransactionID,
	}
}
