// Package analytics provides payment event capture and revenue aggregation.
package analytics

import (
	"fmt"

	"github.com/gateflow/gateflow/internal/model"
)

// ValidatePaymentEventPayload validates payment event payload fields.
func ValidatePaymentEventPayload(payload PaymentEventPayload) error {
	if payload.PaymentID == "" {
		return fmt.Errorf("payment_id is required")
	}
	if payload.ProductID == "" {
		return fmt.Errorf("product_id is required")
	}
	if payload.Kind != KindSucceeded && payload.Kind != KindRefunded {
		return fmt.Errorf("unknown event kind %q", payload.Kind)
	}
	if payload.AmountCents < 0 {
		return fmt.Errorf("amount_cents must not be negative")
	}
	if !model.IsSupportedCurrency(payload.Currency) {
		return fmt.Errorf("unsupported currency %q", payload.Currency)
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	return nil
}
