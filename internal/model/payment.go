package model

import "time"

// PaymentStatus represents payment lifecycle state.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment represents a completed or attempted purchase.
type Payment struct {
	ID                string        `json:"id"`
	ProductID         string        `json:"product_id"`
	CouponID          *string       `json:"coupon_id,omitempty"`
	CustomerEmail     string        `json:"customer_email"`
	AmountCents       int64         `json:"amount_cents"`
	Currency          string        `json:"currency"`
	IncludeBump       bool          `json:"include_bump"`
	Status            PaymentStatus `json:"status"`
	ProcessorChargeID string        `json:"processor_charge_id,omitempty"`
	FailureReason     string        `json:"failure_reason,omitempty"`
	RefundedAt        *time.Time    `json:"refunded_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// IsRefundable returns true if the payment can be refunded.
func (p *Payment) IsRefundable() bool {
	return p.Status == PaymentStatusSucceeded
}
