package model

import "time"

// RefundStatus represents refund request lifecycle state.
type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRejected RefundStatus = "rejected"
)

// RefundRequest represents a customer's request to refund a payment.
type RefundRequest struct {
	ID             string       `json:"id"`
	PaymentID      string       `json:"payment_id"`
	Reason         string       `json:"reason,omitempty"`
	Status         RefundStatus `json:"status"`
	ResolutionNote string       `json:"resolution_note,omitempty"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// IsResolved returns true once the request has been approved or rejected.
func (r *RefundRequest) IsResolved() bool {
	return r.Status != RefundStatusPending
}
