package dto

// CreatePaymentRequest represents the request body for a checkout.
type CreatePaymentRequest struct {
	ProductID     string `json:"product_id"`
	CouponCode    string `json:"coupon_code,omitempty"`
	CustomerEmail string `json:"customer_email"`
	IncludeBump   bool   `json:"include_bump,omitempty"`
}

// CreateRefundRequestRequest represents the body for opening a refund request.
type CreateRefundRequestRequest struct {
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason,omitempty"`
}

// ResolveRefundRequest represents the body for approving or rejecting
// a refund request.
type ResolveRefundRequest struct {
	Note string `json:"note,omitempty"`
}
