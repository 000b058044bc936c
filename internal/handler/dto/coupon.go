package dto

import (
	"time"

	"github.com/gateflow/gateflow/internal/model"
)

// CreateCouponRequest represents the request body for creating a coupon.
type CreateCouponRequest struct {
	Code           string     `json:"code"`
	Type           string     `json:"type"`
	Value          int64      `json:"value"`
	MaxRedemptions int        `json:"max_redemptions,omitempty"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
	AppliesTo      []string   `json:"applies_to,omitempty"`
	Active         *bool      `json:"active,omitempty"`
}

// UpdateCouponRequest represents the request body for updating a coupon.
// Code and type are immutable and therefore absent here.
type UpdateCouponRequest struct {
	Value          *int64     `json:"value"`
	MaxRedemptions *int       `json:"max_redemptions"`
	ValidFrom      *time.Time `json:"valid_from"`
	ValidUntil     *time.Time `json:"valid_until"`
	AppliesTo      []string   `json:"applies_to"`
	Active         *bool      `json:"active"`
	ClearWindow    bool       `json:"clear_window"`
}

// ValidateCouponRequest represents the request body for previewing a coupon.
type ValidateCouponRequest struct {
	Code      string `json:"code"`
	ProductID string `json:"product_id"`
}

// ValidateCouponResponse is the discount preview for a checkout page.
type ValidateCouponResponse struct {
	Valid         bool          `json:"valid"`
	Coupon        *model.Coupon `json:"coupon,omitempty"`
	DiscountCents int64         `json:"discount_cents"`
	FinalCents    int64         `json:"final_cents"`
}
