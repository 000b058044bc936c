package model

import (
	"slices"
	"time"
)

// CouponType distinguishes percentage and fixed-amount discounts.
type CouponType string

const (
	CouponPercent CouponType = "percent"
	CouponFixed   CouponType = "fixed"
)

// IsValidCouponType checks if a coupon type is valid.
func IsValidCouponType(t CouponType) bool {
	return t == CouponPercent || t == CouponFixed
}

// Coupon represents a discount code.
type Coupon struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	Type           CouponType `json:"type"`
	Value          int64      `json:"value"` // percent 1..100, or cents for fixed
	MaxRedemptions int        `json:"max_redemptions"` // 0 = unlimited
	RedeemedCount  int        `json:"redeemed_count"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
	AppliesTo      []string   `json:"applies_to,omitempty"` // product IDs, empty = all
	Active         bool       `json:"active"`
	DeletedAt      *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsDeleted returns true if the coupon is soft-deleted.
func (c *Coupon) IsDeleted() bool {
	return c.DeletedAt != nil
}

// IsWithinWindow checks the validity window at the given time.
func (c *Coupon) IsWithinWindow(now time.Time) bool {
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return false
	}
	return true
}

// IsExhausted returns true once the redemption cap is reached.
func (c *Coupon) IsExhausted() bool {
	return c.MaxRedemptions > 0 && c.RedeemedCount >= c.MaxRedemptions
}

// AppliesToProduct checks product scoping. An empty AppliesTo list
// means the coupon is valid for every product.
func (c *Coupon) AppliesToProduct(productID string) bool {
	if len(c.AppliesTo) == 0 {
		return true
	}
	return slices.Contains(c.AppliesTo, productID)
}

// IsRedeemable combines all redemption checks.
func (c *Coupon) IsRedeemable(productID string, now time.Time) bool {
	return c.Active && !c.IsDeleted() && c.IsWithinWindow(now) &&
		!c.IsExhausted() && c.AppliesToProduct(productID)
}

// DiscountCents computes the discount for a base price.
// The result never exceeds the base price.
func (c *Coupon) DiscountCents(basePriceCents int64) int64 {
	var discount int64
	switch c.Type {
	case CouponPercent:
		discount = basePriceCents * c.Value / 100
	case CouponFixed:
		discount = c.Value
	}
	if discount > basePriceCents {
		return basePriceCents
	}
	if discount < 0 {
		return 0
	}
	return discount
}
