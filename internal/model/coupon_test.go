package model

import (
	"testing"
	"time"
)

func TestCoupon_DiscountCents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		couponType CouponType
		value      int64
		base       int64
		want       int64
	}{
		{"percent 10 of 1000", CouponPercent, 10, 1000, 100},
		{"percent 100 is full price", CouponPercent, 100, 2599, 2599},
		{"percent rounds down", CouponPercent, 33, 100, 33},
		{"fixed 500 off 2000", CouponFixed, 500, 2000, 500},
		{"fixed capped at base price", CouponFixed, 5000, 2000, 2000},
		{"fixed off zero base", CouponFixed, 500, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Coupon{Type: tt.couponType, Value: tt.value}
			if got := c.DiscountCents(tt.base); got != tt.want {
				t.Errorf("DiscountCents(%d) = %d, want %d", tt.base, got, tt.want)
			}
		})
	}
}

func TestCoupon_IsWithinWindow(t *testing.T) {
	t.Parallel()

	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		from  *time.Time
		until *time.Time
		want  bool
	}{
		{"no window", nil, nil, true},
		{"inside window", &past, &future, true},
		{"not yet valid", &future, nil, false},
		{"expired", nil, &past, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Coupon{ValidFrom: tt.from, ValidUntil: tt.until}
			if got := c.IsWithinWindow(now); got != tt.want {
				t.Errorf("IsWithinWindow = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCoupon_IsExhausted(t *testing.T) {
	t.Parallel()

	c := &Coupon{MaxRedemptions: 0, RedeemedCount: 99999}
	if c.IsExhausted() {
		t.Error("unlimited coupon should never exhaust")
	}

	c = &Coupon{MaxRedemptions: 5, RedeemedCount: 4}
	if c.IsExhausted() {
		t.Error("coupon with remaining redemptions should not be exhausted")
	}

	c.RedeemedCount = 5
	if !c.IsExhausted() {
		t.Error("coupon at cap should be exhausted")
	}
}

func TestCoupon_AppliesToProduct(t *testing.T) {
	t.Parallel()

	c := &Coupon{}
	if !c.AppliesToProduct("any-product") {
		t.Error("empty applies_to should match all products")
	}

	c.AppliesTo = []string{"prod_a", "prod_b"}
	if !c.AppliesToProduct("prod_a") {
		t.Error("listed product should match")
	}
	if c.AppliesToProduct("prod_c") {
		t.Error("unlisted product should not match")
	}
}

func TestCoupon_IsRedeemable(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := &Coupon{Active: true, Type: CouponPercent, Value: 10}
	if !c.IsRedeemable("any", now) {
		t.Error("active unscoped coupon should be redeemable")
	}

	c.Active = false
	if c.IsRedeemable("any", now) {
		t.Error("inactive coupon should not be redeemable")
	}

	c.Active = true
	deleted := now.Add(-time.Minute)
	c.DeletedAt = &deleted
	if c.IsRedeemable("any", now) {
		t.Error("deleted coupon should not be redeemable")
	}
}
