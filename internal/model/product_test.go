package model

import (
	"testing"
	"time"
)

func TestProduct_IsPurchasable(t *testing.T) {
	t.Parallel()

	p := &Product{Active: true}
	if !p.IsPurchasable() {
		t.Error("active product should be purchasable")
	}

	p.Active = false
	if p.IsPurchasable() {
		t.Error("inactive product should not be purchasable")
	}

	deleted := time.Now()
	p = &Product{Active: true, DeletedAt: &deleted}
	if p.IsPurchasable() {
		t.Error("deleted product should not be purchasable")
	}
}

func TestProduct_OTOPriceCents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		oto     *OTOConfig
		base    int64
		want    int64
	}{
		{"no oto keeps base price", nil, 1000, 1000},
		{"25 percent off", &OTOConfig{ProductID: "p2", DiscountPercent: 25}, 1000, 750},
		{"100 percent off is free", &OTOConfig{ProductID: "p2", DiscountPercent: 100}, 1000, 0},
		{"rounds toward customer", &OTOConfig{ProductID: "p2", DiscountPercent: 33}, 100, 67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Product{OTO: tt.oto}
			if got := p.OTOPriceCents(tt.base); got != tt.want {
				t.Errorf("OTOPriceCents(%d) = %d, want %d", tt.base, got, tt.want)
			}
		})
	}
}

func TestProduct_HasBump(t *testing.T) {
	t.Parallel()

	p := &Product{}
	if p.HasBump() {
		t.Error("product without bump config should report false")
	}

	p.Bump = &OrderBump{ProductID: "p3", PriceCents: 500}
	if !p.HasBump() {
		t.Error("product with bump config should report true")
	}
}

func TestIsSupportedCurrency(t *testing.T) {
	t.Parallel()

	if !IsSupportedCurrency("USD") {
		t.Error("USD should be supported")
	}
	if IsSupportedCurrency("usd") {
		t.Error("currency match is case-sensitive uppercase")
	}
	if IsSupportedCurrency("XXX") {
		t.Error("XXX should not be supported")
	}
}
