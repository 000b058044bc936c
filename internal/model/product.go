package model

import (
	"slices"
	"time"
)

// SupportedCurrencies lists the ISO 4217 codes payments can settle in.
var SupportedCurrencies = []string{"USD", "EUR", "GBP", "PLN"}

// IsSupportedCurrency checks a currency code against the supported set.
func IsSupportedCurrency(code string) bool {
	return slices.Contains(SupportedCurrencies, code)
}

// OTOConfig links a product to a discounted one-time offer shown
// immediately after purchase.
type OTOConfig struct {
	ProductID       string `json:"product_id"`
	DiscountPercent int    `json:"discount_percent"`
}

// OrderBump is an additional product offered alongside the main product
// at checkout, at its own price.
type OrderBump struct {
	ProductID  string `json:"product_id"`
	PriceCents int64  `json:"price_cents"`
}

// Product represents a digital product in the storefront.
type Product struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	PriceCents  int64      `json:"price_cents"`
	Currency    string     `json:"currency"`
	Active      bool       `json:"active"`
	FileURL     string     `json:"file_url,omitempty"`
	OTO         *OTOConfig `json:"oto,omitempty"`
	Bump        *OrderBump `json:"order_bump,omitempty"`
	DeletedAt   *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsDeleted returns true if the product is soft-deleted.
func (p *Product) IsDeleted() bool {
	return p.DeletedAt != nil
}

// IsPurchasable returns true if the product can be sold.
func (p *Product) IsPurchasable() bool {
	return p.Active && !p.IsDeleted()
}

// HasBump returns true if an order bump is configured.
func (p *Product) HasBump() bool {
	return p.Bump != nil && p.Bump.ProductID != ""
}

// OTOPriceCents computes the discounted price of the follow-up offer
// given the offer product's own base price.
func (p *Product) OTOPriceCents(otoBasePriceCents int64) int64 {
	if p.OTO == nil {
		return otoBasePriceCents
	}
	discounted := otoBasePriceCents - otoBasePriceCents*int64(p.OTO.DiscountPercent)/100
	if discounted < 0 {
		return 0
	}
	return discounted
}
