package dto

import (
	"encoding/json"

	"github.com/gateflow/gateflow/internal/model"
)

// CreateProductRequest represents the request body for creating a product.
type CreateProductRequest struct {
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	PriceCents  int64            `json:"price_cents"`
	Currency    string           `json:"currency"`
	Active      *bool            `json:"active,omitempty"`
	FileURL     string           `json:"file_url,omitempty"`
	OTO         *model.OTOConfig `json:"oto,omitempty"`
	Bump        *model.OrderBump `json:"order_bump,omitempty"`
}

// UpdateProductRequest represents the request body for updating a product.
// A JSON null for oto/order_bump clears the offer; an absent field
// leaves it untouched.
type UpdateProductRequest struct {
	Slug        *string                        `json:"slug"`
	Name        *string                        `json:"name"`
	Description *string                        `json:"description"`
	PriceCents  *int64                         `json:"price_cents"`
	Currency    *string                        `json:"currency"`
	Active      *bool                          `json:"active"`
	FileURL     *string                        `json:"file_url"`
	OTO         OptionalField[model.OTOConfig] `json:"oto"`
	Bump        OptionalField[model.OrderBump] `json:"order_bump"`
}

// OptionalField distinguishes "absent", "null" and "set" in PATCH bodies.
type OptionalField[T any] struct {
	Present bool
	Value   *T
}

// UnmarshalJSON records presence; a JSON null yields Present with nil Value.
func (f *OptionalField[T]) UnmarshalJSON(data []byte) error {
	f.Present = true
	if string(data) == "null" {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}
