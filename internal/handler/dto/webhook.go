package dto

import (
	"time"

	"github.com/gateflow/gateflow/internal/model"
)

// CreateEndpointRequest represents the request body for creating
// a webhook endpoint.
type CreateEndpointRequest struct {
	TargetURL   string   `json:"target_url"`
	EventTypes  []string `json:"event_types"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
}

// UpdateEndpointRequest represents the request body for updating
// a webhook endpoint.
type UpdateEndpointRequest struct {
	TargetURL   *string  `json:"target_url"`
	EventTypes  []string `json:"event_types"`
	Enabled     *bool    `json:"enabled"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
}

// EndpointCreatedResponse carries the signing secret. It is returned
// exactly once, at creation or rotation.
type EndpointCreatedResponse struct {
	Endpoint *model.WebhookEndpoint `json:"endpoint"`
	Secret   string                 `json:"secret"`
}

// TestEndpointRequest represents the body for a test delivery.
type TestEndpointRequest struct {
	Data map[string]any `json:"data,omitempty"`
}

// DeliveryListResponse is the paginated delivery list for an endpoint.
type DeliveryListResponse struct {
	Data  []*model.WebhookDelivery `json:"data"`
	Total int                      `json:"total"`
}

// RotateSecretResponse carries the new signing secret after rotation.
type RotateSecretResponse struct {
	EndpointID string    `json:"endpoint_id"`
	Secret     string    `json:"secret"`
	RotatedAt  time.Time `json:"rotated_at"`
}
