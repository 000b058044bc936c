package dto

import (
	"time"

	"github.com/gateflow/gateflow/internal/model"
)

// CreateAPIKeyRequest represents the request body for creating an API key.
type CreateAPIKeyRequest struct {
	Name          string   `json:"name,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
	RateLimitTier string   `json:"rate_limit_tier,omitempty"`
}

// APIKeyCreatedResponse carries the plaintext key. Shown once only.
type APIKeyCreatedResponse struct {
	ID            string    `json:"id"`
	Key           string    `json:"key"`
	Name          string    `json:"name,omitempty"`
	KeyPrefix     string    `json:"key_prefix"`
	Scopes        []string  `json:"scopes"`
	RateLimitTier string    `json:"rate_limit_tier"`
	CreatedAt     time.Time `json:"created_at"`
}

// APIKeyRotatedResponse describes the outcome of a key rotation.
// The old key keeps working until grace_until.
type APIKeyRotatedResponse struct {
	OldKeyID   string                `json:"old_key_id"`
	GraceUntil time.Time             `json:"grace_until"`
	NewKey     APIKeyCreatedResponse `json:"new_key"`
}

// ToAPIKeyCreatedResponse builds the one-time creation response.
func ToAPIKeyCreatedResponse(key *model.APIKey, plaintext string) APIKeyCreatedResponse {
	return APIKeyCreatedResponse{
		ID:            key.ID,
		Key:           plaintext,
		Name:          key.Name,
		KeyPrefix:     key.KeyPrefix,
		Scopes:        key.Scopes,
		RateLimitTier: key.RateLimitTier,
		CreatedAt:     key.CreatedAt,
	}
}
