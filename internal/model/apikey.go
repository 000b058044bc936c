// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// Scope constants for API key authorization.
const (
	ScopeRead     = "read"
	ScopeWrite    = "write"
	ScopePayments = "payments"
	ScopeWebhook  = "webhook"
	ScopeAdmin    = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeRead, ScopeWrite, ScopePayments, ScopeWebhook, ScopeAdmin}

// RateLimitTier constants.
const (
	TierFree      = "free"
	TierPro       = "pro"
	TierUnlimited = "unlimited"
)

// RateLimitConfig defines rate limit parameters per tier.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// TierConfigs maps tier names to their rate limit configurations.
var TierConfigs = map[string]RateLimitConfig{
	TierFree:      {RequestsPerMinute: 60, Burst: 10},
	TierPro:       {RequestsPerMinute: 600, Burst: 50},
	TierUnlimited: {RequestsPerMinute: 0, Burst: 0}, // 0 means unlimited
}

// APIKey represents an API key entity.
type APIKey struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	KeyHash            string     `json:"-"` // Never serialize
	QuickHash          string     `json:"-"` // Auth-cache key, never serialize
	KeyPrefix          string     `json:"key_prefix"`
	Scopes             []string   `json:"scopes"`
	RateLimitTier      string     `json:"rate_limit_tier"`
	Name               string     `json:"name,omitempty"`
	RevokedAt          *time.Time `json:"revoked_at,omitempty"`
	RotationGraceUntil *time.Time `json:"rotation_grace_until,omitempty"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// IsUsable reports whether the key authenticates requests at the given time.
// A rotated key stays usable until its grace window ends.
func (k *APIKey) IsUsable(now time.Time) bool {
	if k.IsRevoked() {
		return false
	}
	if k.RotationGraceUntil != nil && !now.Before(*k.RotationGraceUntil) {
		return false
	}
	return true
}

// InGracePeriod returns true if the key was rotated and the old credential
// is still within its grace window.
func (k *APIKey) InGracePeriod(now time.Time) bool {
	return k.RotationGraceUntil != nil && now.Before(*k.RotationGraceUntil)
}

// HasScope checks if the key has a specific scope.
// Admin scope implies all other scopes.
func (k *APIKey) HasScope(scope string) bool {
	if slices.Contains(k.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(k.Scopes, scope)
}

// GetRateLimitConfig returns the rate limit configuration for this key.
func (k *APIKey) GetRateLimitConfig() RateLimitConfig {
	if config, ok := TierConfigs[k.RateLimitTier]; ok {
		return config
	}
	return TierConfigs[TierFree] // Default to free tier
}

// AuthContext holds authenticated request context.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	KeyID         string
	KeyPrefix     string
	UserID        string
	Scopes        []string
	RateLimitTier string
}

// HasScope checks if the auth context has a specific scope.
func (a *AuthContext) HasScope(scope string) bool {
	if slices.Contains(a.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(a.Scopes, scope)
}
