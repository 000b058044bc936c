package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gateflow/gateflow/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for auth context cache.
	authCachePrefix = "auth:ctx:"
	// authCacheTTL is the time-to-live for cached auth contexts.
	// Kept short so rotation grace expiry and revocation propagate quickly.
	authCacheTTL = 5 * time.Minute
)

// CachedAuthContext represents auth context stored in Redis.
type CachedAuthContext struct {
	KeyID         string   `json:"key_id"`
	KeyPrefix     string   `json:"key_prefix"`
	UserID        string   `json:"user_id"`
	Scopes        []string `json:"scopes"`
	RateLimitTier string   `json:"rate_limit_tier"`
	// ExpiresAt carries the rotation grace deadline, zero when none.
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

// GetAuthContext retrieves a cached auth context by cache key.
// Returns nil if not found (cache miss) or the entry has lapsed.
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	key := authCachePrefix + cacheKey

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var cached CachedAuthContext
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	// Rotated keys carry a hard deadline; never serve one past it.
	if cached.ExpiresAt > 0 && time.Now().Unix() >= cached.ExpiresAt {
		_ = c.client.Del(ctx, key).Err()
		return nil, nil
	}

	return &model.AuthContext{
		KeyID:         cached.KeyID,
		KeyPrefix:     cached.KeyPrefix,
		UserID:        cached.UserID,
		Scopes:        cached.Scopes,
		RateLimitTier: cached.RateLimitTier,
	}, nil
}

// SetAuthContext caches an auth context. graceUntil, when non-zero,
// bounds how long the entry may be served.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext, graceUntil *time.Time) error {
	key := authCachePrefix + cacheKey

	cached := CachedAuthContext{
		KeyID:         auth.KeyID,
		KeyPrefix:     auth.KeyPrefix,
		UserID:        auth.UserID,
		Scopes:        auth.Scopes,
		RateLimitTier: auth.RateLimitTier,
	}

	ttl := authCacheTTL
	if graceUntil != nil {
		cached.ExpiresAt = graceUntil.Unix()
		if remaining := time.Until(*graceUntil); remaining < ttl {
			if remaining <= 0 {
				return nil
			}
			ttl = remaining
		}
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// DeleteAuthContext removes a cached auth context.
// Used when a key is revoked or rotated.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	key := authCachePrefix + cacheKey
	return c.client.Del(ctx, key).Err()
}
