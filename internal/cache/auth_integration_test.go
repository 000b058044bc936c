//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gateflow/gateflow/internal/model"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	ctx := context.Background()
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	cacheClient, err := New(ctx, redisURL)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { cacheClient.Close() })

	_ = cacheClient.Client().FlushDB(ctx).Err()
	return cacheClient
}

func TestAuthContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	authCtx := &model.AuthContext{
		KeyID:         "key-1",
		KeyPrefix:     "gf_live_abc123",
		UserID:        "user-1",
		Scopes:        []string{model.ScopeRead, model.ScopeWrite},
		RateLimitTier: model.TierPro,
	}

	if err := c.SetAuthContext(ctx, "cachekey1", authCtx, nil); err != nil {
		t.Fatalf("SetAuthContext: %v", err)
	}

	got, err := c.GetAuthContext(ctx, "cachekey1")
	if err != nil {
		t.Fatalf("GetAuthContext: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached auth context, got nil")
	}
	if got.KeyID != authCtx.KeyID || got.UserID != authCtx.UserID {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

// Revoking a key must drop its cached context immediately, not wait for
// the cache TTL.
func TestDeleteAuthContextEvicts(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	authCtx := &model.AuthContext{
		KeyID:  "key-2",
		UserID: "user-2",
		Scopes: []string{model.ScopeAdmin},
	}

	if err := c.SetAuthContext(ctx, "cachekey2", authCtx, nil); err != nil {
		t.Fatalf("SetAuthContext: %v", err)
	}

	if err := c.DeleteAuthContext(ctx, "cachekey2"); err != nil {
		t.Fatalf("DeleteAuthContext: %v", err)
	}

	got, err := c.GetAuthContext(ctx, "cachekey2")
	if err != nil {
		t.Fatalf("GetAuthContext after delete: %v", err)
	}
	if got != nil {
		t.Fatalf("cached context survived deletion: %+v", got)
	}
}

// A rotated key's cache entry must not outlive its grace deadline.
func TestSetAuthContextGraceBound(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	grace := time.Now().Add(-time.Second)
	authCtx := &model.AuthContext{KeyID: "key-3", UserID: "user-3"}

	if err := c.SetAuthContext(ctx, "cachekey3", authCtx, &grace); err != nil {
		t.Fatalf("SetAuthContext: %v", err)
	}

	got, err := c.GetAuthContext(ctx, "cachekey3")
	if err != nil {
		t.Fatalf("GetAuthContext: %v", err)
	}
	if got != nil {
		t.Fatal("expired grace entry should not be served")
	}
}
