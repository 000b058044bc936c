package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gateflow/gateflow/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 740740

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// resetSchema applies the down then up migration for a single schema file pair.
func resetSchema(ctx context.Context, pool *pgxpool.Pool, name string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downSQL, err := os.ReadFile(filepath.Join(root, "migrations", name+".down.sql"))
	if err != nil {
		return fmt.Errorf("read %s down migration: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply %s down migration: %w", name, err)
	}

	upSQL, err := os.ReadFile(filepath.Join(root, "migrations", name+".up.sql"))
	if err != nil {
		return fmt.Errorf("read %s up migration: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply %s up migration: %w", name, err)
	}

	return nil
}

// ResetUsersSchema drops and recreates the users schema for tests.
func ResetUsersSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000001_users")
}

// ResetProductsSchema drops and recreates the products schema for tests.
func ResetProductsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000002_products")
}

// ResetCouponsSchema drops and recreates the coupons schema for tests.
func ResetCouponsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000003_coupons")
}

// ResetPaymentsSchema drops and recreates the payments schema for tests.
// Payments reference products and coupons, so those schemas must exist first.
func ResetPaymentsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000004_payments")
}

// ResetRefundsSchema drops and recreates the refund_requests schema for tests.
func ResetRefundsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000005_refund_requests")
}

// ResetAPIKeysSchema drops and recreates the api_keys schema for tests.
func ResetAPIKeysSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000006_api_keys")
}

// ResetWebhooksSchema drops and recreates the webhook schemas for tests.
func ResetWebhooksSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000007_webhooks")
}

// ResetRevenueSchema drops and recreates the revenue_daily schema for tests.
func ResetRevenueSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000008_revenue_daily")
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestProduct creates a test product with sensible defaults.
func NewTestProduct(t testing.TB, slug string) *model.Product {
	t.Helper()
	now := time.Now().UTC()
	return &model.Product{
		ID:          fmt.Sprintf("prod-%d", now.UnixNano()),
		Slug:        slug,
		Name:        "Test Product " + slug,
		Description: "A test product",
		PriceCents:  1999,
		Currency:    "USD",
		Active:      true,
		FileURL:     "https://cdn.example.com/" + slug + ".zip",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewTestCoupon creates a test percent coupon with sensible defaults.
func NewTestCoupon(t testing.TB, code string) *model.Coupon {
	t.Helper()
	now := time.Now().UTC()
	return &model.Coupon{
		ID:        fmt.Sprintf("coup-%d", now.UnixNano()),
		Code:      code,
		Type:      model.CouponPercent,
		Value:     10,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestUser creates a test user with sensible defaults.
func NewTestUser(t testing.TB, email string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	return &model.User{
		ID:        fmt.Sprintf("user-%d", now.UnixNano()),
		Email:     email,
		Name:      "Test User",
		Role:      model.RoleCustomer,
		CreatedAt: now,
	}
}

// NewTestAPIKey creates a test API key with sensible defaults.
func NewTestAPIKey(t testing.TB, userID string) *model.APIKey {
	t.Helper()
	now := time.Now().UTC()
	return &model.APIKey{
		ID:            fmt.Sprintf("key-%d", now.UnixNano()),
		UserID:        userID,
		KeyHash:       fmt.Sprintf("hash-%d", now.UnixNano()),
		QuickHash:     fmt.Sprintf("quickhash%d", now.UnixNano()),
		KeyPrefix:     "gf_test_abc123",
		Scopes:        []string{model.ScopeRead, model.ScopeWrite},
		RateLimitTier: model.TierFree,
		Name:          "Test Key",
		CreatedAt:     now,
	}
}

// NewTestAPIKeyWithTier creates a test API key with a specific tier.
func NewTestAPIKeyWithTier(t testing.TB, userID string, tier string) *model.APIKey {
	t.Helper()
	key := NewTestAPIKey(t, userID)
	key.RateLimitTier = tier
	return key
}

// NewTestEndpoint creates a test webhook endpoint with sensible defaults.
func NewTestEndpoint(t testing.TB, userID string) *model.WebhookEndpoint {
	t.Helper()
	now := time.Now().UTC()
	return &model.WebhookEndpoint{
		ID:         fmt.Sprintf("whep-%d", now.UnixNano()),
		UserID:     userID,
		TargetURL:  "https://hooks.example.com/receive",
		Secret:     fmt.Sprintf("whsec-%d", now.UnixNano()),
		Enabled:    true,
		EventTypes: []model.EventType{model.EventTypePaymentSucceeded},
		Name:       "Test Endpoint",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// UniqueSlug generates a unique product slug for tests.
func UniqueSlug(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// UniqueEmail generates a unique email address for tests.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
