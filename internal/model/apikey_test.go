package model

import (
	"testing"
	"time"
)

func TestAPIKey_HasScope(t *testing.T) {
	t.Parallel()

	key := &APIKey{Scopes: []string{ScopeRead, ScopeWrite}}

	if !key.HasScope(ScopeRead) {
		t.Error("key should have read scope")
	}
	if key.HasScope(ScopePayments) {
		t.Error("key should not have payments scope")
	}

	adminKey := &APIKey{Scopes: []string{ScopeAdmin}}
	for _, scope := range ValidScopes {
		if !adminKey.HasScope(scope) {
			t.Errorf("admin key should imply scope %q", scope)
		}
	}
}

func TestAPIKey_IsUsable(t *testing.T) {
	t.Parallel()

	now := time.Now()

	key := &APIKey{}
	if !key.IsUsable(now) {
		t.Error("fresh key should be usable")
	}

	revoked := now.Add(-time.Hour)
	key = &APIKey{RevokedAt: &revoked}
	if key.IsUsable(now) {
		t.Error("revoked key should not be usable")
	}
}

func TestAPIKey_RotationGrace(t *testing.T) {
	t.Parallel()

	now := time.Now()
	graceEnd := now.Add(time.Hour)

	key := &APIKey{RotationGraceUntil: &graceEnd}

	if !key.IsUsable(now) {
		t.Error("rotated key should be usable inside the grace window")
	}
	if !key.InGracePeriod(now) {
		t.Error("InGracePeriod should report true inside the window")
	}

	afterGrace := graceEnd.Add(time.Second)
	if key.IsUsable(afterGrace) {
		t.Error("rotated key should be dead after the grace window")
	}
	if key.InGracePeriod(afterGrace) {
		t.Error("InGracePeriod should report false after the window")
	}

	// Grace boundary is exclusive: the exact instant is no longer valid.
	if key.IsUsable(graceEnd) {
		t.Error("key should not be usable at the grace boundary")
	}
}

func TestAPIKey_GetRateLimitConfig(t *testing.T) {
	t.Parallel()

	key := &APIKey{RateLimitTier: TierPro}
	cfg := key.GetRateLimitConfig()
	if cfg.RequestsPerMinute != 600 {
		t.Errorf("pro tier should be 600 rpm, got %d", cfg.RequestsPerMinute)
	}

	key.RateLimitTier = "bogus"
	cfg = key.GetRateLimitConfig()
	if cfg.RequestsPerMinute != TierConfigs[TierFree].RequestsPerMinute {
		t.Error("unknown tier should fall back to free")
	}
}

func TestAuthContext_HasScope(t *testing.T) {
	t.Parallel()

	ctx := &AuthContext{Scopes: []string{ScopeWebhook}}
	if !ctx.HasScope(ScopeWebhook) {
		t.Error("auth context should have webhook scope")
	}
	if ctx.HasScope(ScopeAdmin) {
		t.Error("auth context should not have admin scope")
	}
}
