//go:build integration

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gateflow/gateflow/internal/cache"
	"github.com/gateflow/gateflow/internal/model"
)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()

	ctx := context.Background()
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	cacheClient, err := cache.New(ctx, redisURL)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { cacheClient.Close() })

	_ = cacheClient.Client().FlushDB(ctx).Err()
	return cacheClient
}

// Concurrent checks against one key must never admit more than the bucket
// allows, whatever the interleaving.
func TestRateLimitConcurrency(t *testing.T) {
	ctx := context.Background()
	cacheClient := newTestCache(t)

	const (
		keyID      = "test-key-concurrent"
		rpm        = 10
		burst      = 5
		goroutines = 20
		perWorker  = 3
	)

	var allowed, rejected int64
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				result, err := cacheClient.CheckAPIRateLimit(ctx, keyID, rpm, burst)
				if err != nil {
					t.Errorf("CheckAPIRateLimit error: %v", err)
					return
				}
				if result.Allowed {
					atomic.AddInt64(&allowed, 1)
				} else {
					atomic.AddInt64(&rejected, 1)
				}
			}
		}()
	}
	wg.Wait()

	t.Logf("concurrency: %d allowed, %d rejected", allowed, rejected)

	// 60 checks in well under a second against burst 5 at 10 rpm: at most
	// the burst plus a sliver of refill may pass.
	if allowed > int64(burst+rpm) {
		t.Errorf("allowed = %d, want <= %d", allowed, burst+rpm)
	}
	if rejected == 0 {
		t.Error("expected rejections under contention")
	}
}

func TestRateLimitHeaders(t *testing.T) {
	resetAt := time.Now().Add(time.Minute)

	rec := httptest.NewRecorder()
	http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setRateLimitHeaders(w, 60, 45, resetAt)
		w.WriteHeader(http.StatusOK)
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	want := map[string]string{
		"X-RateLimit-Limit":     "60",
		"X-RateLimit-Remaining": "45",
	}
	for name, value := range want {
		if got := rec.Header().Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset not set")
	}
}

func Test429Response(t *testing.T) {
	rec := httptest.NewRecorder()
	writeRateLimitError(rec, 5*time.Second)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected error body")
	}
}

func TestTierConfigs(t *testing.T) {
	tests := []struct {
		tier    string
		wantRPM int
	}{
		{model.TierFree, 60},
		{model.TierPro, 600},
		{model.TierUnlimited, 0},
	}

	for _, tc := range tests {
		t.Run(tc.tier, func(t *testing.T) {
			config := model.TierConfigs[tc.tier]
			if config.RequestsPerMinute != tc.wantRPM {
				t.Errorf("tier %s RPM = %d, want %d", tc.tier, config.RequestsPerMinute, tc.wantRPM)
			}
		})
	}
}
