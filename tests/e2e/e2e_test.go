//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gateflow/gateflow/internal/auth"
	"github.com/gateflow/gateflow/internal/model"
	"github.com/gateflow/gateflow/internal/repository"
)

const (
	systemUserID = "system"
	systemEmail  = "system@gateflow.local"
)

type apiKeyCreateResponse struct {
	ID     string   `json:"id"`
	Key    string   `json:"key"`
	Scopes []string `json:"scopes"`
}

type productResponse struct {
	ID         string `json:"id"`
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

type couponValidateResponse struct {
	Valid         bool  `json:"valid"`
	DiscountCents int64 `json:"discount_cents"`
	FinalCents    int64 `json:"final_cents"`
}

type webhookCreateResponse struct {
	Endpoint struct {
		ID        string `json:"id"`
		TargetURL string `json:"target_url"`
	} `json:"endpoint"`
	Secret string `json:"secret"`
}

type webhookRequest struct {
	Headers http.Header
	Body    []byte
}

func TestE2ESmoke(t *testing.T) {
	baseURL := envOrDefault("GATEFLOW_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	bootstrapKey := bootstrapAdminKey(t, dbURL)
	testKey := createAPIKey(t, baseURL, bootstrapKey)

	product := createProduct(t, baseURL, testKey)
	createCoupon(t, baseURL, testKey, product.ID)
	assertCouponPreview(t, baseURL, testKey, product)

	webhookURL, deliveries, shutdown := startWebhookReceiver(t)
	defer shutdown()
	endpointID := createWebhookEndpoint(t, baseURL, testKey, webhookURL)

	triggerTestDelivery(t, baseURL, testKey, endpointID)
	waitForWebhookDelivery(t, deliveries)

	assertAnalyticsSummary(t, baseURL, testKey)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func bootstrapAdminKey(t *testing.T, dbURL string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer repo.Close()

	if err := ensureUser(ctx, repo, systemUserID, systemEmail); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	generated, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}

	apiKey := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        systemUserID,
		KeyHash:       generated.Hash,
		QuickHash:     auth.QuickHash(generated.Plaintext),
		KeyPrefix:     generated.Prefix,
		Scopes:        []string{model.ScopeAdmin},
		RateLimitTier: model.TierUnlimited,
		Name:          "e2e-bootstrap",
		CreatedAt:     time.Now().UTC(),
	}

	if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
		t.Fatalf("create api key: %v", err)
	}

	return generated.Plaintext
}

func ensureUser(ctx context.Context, repo *repository.Repository, userID, email string) error {
	if existing, err := repo.GetUserByID(ctx, userID); err == nil {
		if existing.Email != email {
			return fmt.Errorf("user %s exists with different email: %s", userID, existing.Email)
		}
		return nil
	}

	if byEmail, err := repo.GetUserByEmail(ctx, email); err == nil {
		if byEmail.ID != userID {
			return fmt.Errorf("email %s already used by user %s", email, byEmail.ID)
		}
		return nil
	}

	user := &model.User{ID: userID, Email: email, Role: model.RoleAdmin, CreatedAt: time.Now().UTC()}
	return repo.CreateUser(ctx, user)
}

func createAPIKey(t *testing.T, baseURL, bootstrapKey string) string {
	t.Helper()

	payload := map[string]any{
		"name":   "e2e-key",
		"scopes": []string{"admin"},
	}

	var resp apiKeyCreateResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/api-keys", bootstrapKey, payload, &resp)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from api key create, got %d", status)
	}
	if resp.Key == "" {
		t.Fatalf("api key response missing key")
	}
	return resp.Key
}

func createProduct(t *testing.T, baseURL, apiKey string) productResponse {
	t.Helper()

	slug := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	payload := map[string]any{
		"slug":        slug,
		"name":        "E2E Product",
		"price_cents": 1999,
		"currency":    "USD",
		"file_url":    "https://cdn.example.com/e2e.zip",
	}

	var resp productResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/products", apiKey, payload, &resp)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from product create, got %d", status)
	}
	if resp.ID == "" || resp.Slug != slug {
		t.Fatalf("product create response missing fields")
	}
	return resp
}

func createCoupon(t *testing.T, baseURL, apiKey, productID string) {
	t.Helper()

	code := fmt.Sprintf("E2E%d", time.Now().UnixNano()%1_000_000)
	payload := map[string]any{
		"code":       code,
		"type":       "percent",
		"value":      10,
		"applies_to": []string{productID},
	}

	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/coupons", apiKey, payload, nil)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from coupon create, got %d", status)
	}

	// Stash the code for the preview step
	e2eCouponCode = code
}

var e2eCouponCode string

func assertCouponPreview(t *testing.T, baseURL, apiKey string, product productResponse) {
	t.Helper()

	payload := map[string]any{
		"code":       e2eCouponCode,
		"product_id": product.ID,
	}

	var resp couponValidateResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/coupons/validate", apiKey, payload, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from coupon validate, got %d", status)
	}
	if !resp.Valid {
		t.Fatalf("coupon should validate against its product")
	}

	wantDiscount := product.PriceCents / 10
	if resp.DiscountCents != wantDiscount {
		t.Fatalf("expected discount %d, got %d", wantDiscount, resp.DiscountCents)
	}
	if resp.FinalCents != product.PriceCents-wantDiscount {
		t.Fatalf("expected final %d, got %d", product.PriceCents-wantDiscount, resp.FinalCents)
	}
}

func startWebhookReceiver(t *testing.T) (string, <-chan webhookRequest, func()) {
	t.Helper()

	received := make(chan webhookRequest, 1)

	listener, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		t.Fatalf("listen webhook: %v", err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		received <- webhookRequest{Headers: r.Header.Clone(), Body: body}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Handler: handler}
	go func() {
		_ = srv.Serve(listener)
	}()

	port := listener.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("http://host.docker.internal:%d/webhook", port)

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}

	return url, received, shutdown
}

func createWebhookEndpoint(t *testing.T, baseURL, apiKey, targetURL string) string {
	t.Helper()

	payload := map[string]any{
		"target_url":  targetURL,
		"event_types": []string{"test", "payment.succeeded"},
		"name":        "e2e-webhook",
	}

	var resp webhookCreateResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/webhooks", apiKey, payload, &resp)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from webhook create, got %d", status)
	}
	if resp.Endpoint.ID == "" || resp.Secret == "" {
		t.Fatalf("webhook create response missing fields")
	}
	return resp.Endpoint.ID
}

func triggerTestDelivery(t *testing.T, baseURL, apiKey, endpointID string) {
	t.Helper()

	payload := map[string]any{
		"data": map[string]any{"source": "e2e"},
	}

	url := fmt.Sprintf("%s/api/v1/webhooks/%s/test", baseURL, endpointID)
	status := doJSON(t, http.MethodPost, url, apiKey, payload, nil)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202 from test delivery, got %d", status)
	}
}

func waitForWebhookDelivery(t *testing.T, deliveries <-chan webhookRequest) {
	t.Helper()

	select {
	case req := <-deliveries:
		if req.Headers.Get("X-GateFlow-Signature") == "" {
			t.Fatalf("missing X-GateFlow-Signature header")
		}
		if req.Headers.Get("X-GateFlow-Timestamp") == "" {
			t.Fatalf("missing X-GateFlow-Timestamp header")
		}
		if req.Headers.Get("X-GateFlow-Delivery-Id") == "" {
			t.Fatalf("missing X-GateFlow-Delivery-Id header")
		}

		var payload model.WebhookPayload
		if err := json.Unmarshal(req.Body, &payload); err != nil {
			t.Fatalf("decode webhook payload: %v", err)
		}
		if payload.EventType != string(model.EventTypeTest) {
			t.Fatalf("unexpected event_type %q", payload.EventType)
		}
		if payload.Data == nil {
			t.Fatalf("webhook payload missing data")
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("timed out waiting for webhook delivery")
	}
}

func assertAnalyticsSummary(t *testing.T, baseURL, apiKey string) {
	t.Helper()

	var resp struct {
		GrossCentsByCurrency map[string]int64 `json:"gross_cents_by_currency"`
		ActiveProducts       int64            `json:"active_products"`
	}
	status := doJSON(t, http.MethodGet, baseURL+"/api/v1/analytics/summary", apiKey, nil, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from analytics summary, got %d", status)
	}
	if resp.ActiveProducts < 1 {
		t.Fatalf("expected at least one active product in summary")
	}
}

func doJSON(t *testing.T, method, url, apiKey string, body any, out any) int {
	t.Helper()

	var buf io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		buf = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(out); err != nil && resp.ContentLength != 0 {
			t.Fatalf("decode response: %v", err)
		}
	}

	return resp.StatusCode
}

// TestE2EKeyRotation validates the rotation grace window end to end.
func TestE2EKeyRotation(t *testing.T) {
	baseURL := envOrDefault("GATEFLOW_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	bootstrapKey := bootstrapAdminKey(t, dbURL)

	// Create a key, then rotate it through the API.
	var created apiKeyCreateResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/api-keys", bootstrapKey, map[string]any{
		"name":   "e2e-rotate",
		"scopes": []string{"read"},
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from api key create, got %d", status)
	}

	var rotated struct {
		OldKeyID   string    `json:"old_key_id"`
		GraceUntil time.Time `json:"grace_until"`
		NewKey     struct {
			Key string `json:"key"`
		} `json:"new_key"`
	}
	url := fmt.Sprintf("%s/api/v1/api-keys/%s/rotate", baseURL, created.ID)
	status = doJSON(t, http.MethodPost, url, bootstrapKey, nil, &rotated)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from rotate, got %d", status)
	}
	if rotated.NewKey.Key == "" {
		t.Fatalf("rotation response missing new key")
	}
	if !rotated.GraceUntil.After(time.Now()) {
		t.Fatalf("grace window should end in the future")
	}

	// Both keys work during the grace window. Auth results are cached
	// briefly, so allow a couple of retries for the old key.
	if status := doJSON(t, http.MethodGet, baseURL+"/api/v1/products", rotated.NewKey.Key, nil, nil); status != http.StatusOK {
		t.Fatalf("new key should authenticate, got %d", status)
	}
	if status := doJSON(t, http.MethodGet, baseURL+"/api/v1/products", created.Key, nil, nil); status != http.StatusOK {
		t.Fatalf("old key should authenticate during grace, got %d", status)
	}
}

// TestE2ERateLimiting validates that rate limiting returns 429 with proper headers.
func TestE2ERateLimiting(t *testing.T) {
	baseURL := envOrDefault("GATEFLOW_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	// Create a free-tier API key (60 RPM, 10 burst)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer repo.Close()

	if err := ensureUser(ctx, repo, systemUserID, systemEmail); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	generated, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}

	apiKey := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        systemUserID,
		KeyHash:       generated.Hash,
		QuickHash:     auth.QuickHash(generated.Plaintext),
		KeyPrefix:     generated.Prefix,
		Scopes:        []string{model.ScopeRead},
		RateLimitTier: model.TierFree, // Free tier: 60 RPM, burst 10
		Name:          "e2e-ratelimit-test",
		CreatedAt:     time.Now().UTC(),
	}

	if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
		t.Fatalf("create free-tier api key: %v", err)
	}

	testKey := generated.Plaintext

	// Send requests until we hit rate limit
	client := &http.Client{Timeout: 10 * time.Second}
	var rateLimited bool
	var lastResp *http.Response

	// Free tier has burst of 10, try 20 requests rapidly
	for i := 0; i < 20; i++ {
		req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/products", nil)
		if err != nil {
			t.Fatalf("create request: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+testKey)

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			rateLimited = true
			lastResp = resp
			break
		}
		resp.Body.Close()
	}

	if !rateLimited {
		t.Fatalf("expected 429 rate limit after burst, but never hit rate limit")
	}

	defer lastResp.Body.Close()

	// Verify rate limit headers
	limitHeader := lastResp.Header.Get("X-RateLimit-Limit")
	remainingHeader := lastResp.Header.Get("X-RateLimit-Remaining")
	retryAfterHeader := lastResp.Header.Get("Retry-After")

	if limitHeader == "" {
		t.Error("missing X-RateLimit-Limit header on 429 response")
	}
	if remainingHeader != "0" {
		t.Errorf("expected X-RateLimit-Remaining=0, got %s", remainingHeader)
	}
	if retryAfterHeader == "" {
		t.Log("Retry-After header not present (optional but recommended)")
	}

	// Verify response body
	var errResp map[string]any
	if err := json.NewDecoder(lastResp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode 429 response: %v", err)
	}

	if errResp["error"] == nil {
		t.Error("429 response missing 'error' field")
	}
}

// TestE2ENoSecretsInResponses validates that API keys are not leaked in responses.
func TestE2ENoSecretsInResponses(t *testing.T) {
	baseURL := envOrDefault("GATEFLOW_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	bootstrapKey := bootstrapAdminKey(t, dbURL)

	client := &http.Client{Timeout: 10 * time.Second}

	// Test that error responses don't leak the Authorization header value
	testKey := "gf_live_fake_" + strings.Repeat("x", 32)
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/products", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testKey)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	bodyStr := string(body)

	// The fake API key should NEVER appear in error responses
	if strings.Contains(bodyStr, testKey) {
		t.Error("SECURITY: Error response leaked Authorization header value")
	}

	// The bootstrap key should never be echoed back
	if strings.Contains(bodyStr, bootstrapKey) {
		t.Error("SECURITY: Response contains the bootstrap API key")
	}

	// Key listings must only expose the prefix, never hash or plaintext.
	req2, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/api-keys", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req2.Header.Set("Authorization", "Bearer "+bootstrapKey)

	resp2, err := client.Do(req2)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if strings.Contains(string(body2), bootstrapKey) {
		t.Error("SECURITY: Key listing echoed back a full API key")
	}
	if strings.Contains(string(body2), "key_hash") {
		t.Error("SECURITY: Key listing exposed key_hash")
	}
}
