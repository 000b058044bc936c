package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gateflow/gateflow/internal/auth"
	"github.com/gateflow/gateflow/internal/cache"
	"github.com/gateflow/gateflow/internal/model"
	"github.com/gateflow/gateflow/internal/repository"
)

// minAuthDuration is the floor on auth handling time. Padding every outcome
// to the same duration keeps response timing from revealing whether a key
// prefix exists.
const minAuthDuration = 200 * time.Millisecond

// AuthConfig wires the auth middleware's dependencies.
type AuthConfig struct {
	Logger     *slog.Logger
	Repository *repository.Repository
	Cache      *cache.Cache
}

// Auth authenticates every request by API key. Keys arrive via
// "Authorization: Bearer" or "X-API-Key"; verified identities are cached in
// Redis so the argon2 comparison runs only on cache misses.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			defer func() {
				if elapsed := time.Since(startTime); elapsed < minAuthDuration {
					time.Sleep(minAuthDuration - elapsed)
				}
			}()

			key := extractAPIKey(r)
			if key == "" {
				failAuth(cfg, w, r, "missing_key")
				return
			}

			parsed, err := auth.ParseAPIKey(key)
			if err != nil {
				failAuth(cfg, w, r, "invalid_format")
				return
			}

			cacheKey := auth.QuickHash(key)
			if authCtx, _ := cfg.Cache.GetAuthContext(r.Context(), cacheKey); authCtx != nil {
				logAuthSuccess(cfg, r, authCtx, true)
				next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
				return
			}

			// Prefix collisions are possible, so the lookup returns every
			// candidate and each one is verified against the full key.
			keys, err := cfg.Repository.GetAPIKeysByPrefix(r.Context(), parsed.Prefix)
			if err != nil {
				cfg.Logger.Error("database error during auth",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			var matchedKey *model.APIKey
			for _, k := range keys {
				if match, err := auth.VerifyKey(key, k.KeyHash); err == nil && match {
					matchedKey = k
					break
				}
			}

			// The prefix query already filters revoked and grace-expired keys,
			// but the window can close between query and verify.
			if matchedKey == nil || !matchedKey.IsUsable(time.Now()) {
				failAuth(cfg, w, r, "invalid_key")
				return
			}

			authCtx := &model.AuthContext{
				KeyID:         matchedKey.ID,
				KeyPrefix:     matchedKey.KeyPrefix,
				UserID:        matchedKey.UserID,
				Scopes:        matchedKey.Scopes,
				RateLimitTier: matchedKey.RateLimitTier,
			}

			// Cache the result; a rotated key's entry must not outlive its grace window.
			_ = cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx, matchedKey.RotationGraceUntil)

			// Update last_used_at asynchronously. The request context is
			// cancelled when the response is written, so use a fresh one.
			go func(keyID string) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = cfg.Repository.UpdateAPIKeyLastUsed(ctx, keyID)
			}(matchedKey.ID)

			logAuthSuccess(cfg, r, authCtx, false)
			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
		})
	}
}

func failAuth(cfg AuthConfig, w http.ResponseWriter, r *http.Request, reason string) {
	cfg.Logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
	writeAuthError(w)
}

func logAuthSuccess(cfg AuthConfig, r *http.Request, authCtx *model.AuthContext, cacheHit bool) {
	cfg.Logger.Info("authentication successful",
		slog.String("key_id", authCtx.KeyID),
		slog.String("key_prefix", authCtx.KeyPrefix),
		slog.String("user_id", authCtx.UserID),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.Bool("cache_hit", cacheHit),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// extractAPIKey pulls the key from "Authorization: Bearer <key>", falling
// back to the X-API-Key header.
func extractAPIKey(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if key, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return key
		}
	}
	return r.Header.Get("X-API-Key")
}

// writeAuthError responds 401 with the same body for every auth failure so
// responses cannot be used to enumerate key prefixes.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing API key"}}`))
}
