package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/gateflow/gateflow/internal/auth"
	"github.com/gateflow/gateflow/internal/cache"
	"github.com/gateflow/gateflow/internal/handler/dto"
	"github.com/gateflow/gateflow/internal/model"
	"github.com/gateflow/gateflow/internal/repository"
)

// APIKeyHandler handles API key management endpoints.
// Each key row stores the quick hash of its plaintext so revocation and
// rotation can evict the cached auth context immediately.
type APIKeyHandler struct {
	logger     *slog.Logger
	repository *repository.Repository
	cache      *cache.Cache
	// graceWindow is how long a rotated key's old credential keeps working.
	graceWindow time.Duration
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(logger *slog.Logger, repo *repository.Repository, authCache *cache.Cache, graceWindow time.Duration) *APIKeyHandler {
	return &APIKeyHandler{
		logger:      logger,
		repository:  repo,
		cache:       authCache,
		graceWindow: graceWindow,
	}
}

// Create handles POST /api/v1/api-keys.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		return
	}

	var req dto.CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid request body")
		return
	}

	for _, scope := range req.Scopes {
		if !slices.Contains(model.ValidScopes, scope) {
			writeError(w, http.StatusBadRequest, codeValidationError,
				"Invalid scope: "+scope+". Valid scopes: read, write, payments, webhook, admin")
			return
		}
	}

	// Default to read scope if none provided
	if len(req.Scopes) == 0 {
		req.Scopes = []string{model.ScopeRead}
	}

	tier := req.RateLimitTier
	if tier == "" {
		tier = model.TierFree
	}
	if _, ok := model.TierConfigs[tier]; !ok {
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid rate limit tier: "+tier)
		return
	}

	generatedKey, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		h.logger.Error("failed to generate API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to generate API key")
		return
	}

	apiKey := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        authCtx.UserID,
		KeyHash:       generatedKey.Hash,
		QuickHash:     auth.QuickHash(generatedKey.Plaintext),
		KeyPrefix:     generatedKey.Prefix,
		Scopes:        req.Scopes,
		RateLimitTier: tier,
		Name:          req.Name,
		CreatedAt:     time.Now().UTC(),
	}

	if err := h.repository.CreateAPIKey(ctx, apiKey); err != nil {
		h.logger.Error("failed to create API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to create API key")
		return
	}

	h.logger.Info("API key created",
		slog.String("key_id", apiKey.ID),
		slog.String("key_prefix", apiKey.KeyPrefix),
		slog.String("user_id", apiKey.UserID),
	)

	// Plaintext key is shown once only.
	writeJSON(w, http.StatusCreated, dto.ToAPIKeyCreatedResponse(apiKey, generatedKey.Plaintext))
}

// List handles GET /api/v1/api-keys.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		return
	}

	keys, err := h.repository.ListAPIKeysByUserID(ctx, authCtx.UserID)
	if err != nil {
		h.logger.Error("failed to list API keys", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to list API keys")
		return
	}

	if keys == nil {
		keys = []*model.APIKey{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": keys})
}

// Revoke handles DELETE /api/v1/api-keys/{keyId}.
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		return
	}

	key, ok := h.ownedKey(w, r, authCtx)
	if !ok {
		return
	}

	if err := h.repository.RevokeAPIKey(ctx, key.ID); err != nil {
		h.logger.Error("failed to revoke API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to revoke API key")
		return
	}

	h.evictAuthCache(ctx, key)

	h.logger.Info("API key revoked",
		slog.String("key_id", key.ID),
		slog.String("user_id", authCtx.UserID),
	)

	w.WriteHeader(http.StatusNoContent)
}

// Rotate handles POST /api/v1/api-keys/{keyId}/rotate.
// A new key is issued immediately; the old credential keeps working
// until the grace window closes.
func (h *APIKeyHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		return
	}

	oldKey, ok := h.ownedKey(w, r, authCtx)
	if !ok {
		return
	}

	generatedKey, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		h.logger.Error("failed to generate API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to rotate API key")
		return
	}

	now := time.Now().UTC()
	graceUntil := now.Add(h.graceWindow)

	newKey := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        oldKey.UserID,
		KeyHash:       generatedKey.Hash,
		QuickHash:     auth.QuickHash(generatedKey.Plaintext),
		KeyPrefix:     generatedKey.Prefix,
		Scopes:        oldKey.Scopes,
		RateLimitTier: oldKey.RateLimitTier,
		Name:          oldKey.Name,
		CreatedAt:     now,
	}

	// New key first; the old one stays valid if anything below fails.
	if err := h.repository.CreateAPIKey(ctx, newKey); err != nil {
		h.logger.Error("failed to create rotated API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to rotate API key")
		return
	}

	if err := h.repository.MarkAPIKeyRotated(ctx, oldKey.ID, graceUntil); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			// Already rotated or revoked by a concurrent request.
			writeError(w, http.StatusConflict, codeConflict, "API key was already rotated or revoked")
			return
		}
		h.logger.Error("failed to mark API key rotated", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to rotate API key")
		return
	}

	// Drop the old credential's cached context so its next use re-reads
	// the row and picks up the grace deadline.
	h.evictAuthCache(ctx, oldKey)

	h.logger.Info("API key rotated",
		slog.String("old_key_id", oldKey.ID),
		slog.String("new_key_id", newKey.ID),
		slog.String("user_id", authCtx.UserID),
		slog.Time("grace_until", graceUntil),
	)

	writeJSON(w, http.StatusCreated, dto.APIKeyRotatedResponse{
		OldKeyID:   oldKey.ID,
		GraceUntil: graceUntil,
		NewKey:     dto.ToAPIKeyCreatedResponse(newKey, generatedKey.Plaintext),
	})
}

// evictAuthCache removes the key's cached auth context. Best effort:
// a failed eviction falls back to the cache TTL.
func (h *APIKeyHandler) evictAuthCache(ctx context.Context, key *model.APIKey) {
	if key.QuickHash == "" {
		// Keys created before quick hashes were stored.
		return
	}
	if err := h.cache.DeleteAuthContext(ctx, key.QuickHash); err != nil {
		h.logger.Warn("failed to evict cached auth context",
			slog.String("key_id", key.ID),
			slog.String("error", err.Error()),
		)
	}
}

// ownedKey loads the key from the URL and enforces ownership.
// Foreign, missing and revoked keys all return 404 to prevent enumeration.
func (h *APIKeyHandler) ownedKey(w http.ResponseWriter, r *http.Request, authCtx *model.AuthContext) (*model.APIKey, bool) {
	keyID := chi.URLParam(r, "keyId")
	if keyID == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "Key ID is required")
		return nil, false
	}

	key, err := h.repository.GetAPIKeyByID(r.Context(), keyID)
	if err != nil {
		writeError(w, http.StatusNotFound, codeNotFound, "API key not found or already revoked")
		return nil, false
	}

	if key.UserID != authCtx.UserID || key.IsRevoked() {
		writeError(w, http.StatusNotFound, codeNotFound, "API key not found or already revoked")
		return nil, false
	}

	return key, true
}
