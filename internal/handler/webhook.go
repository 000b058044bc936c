package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/gateflow/gateflow/internal/auth"
	"github.com/gateflow/gateflow/internal/handler/dto"
	"github.com/gateflow/gateflow/internal/model"
	"github.com/gateflow/gateflow/internal/webhook"
)

// WebhookHandler handles webhook endpoint management.
type WebhookHandler struct {
	repo          *webhook.Repository
	publisher     *webhook.Publisher
	logger        *slog.Logger
	allowInsecure bool
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(repo *webhook.Repository, publisher *webhook.Publisher, logger *slog.Logger, allowInsecure bool) *WebhookHandler {
	return &WebhookHandler{
		repo:          repo,
		publisher:     publisher,
		logger:        logger.With("handler", "webhook"),
		allowInsecure: allowInsecure,
	}
}

// Create handles POST /api/v1/webhooks.
// The signing secret is returned once and never again.
func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		return
	}

	var req dto.CreateEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid request body")
		return
	}

	if err := webhook.ValidateTargetURL(req.TargetURL, webhook.ValidationOptions{AllowInsecure: h.allowInsecure}); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, err.Error())
		return
	}

	eventTypes, err := parseEventTypes(req.EventTypes)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, err.Error())
		return
	}

	secret, err := webhook.GenerateSecret()
	if err != nil {
		h.logger.Error("failed to generate secret", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to create webhook")
		return
	}

	now := time.Now().UTC()
	endpoint := &model.WebhookEndpoint{
		ID:          ulid.Make().String(),
		UserID:      authCtx.UserID,
		TargetURL:   req.TargetURL,
		Secret:      secret,
		Enabled:     true,
		EventTypes:  eventTypes,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.repo.CreateEndpoint(ctx, endpoint); err != nil {
		h.logger.Error("failed to create endpoint", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to create webhook")
		return
	}

	h.logger.Info("webhook endpoint created",
		"endpoint_id", endpoint.ID,
		"user_id", authCtx.UserID,
	)

	writeJSON(w, http.StatusCreated, dto.EndpointCreatedResponse{
		Endpoint: endpoint,
		Secret:   secret,
	})
}

// List handles GET /api/v1/webhooks.
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		return
	}

	endpoints, err := h.repo.ListEndpointsByUser(ctx, authCtx.UserID)
	if err != nil {
		h.logger.Error("failed to list endpoints", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to list webhooks")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": endpoints})
}

// Get handles GET /api/v1/webhooks/{id}.
func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := h.ownedEndpoint(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, endpoint)
}

// Update handles PATCH /api/v1/webhooks/{id}.
func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := h.ownedEndpoint(w, r)
	if !ok {
		return
	}

	var req dto.UpdateEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid request body")
		return
	}

	if req.Name != nil {
		endpoint.Name = *req.Name
	}
	if req.Description != nil {
		endpoint.Description = *req.Description
	}
	if req.TargetURL != nil {
		if err := webhook.ValidateTargetURL(*req.TargetURL, webhook.ValidationOptions{AllowInsecure: h.allowInsecure}); err != nil {
			writeError(w, http.StatusBadRequest, codeValidationError, err.Error())
			return
		}
		endpoint.TargetURL = *req.TargetURL
	}
	if req.Enabled != nil {
		endpoint.Enabled = *req.Enabled
	}
	if req.EventTypes != nil {
		eventTypes, err := parseEventTypes(req.EventTypes)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationError, err.Error())
			return
		}
		endpoint.EventTypes = eventTypes
	}

	if err := h.repo.UpdateEndpoint(r.Context(), endpoint); err != nil {
		h.logger.Error("failed to update endpoint", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to update webhook")
		return
	}

	h.logger.Info("webhook endpoint updated", "endpoint_id", endpoint.ID)

	writeJSON(w, http.StatusOK, endpoint)
}

// Delete handles DELETE /api/v1/webhooks/{id}.
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := h.ownedEndpoint(w, r)
	if !ok {
		return
	}

	if err := h.repo.DeleteEndpoint(r.Context(), endpoint.ID); err != nil {
		h.logger.Error("failed to delete endpoint", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to delete webhook")
		return
	}

	h.logger.Info("webhook endpoint deleted", "endpoint_id", endpoint.ID)

	w.WriteHeader(http.StatusNoContent)
}

// RotateSecret handles POST /api/v1/webhooks/{id}/rotate-secret.
// The old secret stops signing immediately.
func (h *WebhookHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := h.ownedEndpoint(w, r)
	if !ok {
		return
	}

	newSecret, err := webhook.GenerateSecret()
	if err != nil {
		h.logger.Error("failed to generate secret", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to rotate secret")
		return
	}

	if err := h.repo.RotateEndpointSecret(r.Context(), endpoint.ID, newSecret); err != nil {
		h.logger.Error("failed to rotate secret", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to rotate secret")
		return
	}

	h.logger.Info("webhook secret rotated", "endpoint_id", endpoint.ID)

	writeJSON(w, http.StatusOK, dto.RotateSecretResponse{
		EndpointID: endpoint.ID,
		Secret:     newSecret,
		RotatedAt:  time.Now().UTC(),
	})
}

// Test handles POST /api/v1/webhooks/{id}/test.
// Queues a test event for delivery to the endpoint.
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := h.ownedEndpoint(w, r)
	if !ok {
		return
	}

	var req dto.TestEndpointRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidationError, "Invalid request body")
			return
		}
	}

	data := req.Data
	if data == nil {
		data = map[string]any{"message": "test delivery"}
	}

	delivery, err := h.publisher.PublishToEndpoint(r.Context(), endpoint, model.EventTypeTest, data)
	if err != nil {
		h.logger.Error("failed to queue test delivery", "endpoint_id", endpoint.ID, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to queue test delivery")
		return
	}

	writeJSON(w, http.StatusAccepted, delivery)
}

// ListDeliveries handles GET /api/v1/webhooks/{id}/deliveries.
func (h *WebhookHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := h.ownedEndpoint(w, r)
	if !ok {
		return
	}

	statuses := r.URL.Query()["status"]
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage := parseLimit(r.URL.Query().Get("per_page"), 20)
	offset := (page - 1) * perPage

	deliveries, total, err := h.repo.ListDeliveriesByEndpoint(r.Context(), endpoint.ID, statuses, perPage, offset)
	if err != nil {
		h.logger.Error("failed to list deliveries", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to list deliveries")
		return
	}

	if deliveries == nil {
		deliveries = []*model.WebhookDelivery{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": deliveries,
		"pagination": map[string]any{
			"total":    total,
			"page":     page,
			"per_page": perPage,
		},
	})
}

// RetryDelivery handles POST /api/v1/webhooks/{id}/deliveries/{deliveryId}/retry.
func (h *WebhookHandler) RetryDelivery(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := h.ownedEndpoint(w, r)
	if !ok {
		return
	}

	deliveryID := chi.URLParam(r, "deliveryId")

	delivery, err := h.repo.GetDelivery(r.Context(), deliveryID)
	if err != nil || delivery.EndpointID != endpoint.ID {
		writeError(w, http.StatusNotFound, codeNotFound, "Delivery not found")
		return
	}

	if err := h.repo.ResetDeliveryForRetry(r.Context(), deliveryID); err != nil {
		if errors.Is(err, webhook.ErrDeliveryNotFound) {
			writeError(w, http.StatusConflict, codeConflict, "Delivery is not in a retriable state")
			return
		}
		h.logger.Error("failed to retry delivery", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to retry delivery")
		return
	}

	h.logger.Info("webhook delivery retry requested",
		"delivery_id", deliveryID,
		"endpoint_id", endpoint.ID,
	)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "retry_scheduled"})
}

// ownedEndpoint loads the endpoint from the URL and enforces ownership.
// Foreign and missing endpoints both return 404 to prevent enumeration.
func (h *WebhookHandler) ownedEndpoint(w http.ResponseWriter, r *http.Request) (*model.WebhookEndpoint, bool) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		return nil, false
	}

	endpointID := chi.URLParam(r, "id")
	endpoint, err := h.repo.GetEndpoint(ctx, endpointID)
	if err != nil {
		if errors.Is(err, webhook.ErrEndpointNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "Webhook not found")
			return nil, false
		}
		h.logger.Error("failed to get endpoint", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to load webhook")
		return nil, false
	}

	if endpoint.UserID != authCtx.UserID {
		writeError(w, http.StatusNotFound, codeNotFound, "Webhook not found")
		return nil, false
	}

	return endpoint, true
}

// parseEventTypes validates raw event type strings. An empty list
// defaults to payment.succeeded.
func parseEventTypes(raw []string) ([]model.EventType, error) {
	if len(raw) == 0 {
		return []model.EventType{model.EventTypePaymentSucceeded}, nil
	}

	eventTypes := make([]model.EventType, 0, len(raw))
	for _, s := range raw {
		et := model.EventType(s)
		if !model.IsValidEventType(et) {
			return nil, errors.New("invalid event type: " + s)
		}
		eventTypes = append(eventTypes, et)
	}
	return eventTypes, nil
}
