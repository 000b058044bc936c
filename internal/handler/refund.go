package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gateflow/gateflow/internal/handler/dto"
	"github.com/gateflow/gateflow/internal/model"
	"github.com/gateflow/gateflow/internal/service"
)

// RefundHandler handles HTTP requests for refund request operations.
type RefundHandler struct {
	svc    *service.RefundService
	logger *slog.Logger
}

// NewRefundHandler creates a new RefundHandler.
func NewRefundHandler(svc *service.RefundService, logger *slog.Logger) *RefundHandler {
	return &RefundHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/refund-requests.
func (h *RefundHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRefundRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid request body")
		return
	}
	if req.PaymentID == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "payment_id is required")
		return
	}

	request, err := h.svc.CreateRefundRequest(r.Context(), req.PaymentID, req.Reason)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("refund_request_created",
		"refund_request_id", request.ID,
		"payment_id", request.PaymentID,
	)

	writeJSON(w, http.StatusCreated, request)
}

// Get handles GET /api/v1/refund-requests/{id}.
func (h *RefundHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "Refund request ID is required")
		return
	}

	request, err := h.svc.GetRefundRequest(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, request)
}

// List handles GET /api/v1/refund-requests.
func (h *RefundHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	result, err := h.svc.ListRefundRequests(r.Context(), service.ListRefundRequestsInput{
		Status:    query.Get("status"),
		PaymentID: query.Get("payment_id"),
		Cursor:    query.Get("cursor"),
		Limit:     parseLimit(query.Get("limit"), 20),
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(result.Requests, result.NextCursor, result.HasMore))
}

// Approve handles POST /api/v1/refund-requests/{id}/approve.
// The processor refund runs before the request resolves.
func (h *RefundHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, true)
}

// Reject handles POST /api/v1/refund-requests/{id}/reject.
func (h *RefundHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, false)
}

func (h *RefundHandler) resolve(w http.ResponseWriter, r *http.Request, approve bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "Refund request ID is required")
		return
	}

	var req dto.ResolveRefundRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidationError, "Invalid request body")
			return
		}
	}

	var (
		request *model.RefundRequest
		err     error
	)
	if approve {
		request, err = h.svc.ApproveRefundRequest(r.Context(), id, req.Note)
	} else {
		request, err = h.svc.RejectRefundRequest(r.Context(), id, req.Note)
	}
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	action := "rejected"
	if approve {
		action = "approved"
	}
	h.logger.Info("refund_request_resolved", "refund_request_id", id, "resolution", action)

	writeJSON(w, http.StatusOK, request)
}

// handleServiceError maps service errors to HTTP responses.
func (h *RefundHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRefundRequestNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "Refund request not found")
	case errors.Is(err, service.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "Payment not found")
	case errors.Is(err, service.ErrRefundRequestOpen):
		writeError(w, http.StatusConflict, codeAlreadyExists, "An open refund request already exists for this payment")
	case errors.Is(err, service.ErrRefundRequestResolved):
		writeError(w, http.StatusConflict, codeConflict, "Refund request already resolved")
	case errors.Is(err, service.ErrPaymentNotRefundable):
		writeError(w, http.StatusConflict, codeConflict, "Payment is not refundable")
	case errors.Is(err, service.ErrProcessorDown):
		writeError(w, http.StatusBadGateway, codeInternalError, "Payment processor is unavailable, try again later")
	case errors.Is(err, service.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, codeInvalidToken, "Invalid pagination cursor")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "An internal error occurred")
	}
}
