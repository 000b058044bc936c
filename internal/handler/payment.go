package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gateflow/gateflow/internal/handler/dto"
	"github.com/gateflow/gateflow/internal/service"
)

// PaymentHandler handles HTTP requests for payment operations.
type PaymentHandler struct {
	svc    *service.PaymentService
	logger *slog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc *service.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/payments.
// Runs the checkout end to end: pricing, charge, coupon redemption.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "product_id is required")
		return
	}

	payment, err := h.svc.CreatePayment(r.Context(), service.CreatePaymentInput{
		ProductID:     req.ProductID,
		CouponCode:    req.CouponCode,
		CustomerEmail: req.CustomerEmail,
		IncludeBump:   req.IncludeBump,
	})
	if err != nil {
		// A decline still produced a failed payment row; return it with
		// the error so the caller can show the stored reason.
		if errors.Is(err, service.ErrPaymentDeclined) && payment != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": map[string]string{
					"code":    codeInvalidInput,
					"message": payment.FailureReason,
				},
				"payment": payment,
			})
			return
		}
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("payment_created",
		"payment_id", payment.ID,
		"product_id", payment.ProductID,
		"amount_cents", payment.AmountCents,
	)

	writeJSON(w, http.StatusCreated, payment)
}

// Get handles GET /api/v1/payments/{id}.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "Payment ID is required")
		return
	}

	payment, err := h.svc.GetPayment(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, payment)
}

// List handles GET /api/v1/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	result, err := h.svc.ListPayments(r.Context(), service.ListPaymentsInput{
		Status:        query.Get("status"),
		CustomerEmail: query.Get("customer_email"),
		ProductID:     query.Get("product_id"),
		Cursor:        query.Get("cursor"),
		Limit:         parseLimit(query.Get("limit"), 20),
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(result.Payments, result.NextCursor, result.HasMore))
}

// handleServiceError maps service errors to HTTP responses.
func (h *PaymentHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "Payment not found")
	case errors.Is(err, service.ErrProductNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "Product not found")
	case errors.Is(err, service.ErrProductNotPurchasable):
		writeError(w, http.StatusConflict, codeConflict, "Product is not purchasable")
	case errors.Is(err, service.ErrCouponNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "Coupon not found")
	case errors.Is(err, service.ErrCouponNotRedeemable):
		writeError(w, http.StatusUnprocessableEntity, codeInvalidInput, "Coupon is not redeemable for this product")
	case errors.Is(err, service.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid customer email")
	case errors.Is(err, service.ErrPaymentDeclined):
		writeError(w, http.StatusUnprocessableEntity, codeInvalidInput, err.Error())
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
