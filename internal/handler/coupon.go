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

// CouponHandler handles HTTP requests for coupon operations.
type CouponHandler struct {
	svc    *service.CouponService
	logger *slog.Logger
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(svc *service.CouponService, logger *slog.Logger) *CouponHandler {
	return &CouponHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/coupons.
func (h *CouponHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid request body")
		return
	}

	input := service.CreateCouponInput{
		Code:           req.Code,
		Type:           model.CouponType(req.Type),
		Value:          req.Value,
		MaxRedemptions: req.MaxRedemptions,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
		AppliesTo:      req.AppliesTo,
		Active:         req.Active,
	}

	coupon, err := h.svc.CreateCoupon(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("coupon_created",
		"coupon_id", coupon.ID,
		"code", coupon.Code,
		"type", string(coupon.Type),
	)

	writeJSON(w, http.StatusCreated, coupon)
}

// Get handles GET /api/v1/coupons/{id}.
func (h *CouponHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "Coupon ID is required")
		return
	}

	coupon, err := h.svc.GetCoupon(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, coupon)
}

// List handles GET /api/v1/coupons.
func (h *CouponHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	result, err := h.svc.ListCoupons(r.Context(), service.ListCouponsInput{
		Cursor: query.Get("cursor"),
		Limit:  parseLimit(query.Get("limit"), 20),
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(result.Coupons, result.NextCursor, result.HasMore))
}

// Update handles PATCH /api/v1/coupons/{id}.
func (h *CouponHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "Coupon ID is required")
		return
	}

	var req dto.UpdateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid request body")
		return
	}

	input := service.UpdateCouponInput{
		ID:             id,
		Value:          req.Value,
		MaxRedemptions: req.MaxRedemptions,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
		AppliesTo:      req.AppliesTo,
		Active:         req.Active,
		ClearWindow:    req.ClearWindow,
	}

	coupon, err := h.svc.UpdateCoupon(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("coupon_updated", "coupon_id", coupon.ID, "code", coupon.Code)

	writeJSON(w, http.StatusOK, coupon)
}

// Delete handles DELETE /api/v1/coupons/{id}.
func (h *CouponHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "Coupon ID is required")
		return
	}

	if err := h.svc.DeleteCoupon(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("coupon_deleted", "coupon_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// Validate handles POST /api/v1/coupons/validate.
// A checkout-page preview: never redeems, never mutates.
func (h *CouponHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req dto.ValidateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid request body")
		return
	}
	if req.Code == "" || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "code and product_id are required")
		return
	}

	result, err := h.svc.ValidateCoupon(r.Context(), req.Code, req.ProductID)
	if err != nil {
		// Not redeemable is a normal preview outcome, not an error status.
		if errors.Is(err, service.ErrCouponNotRedeemable) {
			writeJSON(w, http.StatusOK, dto.ValidateCouponResponse{Valid: false})
			return
		}
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ValidateCouponResponse{
		Valid:         true,
		Coupon:        result.Coupon,
		DiscountCents: result.DiscountCents,
		FinalCents:    result.FinalCents,
	})
}

// handleServiceError maps service errors to HTTP responses.
func (h *CouponHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrCouponNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "Coupon not found")
	case errors.Is(err, service.ErrProductNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "Product not found")
	case errors.Is(err, service.ErrCodeExists):
		writeError(w, http.StatusConflict, codeAlreadyExists, "Coupon code already exists")
	case errors.Is(err, service.ErrInvalidCouponCode):
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid coupon code format")
	case errors.Is(err, service.ErrInvalidCouponType):
		writeError(w, http.StatusBadRequest, codeValidationError, "Coupon type must be percent or fixed")
	case errors.Is(err, service.ErrInvalidCouponValue):
		writeError(w, http.StatusBadRequest, codeValidationError, err.Error())
	case errors.Is(err, service.ErrInvalidWindow):
		writeError(w, http.StatusUnprocessableEntity, codeInvalidInput, "valid_until must be after valid_from")
	case errors.Is(err, service.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, codeInvalidToken, "Invalid pagination cursor")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "An internal error occurred")
	}
}
