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

// ProductHandler handles HTTP requests for product operations.
type ProductHandler struct {
	svc    *service.ProductService
	logger *slog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid request body")
		return
	}

	input := service.CreateProductInput{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		Active:      req.Active,
		FileURL:     req.FileURL,
		OTO:         req.OTO,
		Bump:        req.Bump,
	}

	product, err := h.svc.CreateProduct(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("product_created",
		"product_id", product.ID,
		"slug", product.Slug,
		"price_cents", product.PriceCents,
	)

	writeJSON(w, http.StatusCreated, product)
}

// Get handles GET /api/v1/products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "Product ID is required")
		return
	}

	product, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// GetBySlug handles GET /api/v1/products/slug/{slug}.
func (h *ProductHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "Product slug is required")
		return
	}

	product, err := h.svc.GetProductBySlug(r.Context(), slug)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// List handles GET /api/v1/products.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	input := service.ListProductsInput{
		Cursor: query.Get("cursor"),
		Limit:  parseLimit(query.Get("limit"), 20),
	}

	switch query.Get("active") {
	case "true":
		active := true
		input.Active = &active
	case "false":
		active := false
		input.Active = &active
	}

	result, err := h.svc.ListProducts(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(result.Products, result.NextCursor, result.HasMore))
}

// Update handles PATCH /api/v1/products/{id}.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "Product ID is required")
		return
	}

	var req dto.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid request body")
		return
	}

	input := service.UpdateProductInput{
		ID:          id,
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		Active:      req.Active,
		FileURL:     req.FileURL,
	}

	if req.OTO.Present {
		if req.OTO.Value == nil {
			input.ClearOTO = true
		} else {
			input.OTO = req.OTO.Value
		}
	}
	if req.Bump.Present {
		if req.Bump.Value == nil {
			input.ClearBump = true
		} else {
			input.Bump = req.Bump.Value
		}
	}

	product, err := h.svc.UpdateProduct(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("product_updated",
		"product_id", product.ID,
		"slug", product.Slug,
	)

	writeJSON(w, http.StatusOK, product)
}

// Delete handles DELETE /api/v1/products/{id}.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "Product ID is required")
		return
	}

	if err := h.svc.DeleteProduct(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("product_deleted", "product_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// handleServiceError maps service errors to HTTP responses.
func (h *ProductHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "Product not found")
	case errors.Is(err, service.ErrSlugExists):
		writeError(w, http.StatusConflict, codeAlreadyExists, "Product slug already exists")
	case errors.Is(err, service.ErrInvalidSlug):
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid slug format")
	case errors.Is(err, service.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, codeValidationError, "Price must not be negative")
	case errors.Is(err, service.ErrInvalidCurrency):
		writeError(w, http.StatusBadRequest, codeValidationError, "Unsupported currency")
	case errors.Is(err, service.ErrInvalidFileURL):
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid file URL")
	case errors.Is(err, service.ErrSelfReference):
		writeError(w, http.StatusUnprocessableEntity, codeInvalidInput, "Offer cannot reference the product itself")
	case errors.Is(err, service.ErrOfferProductMissing):
		writeError(w, http.StatusUnprocessableEntity, codeInvalidInput, "Offer references a nonexistent product")
	case errors.Is(err, service.ErrInvalidOTO):
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid one-time offer configuration")
	case errors.Is(err, service.ErrInvalidBump):
		writeError(w, http.StatusBadRequest, codeValidationError, "Invalid order bump configuration")
	case errors.Is(err, service.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, codeInvalidToken, "Invalid pagination cursor")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "An internal error occurred")
	}
}
