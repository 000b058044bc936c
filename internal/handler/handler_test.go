package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gateflow/gateflow/internal/service"
)

func TestNotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()

	NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	var response struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Error.Code != "NOT_FOUND" {
		t.Errorf("unexpected error code: %s", response.Error.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	MethodNotAllowed(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}

	var response struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("unexpected error code: %s", response.Error.Code)
	}
}

// Error responses must carry one of the documented codes; the specifics
// belong in the message.
func TestServiceErrorCodes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	products := NewProductHandler(nil, logger)
	payments := NewPaymentHandler(nil, logger)
	users := NewUserHandler(nil, logger)
	refunds := NewRefundHandler(nil, logger)

	tests := []struct {
		name       string
		serve      func(w http.ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "duplicate slug",
			serve:      func(w http.ResponseWriter) { products.handleServiceError(w, service.ErrSlugExists) },
			wantStatus: http.StatusConflict,
			wantCode:   "ALREADY_EXISTS",
		},
		{
			name:       "bad cursor",
			serve:      func(w http.ResponseWriter) { products.handleServiceError(w, service.ErrInvalidCursor) },
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_TOKEN",
		},
		{
			name:       "negative price",
			serve:      func(w http.ResponseWriter) { products.handleServiceError(w, service.ErrInvalidPrice) },
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "missing product",
			serve:      func(w http.ResponseWriter) { products.handleServiceError(w, service.ErrProductNotFound) },
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "declined charge",
			serve:      func(w http.ResponseWriter) { payments.handleServiceError(w, service.ErrPaymentDeclined) },
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "duplicate email",
			serve:      func(w http.ResponseWriter) { users.handleServiceError(w, service.ErrEmailExists) },
			wantStatus: http.StatusConflict,
			wantCode:   "ALREADY_EXISTS",
		},
		{
			name:       "user still referenced",
			serve:      func(w http.ResponseWriter) { users.handleServiceError(w, service.ErrUserReferenced) },
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
		{
			name:       "refund already resolved",
			serve:      func(w http.ResponseWriter) { refunds.handleServiceError(w, service.ErrRefundRequestResolved) },
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.serve(rec)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var response struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", response.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		def  int
		want int
	}{
		{name: "empty uses default", raw: "", def: 20, want: 20},
		{name: "valid value", raw: "50", def: 20, want: 50},
		{name: "max allowed", raw: "100", def: 20, want: 100},
		{name: "over max uses default", raw: "101", def: 20, want: 20},
		{name: "zero uses default", raw: "0", def: 20, want: 20},
		{name: "negative uses default", raw: "-5", def: 20, want: 20},
		{name: "non-numeric uses default", raw: "abc", def: 20, want: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLimit(tt.raw, tt.def)
			if got != tt.want {
				t.Errorf("parseLimit(%q, %d) = %d, want %d", tt.raw, tt.def, got, tt.want)
			}
		})
	}
}
