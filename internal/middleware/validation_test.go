package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequireJSON(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{
			name:        "json post accepted",
			method:      http.MethodPost,
			contentType: "application/json",
			body:        `{"name":"Ebook"}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "json with charset accepted",
			method:      http.MethodPost,
			contentType: "application/json; charset=utf-8",
			body:        `{"name":"Ebook"}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "form post rejected",
			method:      http.MethodPost,
			contentType: "application/x-www-form-urlencoded",
			body:        "name=Ebook",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		{
			name:        "missing content type with body rejected",
			method:      http.MethodPut,
			contentType: "",
			body:        `{"name":"Ebook"}`,
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		{
			name:       "get passes without content type",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
		{
			name:       "delete passes without content type",
			method:     http.MethodDelete,
			wantStatus: http.StatusOK,
		},
		{
			name:       "bodyless post passes",
			method:     http.MethodPost,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireJSON()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(tt.method, "/", nil)
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestMaxBodySize(t *testing.T) {
	handler := MaxBodySize(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		if _, err := r.Body.Read(buf); err != nil && !strings.Contains(err.Error(), "EOF") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("small body passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ok"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("oversized body rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
		}
	})
}
