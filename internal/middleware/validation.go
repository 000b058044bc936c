package middleware

import (
	"mime"
	"net/http"
)

// RequireJSON returns middleware that rejects write requests whose
// Content-Type is not application/json. GET, HEAD, DELETE and OPTIONS
// requests pass through since they carry no body.
func RequireJSON() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			// A body-less POST (e.g. an action endpoint) may omit the header.
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			ct := r.Header.Get("Content-Type")
			mediaType, _, err := mime.ParseMediaType(ct)
			if err != nil || mediaType != "application/json" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"VALIDATION_ERROR","message":"Content-Type must be application/json"}}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
