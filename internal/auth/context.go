// Package auth provides API key generation, hashing, and request identity.
package auth

import (
	"context"

	"github.com/gateflow/gateflow/internal/model"
)

type contextKey string

// authContextKey holds the authenticated identity for the request.
const authContextKey contextKey = "auth_context"

// ContextWithAuth returns a context carrying the authenticated key's
// identity. Set by the auth middleware once a key verifies.
func ContextWithAuth(ctx context.Context, auth *model.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, auth)
}

// AuthFromContext returns the request identity, or nil for an
// unauthenticated request.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	auth, ok := ctx.Value(authContextKey).(*model.AuthContext)
	if !ok {
		return nil
	}
	return auth
}

// UserIDFromContext returns the authenticated user's ID, or "" when the
// request carries no identity.
func UserIDFromContext(ctx context.Context) string {
	if auth := AuthFromContext(ctx); auth != nil {
		return auth.UserID
	}
	return ""
}

// KeyIDFromContext returns the ID of the API key that authenticated the
// request, or "" when the request carries no identity.
func KeyIDFromContext(ctx context.Context) string {
	if auth := AuthFromContext(ctx); auth != nil {
		return auth.KeyID
	}
	return ""
}
