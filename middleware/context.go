package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mrpayong/terual-accounting/identity"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for a request ID set outside chi
	RequestIDKey contextKey = "request_id"
)

// GetRequestIDFromContext retrieves the request ID, preferring the one chi's
// RequestID middleware assigned
func GetRequestIDFromContext(ctx context.Context) string {
	if id := chimw.GetReqID(ctx); id != "" {
		return id
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetClaimsFromContext retrieves the verified session claims
func GetClaimsFromContext(ctx context.Context) *identity.Claims {
	return identity.ClaimsFromContext(ctx)
}
