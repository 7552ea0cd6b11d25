package identity

import (
	"context"
	"time"

	"github.com/mrpayong/terual-accounting/models"
)

type contextKey string

const (
	claimsKey contextKey = "identity_claims"
	actorKey  contextKey = "identity_actor"
)

// Claims is the verified session presented by the identity provider
type Claims struct {
	Subject         string    `json:"sub"` // external user ID
	SessionID       string    `json:"sid"`
	Email           string    `json:"email,omitempty"`
	AuthorizedParty string    `json:"azp,omitempty"`
	Issuer          string    `json:"iss"`
	IssuedAt        time.Time `json:"iat"`
	ExpiresAt       time.Time `json:"exp"`
}

// WithClaims adds verified session claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext retrieves session claims from context
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

// WithActor pins an already resolved actor to the context. Trusted internal
// callers use it with models.SystemActor; it bypasses session resolution.
func WithActor(ctx context.Context, actor *models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext retrieves a pinned actor from context
func ActorFromContext(ctx context.Context) *models.Actor {
	if actor, ok := ctx.Value(actorKey).(*models.Actor); ok {
		return actor
	}
	return nil
}

// WithSystemActor marks ctx as running on behalf of the system
func WithSystemActor(ctx context.Context) context.Context {
	return WithActor(ctx, models.SystemActor())
}
