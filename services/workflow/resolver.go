// Package workflow runs every state-changing operation through one audited
// pipeline: resolve the actor, authorize the role, execute, record an audit
// entry, then invalidate the affected views.
package workflow

import (
	"context"

	"github.com/mrpayong/terual-accounting/identity"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/services"
)

// ActorResolver maps the request's session to an internal actor
type ActorResolver interface {
	Resolve(ctx context.Context) (*models.Actor, error)
}

// Resolver resolves actors from identity provider sessions. An actor pinned
// with identity.WithActor takes precedence and skips the user lookup.
type Resolver struct {
	users repositories.UserRepository
}

// NewResolver creates a new Resolver
func NewResolver(users repositories.UserRepository) *Resolver {
	return &Resolver{users: users}
}

// Resolve returns the actor for ctx. A missing session is ErrUnauthenticated;
// a session whose subject has no user record is ErrUserNotFound.
func (r *Resolver) Resolve(ctx context.Context) (*models.Actor, error) {
	if actor := identity.ActorFromContext(ctx); actor != nil {
		return actor, nil
	}

	claims := identity.ClaimsFromContext(ctx)
	if claims == nil || claims.Subject == "" {
		return nil, services.ErrUnauthenticated
	}

	user, err := r.users.GetByExternalID(ctx, claims.Subject)
	if err != nil {
		return nil, services.FromStorage(err, services.ErrUserNotFound)
	}
	return models.ActorFromUser(user), nil
}
