// Package users manages application users, their roles and the audit trail.
//
// Users are created and removed by the identity provider's webhook; those
// operations run as the system actor. Role changes are restricted to SYSADMIN.
package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/identity"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/services"
	"github.com/mrpayong/terual-accounting/services/audit"
	"github.com/mrpayong/terual-accounting/services/invalidation"
	"github.com/mrpayong/terual-accounting/services/workflow"
	"go.uber.org/zap"
)

// Service handles users and audit log reads
type Service struct {
	users  repositories.UserRepository
	trail  *audit.Reader
	runner *workflow.Runner
	logger *zap.Logger
}

// NewService creates a new user service
func NewService(users repositories.UserRepository, trail *audit.Reader, runner *workflow.Runner, logger *zap.Logger) *Service {
	return &Service{
		users:  users,
		trail:  trail,
		runner: runner,
		logger: logger.Named("users"),
	}
}

// ListUsers returns a page of users
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return workflow.Query(ctx, s.runner, "listUsers", workflow.AdminOrSysAdmin,
		func(ctx context.Context, _ *models.Actor) ([]*models.User, error) {
			if limit <= 0 || limit > 200 {
				limit = 50
			}
			if offset < 0 {
				offset = 0
			}
			return s.users.List(ctx, limit, offset)
		})
}

// Me returns the signed-in user
func (s *Service) Me(ctx context.Context) (*models.User, error) {
	return workflow.Query(ctx, s.runner, "me", models.AllRoles(),
		func(ctx context.Context, actor *models.Actor) (*models.User, error) {
			if actor.System {
				return nil, services.ErrUserNotFound
			}
			user, err := s.users.GetByID(ctx, actor.UserID)
			if err != nil {
				return nil, services.FromStorage(err, services.ErrUserNotFound)
			}
			return user, nil
		})
}

// UpdateUserRole changes a user's role. Actors cannot change their own role.
func (s *Service) UpdateUserRole(ctx context.Context, userID uuid.UUID, role models.Role) (*models.User, error) {
	var previous models.Role
	return workflow.Run(ctx, s.runner, workflow.Mutation[*models.User]{
		Action: models.AuditActionUpdateUserRole,
		Roles:  workflow.SysAdminOnly,
		Execute: func(ctx context.Context, actor *models.Actor) (*models.User, error) {
			if !role.Valid() {
				return nil, services.ErrInvalidInput.WithDetail("role", string(role))
			}
			if !actor.System && actor.UserID == userID {
				return nil, services.ErrForbidden.WithDetail("reason", "cannot change your own role")
			}

			current, err := s.users.GetByID(ctx, userID)
			if err != nil {
				return nil, services.FromStorage(err, services.ErrUserNotFound)
			}
			previous = current.Role

			user, err := s.users.UpdateRole(ctx, userID, role)
			if err != nil {
				return nil, services.FromStorage(err, services.ErrUserNotFound)
			}
			return user, nil
		},
		Metadata: func(u *models.User) map[string]interface{} {
			return map[string]interface{}{
				"userId":   u.ID,
				"email":    u.Email,
				"fromRole": previous,
				"toRole":   u.Role,
			}
		},
		Invalidates: func(*models.User) []string {
			return []string{invalidation.PathAdminUsers}
		},
	})
}

// SyncUser creates or refreshes the user described by an identity provider
// event. New users start as STAFF; an existing role is kept.
func (s *Service) SyncUser(ctx context.Context, event *identity.UserEvent) (*models.User, error) {
	return s.upsert(identity.WithSystemActor(ctx), event, models.RoleStaff)
}

// CreateUser registers a user directly with role, as the system actor
func (s *Service) CreateUser(ctx context.Context, externalID, email string, role models.Role) (*models.User, error) {
	return s.upsert(identity.WithSystemActor(ctx), &identity.UserEvent{ExternalID: externalID, Email: email}, role)
}

func (s *Service) upsert(ctx context.Context, event *identity.UserEvent, role models.Role) (*models.User, error) {
	return workflow.Run(ctx, s.runner, workflow.Mutation[*models.User]{
		Action: models.AuditActionSyncUser,
		Roles:  workflow.SysAdminOnly,
		Execute: func(ctx context.Context, _ *models.Actor) (*models.User, error) {
			externalID := strings.TrimSpace(event.ExternalID)
			email := strings.ToLower(strings.TrimSpace(event.Email))
			if externalID == "" || email == "" {
				return nil, services.ErrInvalidInput.WithDetail("reason", "user event needs an id and an email")
			}
			if !role.Valid() {
				return nil, services.ErrInvalidInput.WithDetail("role", string(role))
			}

			user := models.NewUser(externalID, email, role)
			user.FirstName = event.FirstName
			user.LastName = event.LastName
			user.ImageURL = event.ImageURL

			stored, err := s.users.Upsert(ctx, user)
			if err != nil {
				return nil, services.FromStorage(err, nil)
			}
			return stored, nil
		},
		Metadata: func(u *models.User) map[string]interface{} {
			return map[string]interface{}{
				"userId":     u.ID,
				"externalId": u.ExternalID,
				"email":      u.Email,
				"role":       u.Role,
			}
		},
		Invalidates: func(*models.User) []string {
			return []string{invalidation.PathAdminUsers}
		},
	})
}

// DeleteUser removes the user with the identity provider subject externalID
func (s *Service) DeleteUser(ctx context.Context, externalID string) (*models.User, error) {
	return workflow.Run(identity.WithSystemActor(ctx), s.runner, workflow.Mutation[*models.User]{
		Action: models.AuditActionDeleteUser,
		Roles:  workflow.SysAdminOnly,
		Execute: func(ctx context.Context, _ *models.Actor) (*models.User, error) {
			if strings.TrimSpace(externalID) == "" {
				return nil, services.ErrInvalidInput.WithDetail("reason", "user event needs an id")
			}
			user, err := s.users.DeleteByExternalID(ctx, externalID)
			if err != nil {
				return nil, services.FromStorage(err, services.ErrUserNotFound)
			}
			return user, nil
		},
		Metadata: func(u *models.User) map[string]interface{} {
			return map[string]interface{}{
				"userId":     u.ID,
				"externalId": u.ExternalID,
				"email":      u.Email,
			}
		},
		Invalidates: func(*models.User) []string {
			return []string{invalidation.PathAdminUsers}
		},
	})
}

// AuditTrail returns audit entries with resolved actor names
func (s *Service) AuditTrail(ctx context.Context, filter repositories.AuditFilter) ([]*audit.Record, error) {
	return workflow.Query(ctx, s.runner, "auditTrail", workflow.AdminOrSysAdmin,
		func(ctx context.Context, _ *models.Actor) ([]*audit.Record, error) {
			if filter.Limit <= 0 || filter.Limit > 500 {
				filter.Limit = 100
			}
			if filter.Offset < 0 {
				filter.Offset = 0
			}
			return s.trail.List(ctx, filter)
		})
}
