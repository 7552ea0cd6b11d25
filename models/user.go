package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents the role of a firm user
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleStaff    Role = "STAFF"
	RoleSysAdmin Role = "SYSADMIN"
)

var roleLabels = map[Role]string{
	RoleAdmin:    "Administrator",
	RoleStaff:    "Staff",
	RoleSysAdmin: "System Administrator",
}

// AllRoles returns every known role
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleStaff, RoleSysAdmin}
}

// Label returns the display label for the role
func (r Role) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return unknownLabel
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// ParseRole parses a role name case-insensitively
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// User represents a firm user synchronised from the identity provider
type User struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ExternalID string    `json:"external_id" db:"external_id"` // identity provider subject
	Email      string    `json:"email" db:"email"`
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   string    `json:"last_name" db:"last_name"`
	ImageURL   string    `json:"image_url,omitempty" db:"image_url"`
	Role       Role      `json:"role" db:"role"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User instance
func NewUser(externalID, email string, role Role) *User {
	now := time.Now()
	return &User{
		ID:         uuid.New(),
		ExternalID: externalID,
		Email:      email,
		Role:       role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// FullName returns the display name, falling back to the email
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Actor is the resolved identity performing one operation.
// It is built per request and never mutated afterwards.
type Actor struct {
	UserID     uuid.UUID
	ExternalID string
	Role       Role
	System     bool
}

// ActorFromUser builds the actor for a stored user
func ActorFromUser(u *User) *Actor {
	return &Actor{
		UserID:     u.ID,
		ExternalID: u.ExternalID,
		Role:       u.Role,
	}
}

// SystemActor is the actor used by trusted internal callers (scheduler, webhook relay, CLI)
func SystemActor() *Actor {
	return &Actor{
		UserID:     uuid.Nil,
		ExternalID: "system",
		Role:       RoleSysAdmin,
		System:     true,
	}
}

// HasRole reports whether the actor holds any of the given roles
func (a *Actor) HasRole(roles ...Role) bool {
	if a == nil {
		return false
	}
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
