package workflow

import (
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/services"
)

// Authorize passes actor through when it holds one of the allowed roles
func Authorize(actor *models.Actor, allowed ...models.Role) (*models.Actor, error) {
	if actor == nil {
		return nil, services.ErrUnauthenticated
	}
	if !actor.HasRole(allowed...) {
		return nil, services.ErrForbidden.
			WithDetail("role", string(actor.Role))
	}
	return actor, nil
}

// Role sets shared by the services
var (
	StaffOrAdmin    = []models.Role{models.RoleStaff, models.RoleAdmin}
	AdminOnly       = []models.Role{models.RoleAdmin}
	SysAdminOnly    = []models.Role{models.RoleSysAdmin}
	AdminOrSysAdmin = []models.Role{models.RoleAdmin, models.RoleSysAdmin}
)
