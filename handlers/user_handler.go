package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/services/audit"
	"github.com/mrpayong/terual-accounting/utils"
	"go.uber.org/zap"
)

// UserService defines the user administration operations the API exposes
type UserService interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	Me(ctx context.Context) (*models.User, error)
	UpdateUserRole(ctx context.Context, userID uuid.UUID, role models.Role) (*models.User, error)
	AuditTrail(ctx context.Context, filter repositories.AuditFilter) ([]*audit.Record, error)
}

// UpdateRoleRequest represents a role change
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// UserHandler handles user and audit log HTTP requests
type UserHandler struct {
	service UserService
	logger  *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{service: service, logger: logger}
}

// HandleList handles GET /api/v1/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := utils.QueryInt(r, "limit", 50)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	offset, err := utils.QueryInt(r, "offset", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteList(w, users, len(users), limit, offset)
}

// HandleMe handles GET /api/v1/users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, user)
}

// HandleUpdateRole handles PUT /api/v1/users/{id}/role
func (h *UserHandler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	var req UpdateRoleRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	role, ok := models.ParseRole(req.Role)
	if !ok {
		_ = utils.WriteBadRequest(w, "Unknown role", map[string]interface{}{"role": req.Role})
		return
	}

	user, err := h.service.UpdateUserRole(r.Context(), id, role)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, user)
}

// HandleAuditLogs handles GET /api/v1/audit/logs?user_id=&action=
func (h *UserHandler) HandleAuditLogs(w http.ResponseWriter, r *http.Request) {
	var filter repositories.AuditFilter
	var err error

	if filter.UserID, err = queryUUID(r, "user_id"); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if raw := r.URL.Query().Get("action"); raw != "" {
		action := models.AuditAction(raw)
		if !action.Valid() {
			_ = utils.WriteBadRequest(w, errInvalidParam("action").Error(), nil)
			return
		}
		filter.Action = &action
	}
	if filter.Limit, err = utils.QueryInt(r, "limit", 100); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if filter.Offset, err = utils.QueryInt(r, "offset", 0); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	records, err := h.service.AuditTrail(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteList(w, records, len(records), filter.Limit, filter.Offset)
}
