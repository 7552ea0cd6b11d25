package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/services"
	"github.com/mrpayong/terual-accounting/services/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestUserHandler_Me(t *testing.T) {
	t.Run("current user", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("Me", mock.Anything).Return(&models.User{ID: uuid.New(), Email: "ana@firm.ph", Role: models.RoleStaff}, nil)
		h := NewUserHandler(svc, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleMe(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "ana@firm.ph")
	})

	t.Run("session without user record", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("Me", mock.Anything).Return(nil, services.ErrUserNotFound)
		h := NewUserHandler(svc, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleMe(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUserHandler_UpdateRole(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		callsSvc   bool
	}{
		{"promote", `{"role":"admin"}`, nil, http.StatusOK, true},
		{"own role", `{"role":"STAFF"}`, services.ErrForbidden, http.StatusForbidden, true},
		{"unknown role", `{"role":"AUDITOR"}`, nil, http.StatusBadRequest, false},
		{"missing role", `{}`, nil, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockUserService)
			if tt.callsSvc {
				if tt.serviceErr != nil {
					svc.On("UpdateUserRole", mock.Anything, id, mock.Anything).Return(nil, tt.serviceErr)
				} else {
					svc.On("UpdateUserRole", mock.Anything, id, models.RoleAdmin).
						Return(&models.User{ID: id, Role: models.RoleAdmin}, nil)
				}
			}
			h := NewUserHandler(svc, zap.NewNop())

			w := serve(http.MethodPut, "/users/{id}/role", h.HandleUpdateRole,
				httptest.NewRequest(http.MethodPut, "/users/"+id.String()+"/role", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.callsSvc {
				svc.AssertExpectations(t)
			} else {
				svc.AssertNotCalled(t, "UpdateUserRole", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestUserHandler_List(t *testing.T) {
	svc := new(MockUserService)
	svc.On("ListUsers", mock.Anything, 50, 0).Return([]*models.User{{Email: "a@firm.ph"}, {Email: "b@firm.ph"}}, nil)
	h := NewUserHandler(svc, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)
}

func TestUserHandler_AuditLogs(t *testing.T) {
	userID := uuid.New()

	t.Run("filters by user and action", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("AuditTrail", mock.Anything, mock.MatchedBy(func(f repositories.AuditFilter) bool {
			return f.UserID != nil && *f.UserID == userID &&
				f.Action != nil && *f.Action == models.AuditActionCreateTransaction &&
				f.Limit == 100
		})).Return([]*audit.Record{{
			AuditLog:    &models.AuditLog{Action: models.AuditActionCreateTransaction},
			ActionLabel: models.AuditActionCreateTransaction.Label(),
			ActorName:   "Ana Cruz",
		}}, nil)
		h := NewUserHandler(svc, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleAuditLogs(w, httptest.NewRequest(http.MethodGet,
			"/api/v1/audit/logs?user_id="+userID.String()+"&action="+string(models.AuditActionCreateTransaction), nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Ana Cruz")
	})

	t.Run("unknown action", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewUserHandler(svc, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleAuditLogs(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit/logs?action=dropTable", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("staff is forbidden", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("AuditTrail", mock.Anything, mock.Anything).Return(nil, services.ErrForbidden)
		h := NewUserHandler(svc, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleAuditLogs(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit/logs", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
