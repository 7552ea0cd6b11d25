package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/services/accounts"
	"github.com/mrpayong/terual-accounting/utils"
	"go.uber.org/zap"
)

// AccountService defines the account operations the API exposes
type AccountService interface {
	CreateAccount(ctx context.Context, in accounts.CreateInput) (*models.Account, error)
	UpdateAccount(ctx context.Context, id uuid.UUID, in accounts.UpdateInput) (*models.Account, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	SetDefaultAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// AccountHandler handles account HTTP requests
type AccountHandler struct {
	service AccountService
	logger  *zap.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(service AccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{service: service, logger: logger}
}

// HandleList handles GET /api/v1/accounts
func (h *AccountHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListAccounts(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteList(w, list, len(list), 0, 0)
}

// HandleGet handles GET /api/v1/accounts/{id}
func (h *AccountHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, account)
}

// HandleCreate handles POST /api/v1/accounts
func (h *AccountHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in accounts.CreateInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	account, err := h.service.CreateAccount(r.Context(), in)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, account)
}

// HandleUpdate handles PUT /api/v1/accounts/{id}
func (h *AccountHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	var in accounts.UpdateInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	account, err := h.service.UpdateAccount(r.Context(), id, in)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, account)
}

// HandleDelete handles DELETE /api/v1/accounts/{id}
func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	if _, err := h.service.DeleteAccount(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// HandleSetDefault handles POST /api/v1/accounts/{id}/default
func (h *AccountHandler) HandleSetDefault(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	account, err := h.service.SetDefaultAccount(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, account)
}
