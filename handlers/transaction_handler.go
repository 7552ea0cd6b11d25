package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/middleware"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/services/ledger"
	"github.com/mrpayong/terual-accounting/utils"
	"go.uber.org/zap"
)

// TransactionService defines the ledger operations the API exposes
type TransactionService interface {
	CreateTransaction(ctx context.Context, in ledger.TransactionInput) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, in ledger.TransactionInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	BulkDeleteTransactions(ctx context.Context, ids []uuid.UUID) (*ledger.BulkDeleteResult, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter repositories.TransactionFilter) ([]*models.Transaction, error)
}

// BulkDeleteRequest selects the transactions to delete
type BulkDeleteRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=500"`
}

// TransactionHandler handles ledger transaction HTTP requests
type TransactionHandler struct {
	service TransactionService
	logger  *zap.Logger
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(service TransactionService, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /api/v1/transactions
func (h *TransactionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := transactionFilter(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	txs, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteList(w, txs, len(txs), filter.Limit, filter.Offset)
}

// HandleGet handles GET /api/v1/transactions/{id}
func (h *TransactionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, tx)
}

// HandleCreate handles POST /api/v1/transactions
func (h *TransactionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in ledger.TransactionInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	tx, err := h.service.CreateTransaction(r.Context(), in)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("transaction created",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("transaction_id", tx.ID.String()))

	_ = utils.WriteCreated(w, tx)
}

// HandleUpdate handles PUT /api/v1/transactions/{id}
func (h *TransactionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	var in ledger.TransactionInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	tx, err := h.service.UpdateTransaction(r.Context(), id, in)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, tx)
}

// HandleDelete handles DELETE /api/v1/transactions/{id}
func (h *TransactionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	if _, err := h.service.DeleteTransaction(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// HandleBulkDelete handles POST /api/v1/transactions/bulk-delete
func (h *TransactionHandler) HandleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.BulkDeleteTransactions(r.Context(), req.IDs)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

func transactionFilter(r *http.Request) (repositories.TransactionFilter, error) {
	var filter repositories.TransactionFilter
	var err error

	if filter.AccountID, err = queryUUID(r, "account_id"); err != nil {
		return filter, err
	}
	if filter.From, err = queryDate(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		return filter, err
	}
	if filter.To != nil {
		endOfDay := filter.To.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.To = &endOfDay
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		t := models.TransactionType(strings.ToUpper(raw))
		if !t.Valid() {
			return filter, errInvalidParam("type")
		}
		filter.Type = &t
	}
	filter.Search = strings.TrimSpace(r.URL.Query().Get("q"))

	if filter.Limit, err = utils.QueryInt(r, "limit", 100); err != nil {
		return filter, err
	}
	if filter.Offset, err = utils.QueryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}
