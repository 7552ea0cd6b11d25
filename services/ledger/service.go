// Package ledger implements transaction CRUD. Every write adjusts the owning
// account balance inside the same database transaction.
package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/services"
	"github.com/mrpayong/terual-accounting/services/invalidation"
	"github.com/mrpayong/terual-accounting/services/workflow"
	"github.com/mrpayong/terual-accounting/utils"
	"go.uber.org/zap"
)

// TransactionInput carries the editable fields of a ledger transaction
type TransactionInput struct {
	AccountID         uuid.UUID                `json:"account_id" validate:"required"`
	Type              models.TransactionType   `json:"type" validate:"required,oneof=INCOME EXPENSE"`
	Amount            float64                  `json:"amount" validate:"gt=0"`
	Description       string                   `json:"description" validate:"max=500"`
	Date              time.Time                `json:"date" validate:"required"`
	Category          string                   `json:"category" validate:"required,max=100"`
	Particular        string                   `json:"particular" validate:"max=255"`
	Merchant          string                   `json:"merchant" validate:"max=255"`
	RefNumber         string                   `json:"ref_number" validate:"max=100"`
	PrintNumber       string                   `json:"print_number" validate:"max=100"`
	Activity          models.ActivityType      `json:"activity" validate:"omitempty,oneof=OPERATING INVESTING FINANCING"`
	Status            models.TransactionStatus `json:"status" validate:"omitempty,oneof=PENDING COMPLETED FAILED"`
	IsRecurring       bool                     `json:"is_recurring"`
	RecurringInterval models.RecurringInterval `json:"recurring_interval" validate:"omitempty,oneof=DAILY WEEKLY MONTHLY YEARLY"`
}

// Validate checks field constraints. A recurring transaction needs a known interval.
func (in *TransactionInput) Validate() error {
	in.normalize()
	if err := utils.ValidateStruct(in); err != nil {
		return services.FromValidation(err)
	}
	if in.IsRecurring && !in.RecurringInterval.Valid() {
		return services.ErrInvalidInput.WithDetail("fields", map[string]string{
			"RecurringInterval": "RecurringInterval is required for recurring transactions",
		})
	}
	return nil
}

func (in *TransactionInput) normalize() {
	in.Category = strings.TrimSpace(in.Category)
	in.RefNumber = strings.TrimSpace(in.RefNumber)
	in.PrintNumber = strings.TrimSpace(in.PrintNumber)
	in.Amount = models.RoundAmount(in.Amount)
	if in.Activity == "" {
		in.Activity = models.ActivityOperating
	}
	if in.Status == "" {
		in.Status = models.TransactionStatusCompleted
	}
	if !in.IsRecurring {
		in.RecurringInterval = ""
	}
}

// apply copies the input onto tx, recomputing the recurrence schedule when it changed
func (in *TransactionInput) apply(tx *models.Transaction) {
	prevInterval := tx.RecurringInterval
	prevDate := tx.Date

	tx.AccountID = in.AccountID
	tx.Type = in.Type
	tx.Amount = in.Amount
	tx.Description = in.Description
	tx.Date = in.Date
	tx.Category = in.Category
	tx.Particular = in.Particular
	tx.Merchant = in.Merchant
	tx.PrintNumber = in.PrintNumber
	tx.Activity = in.Activity
	tx.Status = in.Status
	tx.RefNumber = nil
	if in.RefNumber != "" {
		ref := in.RefNumber
		tx.RefNumber = &ref
	}

	if !in.IsRecurring {
		tx.IsRecurring = false
		tx.RecurringInterval = nil
		tx.NextRecurringDate = nil
		return
	}
	unchanged := tx.IsRecurring && prevInterval != nil && *prevInterval == in.RecurringInterval && prevDate.Equal(in.Date)
	if !unchanged {
		tx.WithRecurrence(in.RecurringInterval)
	}
}

// BulkDeleteResult reports what a bulk delete removed
type BulkDeleteResult struct {
	Deleted    int64       `json:"deleted"`
	IDs        []uuid.UUID `json:"ids"`
	AccountIDs []uuid.UUID `json:"account_ids"`
}

// Service handles ledger transactions
type Service struct {
	txMgr        repositories.TransactionManager
	accounts     repositories.AccountRepository
	transactions repositories.TransactionRepository
	runner       *workflow.Runner
	logger       *zap.Logger
}

// NewService creates a new ledger service
func NewService(
	txMgr repositories.TransactionManager,
	accounts repositories.AccountRepository,
	transactions repositories.TransactionRepository,
	runner *workflow.Runner,
	logger *zap.Logger,
) *Service {
	return &Service{
		txMgr:        txMgr,
		accounts:     accounts,
		transactions: transactions,
		runner:       runner,
		logger:       logger.Named("ledger"),
	}
}

// CreateTransaction records a new transaction and applies it to its account
func (s *Service) CreateTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error) {
	return workflow.Run(ctx, s.runner, workflow.Mutation[*models.Transaction]{
		Action: models.AuditActionCreateTransaction,
		Roles:  workflow.StaffOrAdmin,
		Execute: func(ctx context.Context, actor *models.Actor) (*models.Transaction, error) {
			if err := in.Validate(); err != nil {
				return nil, err
			}
			return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.Transaction, error) {
				if err := s.checkReference(ctx, in.RefNumber, nil); err != nil {
					return nil, err
				}
				if _, err := s.accounts.GetByIDForUpdate(ctx, in.AccountID); err != nil {
					return nil, services.FromStorage(err, services.ErrAccountNotFound)
				}

				tx := models.NewTransaction(in.AccountID, in.Type, in.Amount, in.Date)
				in.apply(tx)
				if actor.UserID != uuid.Nil {
					createdBy := actor.UserID
					tx.CreatedBy = &createdBy
				}

				if err := s.transactions.Create(ctx, tx); err != nil {
					return nil, referenceConflict(err)
				}
				if err := s.applyBalance(ctx, tx, 1); err != nil {
					return nil, err
				}
				return tx, nil
			})
		},
		Metadata:    transactionMetadata,
		Invalidates: transactionViews,
	})
}

// UpdateTransaction replaces the editable fields of a transaction, moving its
// effect between accounts when the account changed
func (s *Service) UpdateTransaction(ctx context.Context, id uuid.UUID, in TransactionInput) (*models.Transaction, error) {
	var previousAccount uuid.UUID
	return workflow.Run(ctx, s.runner, workflow.Mutation[*models.Transaction]{
		Action: models.AuditActionUpdateTransaction,
		Roles:  workflow.StaffOrAdmin,
		Execute: func(ctx context.Context, _ *models.Actor) (*models.Transaction, error) {
			if err := in.Validate(); err != nil {
				return nil, err
			}
			return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.Transaction, error) {
				tx, err := s.transactions.GetByIDForUpdate(ctx, id)
				if err != nil {
					return nil, services.FromStorage(err, services.ErrTransactionNotFound)
				}
				if err := s.checkReference(ctx, in.RefNumber, &id); err != nil {
					return nil, err
				}
				if _, err := s.accounts.GetByIDForUpdate(ctx, in.AccountID); err != nil {
					return nil, services.FromStorage(err, services.ErrAccountNotFound)
				}
				previousAccount = tx.AccountID

				if err := s.applyBalance(ctx, tx, -1); err != nil {
					return nil, err
				}
				in.apply(tx)
				tx.UpdatedAt = time.Now()
				if err := s.transactions.Update(ctx, tx); err != nil {
					return nil, referenceConflict(err)
				}
				if err := s.applyBalance(ctx, tx, 1); err != nil {
					return nil, err
				}
				return tx, nil
			})
		},
		Metadata: transactionMetadata,
		Invalidates: func(tx *models.Transaction) []string {
			return append(transactionViews(tx), invalidation.AccountPath(previousAccount.String()))
		},
	})
}

// DeleteTransaction removes a transaction and reverts its effect on the account
func (s *Service) DeleteTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return workflow.Run(ctx, s.runner, workflow.Mutation[*models.Transaction]{
		Action: models.AuditActionDeleteTransaction,
		Roles:  workflow.AdminOnly,
		Execute: func(ctx context.Context, _ *models.Actor) (*models.Transaction, error) {
			return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.Transaction, error) {
				tx, err := s.transactions.GetByIDForUpdate(ctx, id)
				if err != nil {
					return nil, services.FromStorage(err, services.ErrTransactionNotFound)
				}
				if err := s.transactions.Delete(ctx, id); err != nil {
					return nil, services.FromStorage(err, services.ErrTransactionNotFound)
				}
				if err := s.applyBalance(ctx, tx, -1); err != nil {
					return nil, err
				}
				return tx, nil
			})
		},
		Metadata:    transactionMetadata,
		Invalidates: transactionViews,
	})
}

// BulkDeleteTransactions removes every existing transaction among ids and
// reverts their combined effect per account
func (s *Service) BulkDeleteTransactions(ctx context.Context, ids []uuid.UUID) (*BulkDeleteResult, error) {
	return workflow.Run(ctx, s.runner, workflow.Mutation[*BulkDeleteResult]{
		Action: models.AuditActionBulkDeleteTransactions,
		Roles:  workflow.AdminOnly,
		Execute: func(ctx context.Context, _ *models.Actor) (*BulkDeleteResult, error) {
			ids = uniqueIDs(ids)
			if len(ids) == 0 {
				return nil, services.ErrInvalidInput.WithDetail("ids", "at least one transaction id is required")
			}
			return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*BulkDeleteResult, error) {
				// only rows this statement removed are reverted; a row deleted
				// concurrently is absent from removed
				removed, err := s.transactions.DeleteMany(ctx, ids)
				if err != nil {
					return nil, services.FromStorage(err, nil)
				}
				if len(removed) == 0 {
					return nil, services.ErrTransactionNotFound
				}

				found := make([]uuid.UUID, 0, len(removed))
				deltas := make(map[uuid.UUID]float64)
				for _, tx := range removed {
					found = append(found, tx.ID)
					if tx.Status == models.TransactionStatusCompleted {
						deltas[tx.AccountID] -= tx.SignedAmount()
					} else if _, ok := deltas[tx.AccountID]; !ok {
						deltas[tx.AccountID] = 0
					}
				}

				// fixed lock order across concurrent bulk deletes
				accountIDs := make([]uuid.UUID, 0, len(deltas))
				for accountID := range deltas {
					accountIDs = append(accountIDs, accountID)
				}
				sort.Slice(accountIDs, func(i, j int) bool { return accountIDs[i].String() < accountIDs[j].String() })
				for _, accountID := range accountIDs {
					delta := models.RoundAmount(deltas[accountID])
					if delta == 0 {
						continue
					}
					if err := s.accounts.AdjustBalance(ctx, accountID, delta); err != nil {
						return nil, services.FromStorage(err, services.ErrAccountNotFound)
					}
				}

				return &BulkDeleteResult{Deleted: int64(len(removed)), IDs: found, AccountIDs: accountIDs}, nil
			})
		},
		Metadata: func(r *BulkDeleteResult) map[string]interface{} {
			return map[string]interface{}{
				"count":          r.Deleted,
				"transactionIds": r.IDs,
			}
		},
		Invalidates: func(r *BulkDeleteResult) []string {
			paths := []string{invalidation.PathDashboard, invalidation.PathTransactions}
			for _, id := range r.AccountIDs {
				paths = append(paths, invalidation.AccountPath(id.String()))
			}
			return paths
		},
	})
}

// GetTransaction returns one transaction
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return workflow.Query(ctx, s.runner, "getTransaction", workflow.StaffOrAdmin,
		func(ctx context.Context, _ *models.Actor) (*models.Transaction, error) {
			tx, err := s.transactions.GetByID(ctx, id)
			if err != nil {
				return nil, services.FromStorage(err, services.ErrTransactionNotFound)
			}
			return tx, nil
		})
}

// ListTransactions returns transactions matching filter, newest first
func (s *Service) ListTransactions(ctx context.Context, filter repositories.TransactionFilter) ([]*models.Transaction, error) {
	return workflow.Query(ctx, s.runner, "listTransactions", workflow.StaffOrAdmin,
		func(ctx context.Context, _ *models.Actor) ([]*models.Transaction, error) {
			if filter.Limit <= 0 || filter.Limit > 500 {
				filter.Limit = 100
			}
			if filter.Offset < 0 {
				filter.Offset = 0
			}
			return s.transactions.List(ctx, filter)
		})
}

// checkReference rejects a reference number already used by another transaction
func (s *Service) checkReference(ctx context.Context, ref string, excludeID *uuid.UUID) error {
	if ref == "" {
		return nil
	}
	exists, err := s.transactions.ExistsByRef(ctx, ref, excludeID)
	if err != nil {
		return services.FromStorage(err, nil)
	}
	if exists {
		return services.ErrDuplicateReference.WithDetail("ref_number", ref)
	}
	return nil
}

// applyBalance adds (sign 1) or removes (sign -1) a completed transaction's effect
func (s *Service) applyBalance(ctx context.Context, tx *models.Transaction, sign float64) error {
	if tx.Status != models.TransactionStatusCompleted {
		return nil
	}
	delta := models.RoundAmount(sign * tx.SignedAmount())
	if err := s.accounts.AdjustBalance(ctx, tx.AccountID, delta); err != nil {
		return services.FromStorage(err, services.ErrAccountNotFound)
	}
	return nil
}

// referenceConflict reports a uniqueness violation on insert as a duplicate reference
func referenceConflict(err error) error {
	if errors.Is(err, repositories.ErrDuplicateKey) {
		return services.ErrDuplicateReference.Wrap(err)
	}
	return services.FromStorage(err, services.ErrTransactionNotFound)
}

func transactionMetadata(tx *models.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"transactionId": tx.ID,
		"accountId":     tx.AccountID,
		"type":          tx.Type,
		"amount":        tx.Amount,
		"refNumber":     tx.Reference(),
	}
}

func transactionViews(tx *models.Transaction) []string {
	return []string{
		invalidation.PathDashboard,
		invalidation.PathTransactions,
		invalidation.PathReceiptBook,
		invalidation.AccountPath(tx.AccountID.String()),
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
