package accounts

import (
	"context"
	"errors"
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

// CreateInput is the payload for a new account
type CreateInput struct {
	Name      string             `json:"name" validate:"required,max=100"`
	Type      models.AccountType `json:"type" validate:"required,oneof=CURRENT SAVINGS CASH"`
	Balance   float64            `json:"balance"`
	IsDefault bool               `json:"is_default"`
}

// UpdateInput is the payload for renaming or retyping an account
type UpdateInput struct {
	Name string             `json:"name" validate:"required,max=100"`
	Type models.AccountType `json:"type" validate:"required,oneof=CURRENT SAVINGS CASH"`
}

// Service manages ledger accounts
type Service struct {
	txMgr    repositories.TransactionManager
	accounts repositories.AccountRepository
	runner   *workflow.Runner
	logger   *zap.Logger
}

// NewService creates a new account service
func NewService(txMgr repositories.TransactionManager, accounts repositories.AccountRepository, runner *workflow.Runner, logger *zap.Logger) *Service {
	return &Service{
		txMgr:    txMgr,
		accounts: accounts,
		runner:   runner,
		logger:   logger.Named("accounts"),
	}
}

// CreateAccount opens an account. The first account always becomes the default.
func (s *Service) CreateAccount(ctx context.Context, in CreateInput) (*models.Account, error) {
	return workflow.Run(ctx, s.runner, workflow.Mutation[*models.Account]{
		Action: models.AuditActionCreateAccount,
		Roles:  workflow.AdminOnly,
		Execute: func(ctx context.Context, actor *models.Actor) (*models.Account, error) {
			in.Name = strings.TrimSpace(in.Name)
			if err := utils.ValidateStruct(&in); err != nil {
				return nil, services.FromValidation(err)
			}

			return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.Account, error) {
				account := models.NewAccount(in.Name, in.Type, in.Balance)
				if actor.UserID != uuid.Nil {
					createdBy := actor.UserID
					account.CreatedBy = &createdBy
				}

				makeDefault := in.IsDefault
				if !makeDefault {
					_, err := s.accounts.GetDefault(ctx)
					switch {
					case errors.Is(err, repositories.ErrNotFound):
						makeDefault = true
					case err != nil:
						return nil, services.FromStorage(err, nil)
					}
				}

				if err := s.accounts.Create(ctx, account); err != nil {
					return nil, services.FromStorage(err, nil)
				}
				if makeDefault {
					if err := s.accounts.SetDefault(ctx, account.ID); err != nil {
						return nil, services.FromStorage(err, services.ErrAccountNotFound)
					}
					account.IsDefault = true
				}
				return account, nil
			})
		},
		Metadata:    accountMetadata,
		Invalidates: accountViews,
	})
}

// UpdateAccount renames or retypes an account. The balance is never edited directly.
func (s *Service) UpdateAccount(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Account, error) {
	return workflow.Run(ctx, s.runner, workflow.Mutation[*models.Account]{
		Action: models.AuditActionUpdateAccount,
		Roles:  workflow.AdminOnly,
		Execute: func(ctx context.Context, _ *models.Actor) (*models.Account, error) {
			in.Name = strings.TrimSpace(in.Name)
			if err := utils.ValidateStruct(&in); err != nil {
				return nil, services.FromValidation(err)
			}

			return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.Account, error) {
				account, err := s.accounts.GetByIDForUpdate(ctx, id)
				if err != nil {
					return nil, services.FromStorage(err, services.ErrAccountNotFound)
				}
				account.Name = in.Name
				account.Type = in.Type
				account.UpdatedAt = time.Now()
				if err := s.accounts.Update(ctx, account); err != nil {
					return nil, services.FromStorage(err, services.ErrAccountNotFound)
				}
				return account, nil
			})
		},
		Metadata:    accountMetadata,
		Invalidates: accountViews,
	})
}

// DeleteAccount removes an account with its transactions. The default account
// can only be removed when it is the last one.
func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return workflow.Run(ctx, s.runner, workflow.Mutation[*models.Account]{
		Action: models.AuditActionDeleteAccount,
		Roles:  workflow.AdminOnly,
		Execute: func(ctx context.Context, _ *models.Actor) (*models.Account, error) {
			return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.Account, error) {
				account, err := s.accounts.GetByIDForUpdate(ctx, id)
				if err != nil {
					return nil, services.FromStorage(err, services.ErrAccountNotFound)
				}
				if account.IsDefault {
					all, err := s.accounts.List(ctx)
					if err != nil {
						return nil, services.FromStorage(err, nil)
					}
					if len(all) > 1 {
						return nil, services.ErrInvalidInput.WithDetail("reason", "set another default account before deleting this one")
					}
				}
				if err := s.accounts.Delete(ctx, id); err != nil {
					return nil, services.FromStorage(err, services.ErrAccountNotFound)
				}
				return account, nil
			})
		},
		Metadata: accountMetadata,
		Invalidates: func(a *models.Account) []string {
			return append(accountViews(a), invalidation.PathCashflow, invalidation.PathReceiptBook)
		},
	})
}

// SetDefaultAccount makes id the only default account
func (s *Service) SetDefaultAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return workflow.Run(ctx, s.runner, workflow.Mutation[*models.Account]{
		Action: models.AuditActionSetDefaultAccount,
		Roles:  workflow.AdminOnly,
		Execute: func(ctx context.Context, _ *models.Actor) (*models.Account, error) {
			return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.Account, error) {
				account, err := s.accounts.GetByIDForUpdate(ctx, id)
				if err != nil {
					return nil, services.FromStorage(err, services.ErrAccountNotFound)
				}
				if err := s.accounts.SetDefault(ctx, id); err != nil {
					return nil, services.FromStorage(err, services.ErrAccountNotFound)
				}
				account.IsDefault = true
				return account, nil
			})
		},
		Metadata:    accountMetadata,
		Invalidates: accountViews,
	})
}

// ListAccounts returns every account
func (s *Service) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	return workflow.Query(ctx, s.runner, "listAccounts", workflow.StaffOrAdmin,
		func(ctx context.Context, _ *models.Actor) ([]*models.Account, error) {
			return s.accounts.List(ctx)
		})
}

// GetAccount returns one account
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return workflow.Query(ctx, s.runner, "getAccount", workflow.StaffOrAdmin,
		func(ctx context.Context, _ *models.Actor) (*models.Account, error) {
			account, err := s.accounts.GetByID(ctx, id)
			if err != nil {
				return nil, services.FromStorage(err, services.ErrAccountNotFound)
			}
			return account, nil
		})
}

func accountMetadata(a *models.Account) map[string]interface{} {
	return map[string]interface{}{
		"accountId": a.ID,
		"name":      a.Name,
		"type":      a.Type,
		"isDefault": a.IsDefault,
	}
}

func accountViews(a *models.Account) []string {
	return []string{
		invalidation.PathDashboard,
		invalidation.PathTransactions,
		invalidation.AccountPath(a.ID.String()),
	}
}
