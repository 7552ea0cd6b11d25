// Package reports builds cash flow statements and the receipt book.
package reports

import (
	"context"
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

// endOfTime bounds the "after the period" query used to roll the balance back
var endOfTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// CashflowInput is the payload for a new cash flow statement. Dates are inclusive days.
type CashflowInput struct {
	AccountID   uuid.UUID `json:"account_id" validate:"required"`
	Description string    `json:"description" validate:"max=255"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
}

// Period returns the statement's first and last instant
func (in CashflowInput) Period() (time.Time, time.Time) {
	return DayRange(in.StartDate, in.EndDate)
}

// DayRange widens [from, to] to whole days
func DayRange(from, to time.Time) (time.Time, time.Time) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location()).AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// Service produces financial reports
type Service struct {
	txMgr        repositories.TransactionManager
	accounts     repositories.AccountRepository
	transactions repositories.TransactionRepository
	cashflows    repositories.CashflowRepository
	runner       *workflow.Runner
	logger       *zap.Logger
}

// NewService creates a new reports service
func NewService(
	txMgr repositories.TransactionManager,
	accounts repositories.AccountRepository,
	transactions repositories.TransactionRepository,
	cashflows repositories.CashflowRepository,
	runner *workflow.Runner,
	logger *zap.Logger,
) *Service {
	return &Service{
		txMgr:        txMgr,
		accounts:     accounts,
		transactions: transactions,
		cashflows:    cashflows,
		runner:       runner,
		logger:       logger.Named("reports"),
	}
}

// CreateCashflow aggregates an account's completed transactions in the period
// by activity and stores the statement with its transaction links
func (s *Service) CreateCashflow(ctx context.Context, in CashflowInput) (*models.Cashflow, error) {
	return workflow.Run(ctx, s.runner, workflow.Mutation[*models.Cashflow]{
		Action: models.AuditActionCreateCashflow,
		Roles:  workflow.AdminOnly,
		Execute: func(ctx context.Context, actor *models.Actor) (*models.Cashflow, error) {
			in.Description = strings.TrimSpace(in.Description)
			if err := utils.ValidateStruct(&in); err != nil {
				return nil, services.FromValidation(err)
			}
			start, end := in.Period()
			if end.Before(start) {
				return nil, services.ErrInvalidInput.WithDetail("fields", map[string]string{
					"EndDate": "EndDate must not be before StartDate",
				})
			}

			return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.Cashflow, error) {
				account, err := s.accounts.GetByID(ctx, in.AccountID)
				if err != nil {
					return nil, services.FromStorage(err, services.ErrAccountNotFound)
				}

				txs, err := s.transactions.ListInRange(ctx, account.ID, start, end)
				if err != nil {
					return nil, services.FromStorage(err, nil)
				}
				later, err := s.transactions.ListInRange(ctx, account.ID, end.Add(time.Nanosecond), endOfTime)
				if err != nil {
					return nil, services.FromStorage(err, nil)
				}

				cf := models.BuildCashflow(account.ID, start, end, BalanceAt(account.Balance, later), txs)
				cf.Description = in.Description
				if actor.UserID != uuid.Nil {
					createdBy := actor.UserID
					cf.CreatedBy = &createdBy
				}

				if err := s.cashflows.Create(ctx, cf); err != nil {
					return nil, services.FromStorage(err, nil)
				}
				return cf, nil
			})
		},
		Metadata: func(cf *models.Cashflow) map[string]interface{} {
			return map[string]interface{}{
				"cashflowId":   cf.ID,
				"accountId":    cf.AccountID,
				"startDate":    cf.StartDate.Format("2006-01-02"),
				"endDate":      cf.EndDate.Format("2006-01-02"),
				"netChange":    cf.NetChange,
				"transactions": len(cf.TransactionIDs),
			}
		},
		Invalidates: func(*models.Cashflow) []string {
			return []string{invalidation.PathCashflow}
		},
	})
}

// BalanceAt rolls a current balance back past the given later transactions
func BalanceAt(current float64, later []*models.Transaction) float64 {
	balance := current
	for _, tx := range later {
		if tx.Status == models.TransactionStatusCompleted {
			balance -= tx.SignedAmount()
		}
	}
	return models.RoundAmount(balance)
}

// DeleteCashflow removes a statement; its transactions are untouched
func (s *Service) DeleteCashflow(ctx context.Context, id uuid.UUID) (*models.Cashflow, error) {
	return workflow.Run(ctx, s.runner, workflow.Mutation[*models.Cashflow]{
		Action: models.AuditActionDeleteCashflow,
		Roles:  workflow.AdminOnly,
		Execute: func(ctx context.Context, _ *models.Actor) (*models.Cashflow, error) {
			cf, err := s.cashflows.GetByID(ctx, id)
			if err != nil {
				return nil, services.FromStorage(err, services.ErrCashflowNotFound)
			}
			if err := s.cashflows.Delete(ctx, id); err != nil {
				return nil, services.FromStorage(err, services.ErrCashflowNotFound)
			}
			return cf, nil
		},
		Metadata: func(cf *models.Cashflow) map[string]interface{} {
			return map[string]interface{}{
				"cashflowId": cf.ID,
				"accountId":  cf.AccountID,
			}
		},
		Invalidates: func(*models.Cashflow) []string {
			return []string{invalidation.PathCashflow}
		},
	})
}

// ListCashflows returns statements, newest first, optionally for one account
func (s *Service) ListCashflows(ctx context.Context, accountID *uuid.UUID, limit, offset int) ([]*models.Cashflow, error) {
	return workflow.Query(ctx, s.runner, "listCashflows", workflow.StaffOrAdmin,
		func(ctx context.Context, _ *models.Actor) ([]*models.Cashflow, error) {
			if limit <= 0 || limit > 100 {
				limit = 20
			}
			if offset < 0 {
				offset = 0
			}
			return s.cashflows.List(ctx, accountID, limit, offset)
		})
}

// GetCashflow returns one statement
func (s *Service) GetCashflow(ctx context.Context, id uuid.UUID) (*models.Cashflow, error) {
	return workflow.Query(ctx, s.runner, "getCashflow", workflow.StaffOrAdmin,
		func(ctx context.Context, _ *models.Actor) (*models.Cashflow, error) {
			cf, err := s.cashflows.GetByID(ctx, id)
			if err != nil {
				return nil, services.FromStorage(err, services.ErrCashflowNotFound)
			}
			return cf, nil
		})
}

// ReceiptBook groups an account's transactions in [from, to] by authority-to-print number
func (s *Service) ReceiptBook(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*models.ReceiptBookEntry, error) {
	return workflow.Query(ctx, s.runner, "receiptBook", workflow.StaffOrAdmin,
		func(ctx context.Context, _ *models.Actor) ([]*models.ReceiptBookEntry, error) {
			if accountID == uuid.Nil {
				return nil, services.ErrInvalidInput.WithDetail("fields", map[string]string{"AccountID": "AccountID is required"})
			}
			start, end := DayRange(from, to)
			if end.Before(start) {
				return nil, services.ErrInvalidInput.WithDetail("fields", map[string]string{"To": "To must not be before From"})
			}
			if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
				return nil, services.FromStorage(err, services.ErrAccountNotFound)
			}
			entries, err := s.transactions.ReceiptBook(ctx, accountID, start, end)
			if err != nil {
				return nil, err
			}
			if entries == nil {
				entries = []*models.ReceiptBookEntry{}
			}
			return entries, nil
		})
}
