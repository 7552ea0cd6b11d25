// Package dashboard builds the overview shown on the landing page.
package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/services"
	"github.com/mrpayong/terual-accounting/services/workflow"
	"go.uber.org/zap"
)

// RecentLimit is the number of recent transactions on the overview
const RecentLimit = 5

// CategoryTotal is the expense total of one category
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// Overview is the dashboard for one selected account
type Overview struct {
	Accounts          []*models.Account     `json:"accounts"`
	Selected          *models.Account       `json:"selected,omitempty"`
	TotalBalance      float64               `json:"total_balance"`
	MonthStart        time.Time             `json:"month_start"`
	MonthIncome       float64               `json:"month_income"`
	MonthExpense      float64               `json:"month_expense"`
	MonthNet          float64               `json:"month_net"`
	Recent            []*models.Transaction `json:"recent"`
	ExpenseByCategory []CategoryTotal       `json:"expense_by_category"`
}

// MonthRange returns the first and last instant of now's month
func MonthRange(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// Summarize computes the overview. monthTxs are the selected account's
// transactions for the current month; recent are its latest transactions in any order.
// Only completed transactions count toward totals.
func Summarize(accounts []*models.Account, selected *models.Account, monthTxs, recent []*models.Transaction, now time.Time) *Overview {
	start, end := MonthRange(now)
	o := &Overview{
		Accounts:          accounts,
		Selected:          selected,
		MonthStart:        start,
		Recent:            []*models.Transaction{},
		ExpenseByCategory: []CategoryTotal{},
	}

	for _, a := range accounts {
		o.TotalBalance = models.RoundAmount(o.TotalBalance + a.Balance)
	}

	byCategory := make(map[string]float64)
	for _, tx := range monthTxs {
		if tx.Status != models.TransactionStatusCompleted || tx.Date.Before(start) || tx.Date.After(end) {
			continue
		}
		switch tx.Type {
		case models.TransactionTypeIncome:
			o.MonthIncome = models.RoundAmount(o.MonthIncome + tx.Amount)
		case models.TransactionTypeExpense:
			o.MonthExpense = models.RoundAmount(o.MonthExpense + tx.Amount)
			category := tx.Category
			if category == "" {
				category = "uncategorized"
			}
			byCategory[category] = models.RoundAmount(byCategory[category] + tx.Amount)
		}
	}
	o.MonthNet = models.RoundAmount(o.MonthIncome - o.MonthExpense)

	for category, total := range byCategory {
		o.ExpenseByCategory = append(o.ExpenseByCategory, CategoryTotal{Category: category, Total: total})
	}
	sort.Slice(o.ExpenseByCategory, func(i, j int) bool {
		a, b := o.ExpenseByCategory[i], o.ExpenseByCategory[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Category < b.Category
	})

	o.Recent = append(o.Recent, recent...)
	sort.SliceStable(o.Recent, func(i, j int) bool {
		return o.Recent[i].Date.After(o.Recent[j].Date)
	})
	if len(o.Recent) > RecentLimit {
		o.Recent = o.Recent[:RecentLimit]
	}
	return o
}

// Service loads dashboard data
type Service struct {
	accounts     repositories.AccountRepository
	transactions repositories.TransactionRepository
	runner       *workflow.Runner
	clock        func() time.Time
	logger       *zap.Logger
}

// NewService creates a new dashboard service
func NewService(accounts repositories.AccountRepository, transactions repositories.TransactionRepository, runner *workflow.Runner, logger *zap.Logger) *Service {
	return &Service{
		accounts:     accounts,
		transactions: transactions,
		runner:       runner,
		clock:        time.Now,
		logger:       logger.Named("dashboard"),
	}
}

// Overview returns the dashboard for accountID, or for the default account when nil
func (s *Service) Overview(ctx context.Context, accountID *uuid.UUID) (*Overview, error) {
	return workflow.Query(ctx, s.runner, "dashboardOverview", workflow.StaffOrAdmin,
		func(ctx context.Context, _ *models.Actor) (*Overview, error) {
			now := s.clock()
			accounts, err := s.accounts.List(ctx)
			if err != nil {
				return nil, err
			}

			selected, err := selectAccount(accounts, accountID)
			if err != nil {
				return nil, err
			}
			if selected == nil {
				return Summarize(accounts, nil, nil, nil, now), nil
			}

			start, end := MonthRange(now)
			monthTxs, err := s.transactions.ListInRange(ctx, selected.ID, start, end)
			if err != nil {
				return nil, err
			}
			id := selected.ID
			recent, err := s.transactions.List(ctx, repositories.TransactionFilter{AccountID: &id, Limit: RecentLimit})
			if err != nil {
				return nil, err
			}
			return Summarize(accounts, selected, monthTxs, recent, now), nil
		})
}

func selectAccount(accounts []*models.Account, id *uuid.UUID) (*models.Account, error) {
	if id != nil {
		for _, a := range accounts {
			if a.ID == *id {
				return a, nil
			}
		}
		return nil, services.ErrAccountNotFound
	}
	for _, a := range accounts {
		if a.IsDefault {
			return a, nil
		}
	}
	if len(accounts) > 0 {
		return accounts[0], nil
	}
	return nil, nil
}
