package web

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/services/audit"
	"github.com/mrpayong/terual-accounting/services/dashboard"
	"github.com/mrpayong/terual-accounting/services/ledger"
	"github.com/stretchr/testify/mock"
)

type mockLedger struct{ mock.Mock }

func (m *mockLedger) CreateTransaction(ctx context.Context, in ledger.TransactionInput) (*models.Transaction, error) {
	args := m.Called(ctx, in)
	tx, _ := args.Get(0).(*models.Transaction)
	return tx, args.Error(1)
}

func (m *mockLedger) DeleteTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	tx, _ := args.Get(0).(*models.Transaction)
	return tx, args.Error(1)
}

func (m *mockLedger) ListTransactions(ctx context.Context, filter repositories.TransactionFilter) ([]*models.Transaction, error) {
	args := m.Called(ctx, filter)
	txs, _ := args.Get(0).([]*models.Transaction)
	return txs, args.Error(1)
}

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]*models.Account)
	return accounts, args.Error(1)
}

type mockDashboard struct{ mock.Mock }

func (m *mockDashboard) Overview(ctx context.Context, accountID *uuid.UUID) (*dashboard.Overview, error) {
	args := m.Called(ctx, accountID)
	o, _ := args.Get(0).(*dashboard.Overview)
	return o, args.Error(1)
}

type mockReports struct{ mock.Mock }

func (m *mockReports) ListCashflows(ctx context.Context, accountID *uuid.UUID, limit, offset int) ([]*models.Cashflow, error) {
	args := m.Called(ctx, accountID, limit, offset)
	list, _ := args.Get(0).([]*models.Cashflow)
	return list, args.Error(1)
}

func (m *mockReports) ReceiptBook(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*models.ReceiptBookEntry, error) {
	args := m.Called(ctx, accountID, from, to)
	entries, _ := args.Get(0).([]*models.ReceiptBookEntry)
	return entries, args.Error(1)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Me(ctx context.Context) (*models.User, error) {
	args := m.Called(ctx)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUsers) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, limit, offset)
	users, _ := args.Get(0).([]*models.User)
	return users, args.Error(1)
}

func (m *mockUsers) UpdateUserRole(ctx context.Context, userID uuid.UUID, role models.Role) (*models.User, error) {
	args := m.Called(ctx, userID, role)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUsers) AuditTrail(ctx context.Context, filter repositories.AuditFilter) ([]*audit.Record, error) {
	args := m.Called(ctx, filter)
	records, _ := args.Get(0).([]*audit.Record)
	return records, args.Error(1)
}
