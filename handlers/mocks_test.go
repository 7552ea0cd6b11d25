package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/identity"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/services/accounts"
	"github.com/mrpayong/terual-accounting/services/audit"
	"github.com/mrpayong/terual-accounting/services/dashboard"
	"github.com/mrpayong/terual-accounting/services/ledger"
	"github.com/mrpayong/terual-accounting/services/reports"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// serve routes req through a chi router so URL params resolve
func serve(method, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

type MockTransactionService struct{ mock.Mock }

func (m *MockTransactionService) CreateTransaction(ctx context.Context, in ledger.TransactionInput) (*models.Transaction, error) {
	args := m.Called(ctx, in)
	return txOrNil(args.Get(0)), args.Error(1)
}

func (m *MockTransactionService) UpdateTransaction(ctx context.Context, id uuid.UUID, in ledger.TransactionInput) (*models.Transaction, error) {
	args := m.Called(ctx, id, in)
	return txOrNil(args.Get(0)), args.Error(1)
}

func (m *MockTransactionService) DeleteTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	return txOrNil(args.Get(0)), args.Error(1)
}

func (m *MockTransactionService) BulkDeleteTransactions(ctx context.Context, ids []uuid.UUID) (*ledger.BulkDeleteResult, error) {
	args := m.Called(ctx, ids)
	if r := args.Get(0); r != nil {
		return r.(*ledger.BulkDeleteResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTransactionService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	return txOrNil(args.Get(0)), args.Error(1)
}

func (m *MockTransactionService) ListTransactions(ctx context.Context, filter repositories.TransactionFilter) ([]*models.Transaction, error) {
	args := m.Called(ctx, filter)
	if r := args.Get(0); r != nil {
		return r.([]*models.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func txOrNil(v interface{}) *models.Transaction {
	if v == nil {
		return nil
	}
	return v.(*models.Transaction)
}

type MockAccountService struct{ mock.Mock }

func (m *MockAccountService) CreateAccount(ctx context.Context, in accounts.CreateInput) (*models.Account, error) {
	args := m.Called(ctx, in)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func (m *MockAccountService) UpdateAccount(ctx context.Context, id uuid.UUID, in accounts.UpdateInput) (*models.Account, error) {
	args := m.Called(ctx, id, in)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func (m *MockAccountService) DeleteAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	args := m.Called(ctx, id)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func (m *MockAccountService) SetDefaultAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	args := m.Called(ctx, id)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func (m *MockAccountService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.([]*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountService) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	args := m.Called(ctx, id)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func accountOrNil(v interface{}) *models.Account {
	if v == nil {
		return nil
	}
	return v.(*models.Account)
}

type MockReportService struct{ mock.Mock }

func (m *MockReportService) CreateCashflow(ctx context.Context, in reports.CashflowInput) (*models.Cashflow, error) {
	args := m.Called(ctx, in)
	return cashflowOrNil(args.Get(0)), args.Error(1)
}

func (m *MockReportService) DeleteCashflow(ctx context.Context, id uuid.UUID) (*models.Cashflow, error) {
	args := m.Called(ctx, id)
	return cashflowOrNil(args.Get(0)), args.Error(1)
}

func (m *MockReportService) ListCashflows(ctx context.Context, accountID *uuid.UUID, limit, offset int) ([]*models.Cashflow, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if r := args.Get(0); r != nil {
		return r.([]*models.Cashflow), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockReportService) GetCashflow(ctx context.Context, id uuid.UUID) (*models.Cashflow, error) {
	args := m.Called(ctx, id)
	return cashflowOrNil(args.Get(0)), args.Error(1)
}

func (m *MockReportService) ReceiptBook(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*models.ReceiptBookEntry, error) {
	args := m.Called(ctx, accountID, from, to)
	if r := args.Get(0); r != nil {
		return r.([]*models.ReceiptBookEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func cashflowOrNil(v interface{}) *models.Cashflow {
	if v == nil {
		return nil
	}
	return v.(*models.Cashflow)
}

type MockDashboardService struct{ mock.Mock }

func (m *MockDashboardService) Overview(ctx context.Context, accountID *uuid.UUID) (*dashboard.Overview, error) {
	args := m.Called(ctx, accountID)
	if r := args.Get(0); r != nil {
		return r.(*dashboard.Overview), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockUserService struct{ mock.Mock }

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, limit, offset)
	if r := args.Get(0); r != nil {
		return r.([]*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) Me(ctx context.Context) (*models.User, error) {
	args := m.Called(ctx)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) UpdateUserRole(ctx context.Context, userID uuid.UUID, role models.Role) (*models.User, error) {
	args := m.Called(ctx, userID, role)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) AuditTrail(ctx context.Context, filter repositories.AuditFilter) ([]*audit.Record, error) {
	args := m.Called(ctx, filter)
	if r := args.Get(0); r != nil {
		return r.([]*audit.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) SyncUser(ctx context.Context, event *identity.UserEvent) (*models.User, error) {
	args := m.Called(ctx, event)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, externalID string) (*models.User, error) {
	args := m.Called(ctx, externalID)
	return userOrNil(args.Get(0)), args.Error(1)
}

func userOrNil(v interface{}) *models.User {
	if v == nil {
		return nil
	}
	return v.(*models.User)
}

type MockReceiptScanner struct{ mock.Mock }

func (m *MockReceiptScanner) Scan(ctx context.Context, image []byte, mimeType string) (*models.ScannedReceipt, error) {
	args := m.Called(ctx, image, mimeType)
	if r := args.Get(0); r != nil {
		return r.(*models.ScannedReceipt), args.Error(1)
	}
	return nil, args.Error(1)
}
