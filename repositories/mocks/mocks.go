// Package mocks provides testify mocks of the repository interfaces for service tests.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/stretchr/testify/mock"
)

// TransactionManager is a mock implementation of repositories.TransactionManager
type TransactionManager struct {
	mock.Mock
}

func (m *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repositories.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

// Transaction is a mock implementation of repositories.Transaction
type Transaction struct {
	mock.Mock
	Committed  bool
	RolledBack bool
}

func (m *Transaction) Commit() error {
	args := m.Called()
	m.Committed = true
	return args.Error(0)
}

func (m *Transaction) Rollback() error {
	args := m.Called()
	m.RolledBack = true
	return args.Error(0)
}

func (m *Transaction) Context() context.Context {
	args := m.Called()
	return args.Get(0).(context.Context)
}

// ExpectTransaction wires a manager and transaction that commit successfully on ctx
func ExpectTransaction(ctx context.Context) (*TransactionManager, *Transaction) {
	txMgr := new(TransactionManager)
	tx := new(Transaction)
	txMgr.On("Begin", mock.Anything).Return(tx, nil)
	tx.On("Context").Return(ctx)
	tx.On("Commit").Return(nil).Maybe()
	tx.On("Rollback").Return(nil).Maybe()
	return txMgr, tx
}

// UserRepository is a mock implementation of repositories.UserRepository
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	args := m.Called(ctx, externalID)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, limit, offset)
	if users := args.Get(0); users != nil {
		return users.([]*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	args := m.Called(ctx, id, role)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *UserRepository) DeleteByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	args := m.Called(ctx, externalID)
	return userOrNil(args.Get(0)), args.Error(1)
}

func userOrNil(v interface{}) *models.User {
	if v == nil {
		return nil
	}
	return v.(*models.User)
}

// AccountRepository is a mock implementation of repositories.AccountRepository
type AccountRepository struct {
	mock.Mock
}

func (m *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	args := m.Called(ctx, id)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func (m *AccountRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	args := m.Called(ctx, id)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func (m *AccountRepository) GetDefault(ctx context.Context) (*models.Account, error) {
	args := m.Called(ctx)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func (m *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	args := m.Called(ctx)
	if accounts := args.Get(0); accounts != nil {
		return accounts.([]*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AccountRepository) Update(ctx context.Context, account *models.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *AccountRepository) AdjustBalance(ctx context.Context, id uuid.UUID, delta float64) error {
	return m.Called(ctx, id, delta).Error(0)
}

func (m *AccountRepository) SetDefault(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *AccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func accountOrNil(v interface{}) *models.Account {
	if v == nil {
		return nil
	}
	return v.(*models.Account)
}

// TransactionRepository is a mock implementation of repositories.TransactionRepository
type TransactionRepository struct {
	mock.Mock
}

func (m *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	return txOrNil(args.Get(0)), args.Error(1)
}

func (m *TransactionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	return txOrNil(args.Get(0)), args.Error(1)
}

func (m *TransactionRepository) List(ctx context.Context, filter repositories.TransactionFilter) ([]*models.Transaction, error) {
	args := m.Called(ctx, filter)
	return txsOrNil(args.Get(0)), args.Error(1)
}

func (m *TransactionRepository) ListInRange(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*models.Transaction, error) {
	args := m.Called(ctx, accountID, from, to)
	return txsOrNil(args.Get(0)), args.Error(1)
}

func (m *TransactionRepository) ListDueRecurring(ctx context.Context, now time.Time) ([]*models.Transaction, error) {
	args := m.Called(ctx, now)
	return txsOrNil(args.Get(0)), args.Error(1)
}

func (m *TransactionRepository) ExistsByRef(ctx context.Context, ref string, excludeID *uuid.UUID) (bool, error) {
	args := m.Called(ctx, ref, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *TransactionRepository) Update(ctx context.Context, tx *models.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *TransactionRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt, next time.Time) error {
	return m.Called(ctx, id, processedAt, next).Error(0)
}

func (m *TransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *TransactionRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) ([]*models.Transaction, error) {
	args := m.Called(ctx, ids)
	return txsOrNil(args.Get(0)), args.Error(1)
}

func (m *TransactionRepository) ReceiptBook(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*models.ReceiptBookEntry, error) {
	args := m.Called(ctx, accountID, from, to)
	if entries := args.Get(0); entries != nil {
		return entries.([]*models.ReceiptBookEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func txOrNil(v interface{}) *models.Transaction {
	if v == nil {
		return nil
	}
	return v.(*models.Transaction)
}

func txsOrNil(v interface{}) []*models.Transaction {
	if v == nil {
		return nil
	}
	return v.([]*models.Transaction)
}

// CashflowRepository is a mock implementation of repositories.CashflowRepository
type CashflowRepository struct {
	mock.Mock
}

func (m *CashflowRepository) Create(ctx context.Context, cf *models.Cashflow) error {
	return m.Called(ctx, cf).Error(0)
}

func (m *CashflowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Cashflow, error) {
	args := m.Called(ctx, id)
	if cf := args.Get(0); cf != nil {
		return cf.(*models.Cashflow), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CashflowRepository) List(ctx context.Context, accountID *uuid.UUID, limit, offset int) ([]*models.Cashflow, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if cfs := args.Get(0); cfs != nil {
		return cfs.([]*models.Cashflow), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CashflowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// AuditRepository is a mock implementation of repositories.AuditRepository
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *AuditRepository) List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditLog, error) {
	args := m.Called(ctx, filter)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}
