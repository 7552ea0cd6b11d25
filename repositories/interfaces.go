package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction. The returned Transaction's Context
	// carries the transaction so repositories called with it join the same unit.
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByExternalID retrieves a user by identity provider subject
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)

	GetByEmail(ctx context.Context, email string) (*models.User, error)

	List(ctx context.Context, limit, offset int) ([]*models.User, error)

	// Upsert inserts the user or refreshes its profile fields, keyed by external ID.
	// The stored role is never overwritten by an upsert.
	Upsert(ctx context.Context, user *models.User) (*models.User, error)

	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error)

	// DeleteByExternalID removes the user and returns the deleted row
	DeleteByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// AccountRepository handles ledger account data operations
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)

	// GetByIDForUpdate locks the account row for the surrounding transaction
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error)

	// GetDefault returns the default account, or ErrNotFound if none is marked
	GetDefault(ctx context.Context) (*models.Account, error)

	List(ctx context.Context) ([]*models.Account, error)

	Update(ctx context.Context, account *models.Account) error

	// AdjustBalance adds delta to the account balance
	AdjustBalance(ctx context.Context, id uuid.UUID, delta float64) error

	// SetDefault marks the account as default and clears the flag on every other account
	SetDefault(ctx context.Context, id uuid.UUID) error

	Delete(ctx context.Context, id uuid.UUID) error
}

// TransactionFilter narrows ledger transaction listings
type TransactionFilter struct {
	AccountID *uuid.UUID
	Type      *models.TransactionType
	From      *time.Time
	To        *time.Time
	Search    string
	Limit     int
	Offset    int
}

// TransactionRepository handles ledger transaction data operations
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)

	// GetByIDForUpdate returns the transaction and locks its row until the
	// surrounding database transaction ends
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error)

	List(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, error)

	// ListInRange returns completed transactions for an account with date in [from, to]
	ListInRange(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*models.Transaction, error)

	// ListDueRecurring returns completed recurring templates due at or before now
	ListDueRecurring(ctx context.Context, now time.Time) ([]*models.Transaction, error)

	// ExistsByRef reports whether a transaction other than excludeID uses ref
	ExistsByRef(ctx context.Context, ref string, excludeID *uuid.UUID) (bool, error)

	Update(ctx context.Context, tx *models.Transaction) error

	// MarkProcessed records a materialised occurrence on a recurring template.
	// It fails with ErrNotFound when the template was already advanced to next.
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt, next time.Time) error

	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteMany deletes the transactions among ids and returns the rows it removed
	DeleteMany(ctx context.Context, ids []uuid.UUID) ([]*models.Transaction, error)

	// ReceiptBook groups an account's transactions in [from, to] by print number
	ReceiptBook(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*models.ReceiptBookEntry, error)
}

// CashflowRepository handles cash flow statement data operations
type CashflowRepository interface {
	// Create inserts the statement and its transaction links
	Create(ctx context.Context, cf *models.Cashflow) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Cashflow, error)

	List(ctx context.Context, accountID *uuid.UUID, limit, offset int) ([]*models.Cashflow, error)

	Delete(ctx context.Context, id uuid.UUID) error
}

// AuditFilter narrows audit log listings
type AuditFilter struct {
	UserID *uuid.UUID
	Action *models.AuditAction
	Limit  int
	Offset int
}

// AuditRepository handles audit log data operations. Entries are append-only.
type AuditRepository interface {
	Insert(ctx context.Context, log *models.AuditLog) error

	List(ctx context.Context, filter AuditFilter) ([]*models.AuditLog, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users        UserRepository
	Accounts     AccountRepository
	Transactions TransactionRepository
	Cashflows    CashflowRepository
	AuditLogs    AuditRepository
}
