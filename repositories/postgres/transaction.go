package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mrpayong/terual-accounting/repositories"
	"go.uber.org/zap"
)

type transactionContextKey struct{}

// TransactionManager implements repositories.TransactionManager on database/sql
type TransactionManager struct {
	db     *DB
	logger *zap.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(db *DB, logger *zap.Logger) *TransactionManager {
	return &TransactionManager{
		db:     db,
		logger: logger,
	}
}

// Begin starts a new transaction. Nested calls on a context that already
// carries a transaction join it; only the outermost owner commits.
func (tm *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	if outer, ok := transactionFromContext(ctx); ok {
		return &Transaction{tx: outer.tx, ctx: ctx, logger: tm.logger, nested: true}, nil
	}

	sqlTx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	tm.logger.Debug("transaction started")

	t := &Transaction{tx: sqlTx, logger: tm.logger}
	t.ctx = context.WithValue(ctx, transactionContextKey{}, t)
	return t, nil
}

// InTransaction executes fn within a transaction.
// Commits if fn succeeds, rolls back on error.
func (tm *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := tm.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx.Context(), tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			tm.logger.Error("failed to rollback transaction",
				zap.Error(rbErr),
				zap.NamedError("original_error", err),
			)
		}
		return err
	}

	return tx.Commit()
}

// Transaction implements repositories.Transaction
type Transaction struct {
	tx     *sql.Tx
	ctx    context.Context
	logger *zap.Logger
	nested bool
}

// Commit commits the transaction; a joined transaction leaves that to its owner
func (t *Transaction) Commit() error {
	if t.nested {
		return nil
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	t.logger.Debug("transaction committed")
	return nil
}

// Rollback rolls back the transaction. Rolling back a finished transaction is a no-op.
func (t *Transaction) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return nil
		}
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	t.logger.Debug("transaction rolled back")
	return nil
}

// Context returns a context carrying this transaction
func (t *Transaction) Context() context.Context {
	return t.ctx
}

func transactionFromContext(ctx context.Context) (*Transaction, bool) {
	tx, ok := ctx.Value(transactionContextKey{}).(*Transaction)
	return tx, ok
}

// Executor is satisfied by both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetExecutor returns the transaction carried by ctx, or the pool when there is none
func GetExecutor(ctx context.Context, db *DB) Executor {
	if tx, ok := transactionFromContext(ctx); ok {
		return tx.tx
	}
	return db.DB
}
