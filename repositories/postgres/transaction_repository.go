package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"go.uber.org/zap"
)

const transactionColumns = `id, account_id, type, amount, description, date, category, particular, merchant,
	ref_number, print_number, activity, is_recurring, recurring_interval, next_recurring_date,
	last_processed, status, created_by, created_at, updated_at`

// TransactionRepository implements repositories.TransactionRepository for ledger entries
type TransactionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTransactionRepository creates a new ledger transaction repository
func NewTransactionRepository(db *DB, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{db: db, logger: logger}
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.Type,
		&t.Amount,
		&t.Description,
		&t.Date,
		&t.Category,
		&t.Particular,
		&t.Merchant,
		&t.RefNumber,
		&t.PrintNumber,
		&t.Activity,
		&t.IsRecurring,
		&t.RecurringInterval,
		&t.NextRecurringDate,
		&t.LastProcessed,
		&t.Status,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

func (r *TransactionRepository) queryTransactions(ctx context.Context, op, query string, args ...interface{}) ([]*models.Transaction, error) {
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return out, nil
}

// Create inserts a ledger transaction
func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		t.ID,
		t.AccountID,
		t.Type,
		t.Amount,
		t.Description,
		t.Date,
		t.Category,
		t.Particular,
		t.Merchant,
		t.RefNumber,
		t.PrintNumber,
		t.Activity,
		t.IsRecurring,
		t.RecurringInterval,
		t.NextRecurringDate,
		t.LastProcessed,
		t.Status,
		t.CreatedBy,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return translate("create transaction", err)
	}

	r.logger.Debug("transaction created",
		zap.String("id", t.ID.String()),
		zap.String("account_id", t.AccountID.String()),
		zap.Float64("amount", t.Amount))
	return nil
}

// GetByID retrieves a ledger transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate("get transaction", err)
	}
	return t, nil
}

// GetByIDForUpdate retrieves a ledger transaction and locks its row until the transaction ends
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	t, err := scanTransaction(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate("lock transaction", err)
	}
	return t, nil
}

// List retrieves ledger transactions matching filter, newest first
func (r *TransactionRepository) List(ctx context.Context, filter repositories.TransactionFilter) ([]*models.Transaction, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.AccountID != nil {
		add("account_id = $%d", *filter.AccountID)
	}
	if filter.Type != nil {
		add("type = $%d", *filter.Type)
	}
	if filter.From != nil {
		add("date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("date <= $%d", *filter.To)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		add("(description ILIKE $%[1]d OR merchant ILIKE $%[1]d OR ref_number ILIKE $%[1]d)", "%"+s+"%")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY date DESC, created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.queryTransactions(ctx, "query transactions", query, args...)
}

// ListInRange retrieves completed transactions for an account within [from, to]
func (r *TransactionRepository) ListInRange(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1 AND date >= $2 AND date <= $3 AND status = 'COMPLETED'
		ORDER BY date ASC
	`
	return r.queryTransactions(ctx, "query transactions in range", query, accountID, from, to)
}

// ListDueRecurring retrieves recurring templates whose next date is at or before now
func (r *TransactionRepository) ListDueRecurring(ctx context.Context, now time.Time) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE is_recurring AND status = 'COMPLETED' AND next_recurring_date <= $1
		ORDER BY next_recurring_date ASC
	`
	return r.queryTransactions(ctx, "query due recurring transactions", query, now)
}

// ExistsByRef reports whether another transaction already uses ref
func (r *TransactionRepository) ExistsByRef(ctx context.Context, ref string, excludeID *uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE ref_number = $1 AND ($2::uuid IS NULL OR id <> $2))`

	var exists bool
	if err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, ref, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check reference number: %w", err)
	}
	return exists, nil
}

// Update rewrites the mutable fields of a ledger transaction
func (r *TransactionRepository) Update(ctx context.Context, t *models.Transaction) error {
	query := `
		UPDATE transactions
		SET account_id = $2, type = $3, amount = $4, description = $5, date = $6,
		    category = $7, particular = $8, merchant = $9, ref_number = $10, print_number = $11,
		    activity = $12, is_recurring = $13, recurring_interval = $14, next_recurring_date = $15,
		    status = $16, updated_at = $17
		WHERE id = $1
	`

	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		t.ID,
		t.AccountID,
		t.Type,
		t.Amount,
		t.Description,
		t.Date,
		t.Category,
		t.Particular,
		t.Merchant,
		t.RefNumber,
		t.PrintNumber,
		t.Activity,
		t.IsRecurring,
		t.RecurringInterval,
		t.NextRecurringDate,
		t.Status,
		t.UpdatedAt,
	)
	if err != nil {
		return translate("update transaction", err)
	}
	if err := expectAffected("update transaction", res); err != nil {
		return err
	}

	r.logger.Debug("transaction updated", zap.String("id", t.ID.String()))
	return nil
}

// MarkProcessed stamps a recurring template with its last run and next due date.
// A template already advanced to next is left alone and reported as ErrNotFound,
// so two processors cannot both materialise the same occurrence.
func (r *TransactionRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt, next time.Time) error {
	query := `
		UPDATE transactions
		SET last_processed = $2, next_recurring_date = $3, updated_at = $2
		WHERE id = $1 AND is_recurring AND next_recurring_date < $3
	`

	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, processedAt, next)
	if err != nil {
		return translate("mark recurring transaction processed", err)
	}
	return expectAffected("mark recurring transaction processed", res)
}

// Delete deletes a ledger transaction
func (r *TransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return translate("delete transaction", err)
	}
	if err := expectAffected("delete transaction", res); err != nil {
		return err
	}

	r.logger.Debug("transaction deleted", zap.String("id", id.String()))
	return nil
}

// DeleteMany deletes the listed ledger transactions and returns the removed rows.
// Rows already deleted by a concurrent transaction are not returned.
func (r *TransactionRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) ([]*models.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `DELETE FROM transactions WHERE id = ANY($1) RETURNING ` + transactionColumns
	removed, err := r.queryTransactions(ctx, "delete transactions", query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, err
	}

	r.logger.Debug("transactions deleted", zap.Int("count", len(removed)))
	return removed, nil
}

// ReceiptBook groups an account's transactions by authority-to-print number
func (r *TransactionRepository) ReceiptBook(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*models.ReceiptBookEntry, error) {
	query := `
		SELECT print_number,
		       COUNT(*),
		       COALESCE(SUM(amount), 0),
		       COALESCE(MIN(ref_number), ''),
		       COALESCE(MAX(ref_number), ''),
		       MIN(date),
		       MAX(date)
		FROM transactions
		WHERE account_id = $1 AND date >= $2 AND date <= $3 AND print_number <> ''
		GROUP BY print_number
		ORDER BY print_number ASC
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipt book: %w", err)
	}
	defer rows.Close()

	var entries []*models.ReceiptBookEntry
	for rows.Next() {
		e := &models.ReceiptBookEntry{}
		if err := rows.Scan(&e.PrintNumber, &e.Count, &e.Total, &e.FirstRef, &e.LastRef, &e.FirstDate, &e.LastDate); err != nil {
			return nil, fmt.Errorf("failed to scan receipt book entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipt book rows: %w", err)
	}
	return entries, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
