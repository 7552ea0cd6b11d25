package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"go.uber.org/zap"
)

const cashflowColumns = `id, account_id, description, start_date, end_date,
	operating_inflow, operating_outflow, investing_inflow, investing_outflow,
	financing_inflow, financing_outflow, gross_receipts, gross_payments, net_change,
	start_balance, end_balance, created_by, created_at`

// CashflowRepository implements the repositories.CashflowRepository interface
type CashflowRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCashflowRepository creates a new cashflow repository
func NewCashflowRepository(db *DB, logger *zap.Logger) *CashflowRepository {
	return &CashflowRepository{db: db, logger: logger}
}

func scanCashflow(row rowScanner) (*models.Cashflow, error) {
	c := &models.Cashflow{}
	err := row.Scan(
		&c.ID,
		&c.AccountID,
		&c.Description,
		&c.StartDate,
		&c.EndDate,
		&c.Operating.Inflow,
		&c.Operating.Outflow,
		&c.Investing.Inflow,
		&c.Investing.Outflow,
		&c.Financing.Inflow,
		&c.Financing.Outflow,
		&c.GrossReceipts,
		&c.GrossPayments,
		&c.NetChange,
		&c.StartBalance,
		&c.EndBalance,
		&c.CreatedBy,
		&c.CreatedAt,
	)
	return c, err
}

// Create inserts the statement and one link row per included transaction.
// Callers run it inside a transaction so the statement never exists without its links.
func (r *CashflowRepository) Create(ctx context.Context, cf *models.Cashflow) error {
	exec := GetExecutor(ctx, r.db)

	query := `
		INSERT INTO cashflows (` + cashflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := exec.ExecContext(ctx, query,
		cf.ID,
		cf.AccountID,
		cf.Description,
		cf.StartDate,
		cf.EndDate,
		cf.Operating.Inflow,
		cf.Operating.Outflow,
		cf.Investing.Inflow,
		cf.Investing.Outflow,
		cf.Financing.Inflow,
		cf.Financing.Outflow,
		cf.GrossReceipts,
		cf.GrossPayments,
		cf.NetChange,
		cf.StartBalance,
		cf.EndBalance,
		cf.CreatedBy,
		cf.CreatedAt,
	)
	if err != nil {
		return translate("create cashflow", err)
	}

	for _, txID := range cf.TransactionIDs {
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO cashflow_transactions (cashflow_id, transaction_id) VALUES ($1, $2)`,
			cf.ID, txID); err != nil {
			return translate("link cashflow transaction", err)
		}
	}

	r.logger.Debug("cashflow created",
		zap.String("id", cf.ID.String()),
		zap.Int("transactions", len(cf.TransactionIDs)))
	return nil
}

// GetByID retrieves a statement with its linked transaction IDs
func (r *CashflowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Cashflow, error) {
	exec := GetExecutor(ctx, r.db)

	cf, err := scanCashflow(exec.QueryRowContext(ctx, `SELECT `+cashflowColumns+` FROM cashflows WHERE id = $1`, id))
	if err != nil {
		return nil, translate("get cashflow", err)
	}

	rows, err := exec.QueryContext(ctx,
		`SELECT transaction_id FROM cashflow_transactions WHERE cashflow_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query cashflow links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txID uuid.UUID
		if err := rows.Scan(&txID); err != nil {
			return nil, fmt.Errorf("failed to scan cashflow link: %w", err)
		}
		cf.TransactionIDs = append(cf.TransactionIDs, txID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cashflow links: %w", err)
	}

	return cf, nil
}

// List retrieves statements, optionally for one account, newest first
func (r *CashflowRepository) List(ctx context.Context, accountID *uuid.UUID, limit, offset int) ([]*models.Cashflow, error) {
	query := `
		SELECT ` + cashflowColumns + `
		FROM cashflows
		WHERE ($1::uuid IS NULL OR account_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query cashflows: %w", err)
	}
	defer rows.Close()

	var out []*models.Cashflow
	for rows.Next() {
		cf, err := scanCashflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cashflow: %w", err)
		}
		out = append(out, cf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cashflow rows: %w", err)
	}
	return out, nil
}

// Delete deletes a statement; its links go with it
func (r *CashflowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM cashflows WHERE id = $1`, id)
	if err != nil {
		return translate("delete cashflow", err)
	}
	if err := expectAffected("delete cashflow", res); err != nil {
		return err
	}

	r.logger.Debug("cashflow deleted", zap.String("id", id.String()))
	return nil
}
