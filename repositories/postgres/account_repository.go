package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"go.uber.org/zap"
)

const accountColumns = `id, name, type, balance, is_default, created_by, created_at, updated_at`

// AccountRepository implements the repositories.AccountRepository interface
type AccountRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB, logger *zap.Logger) *AccountRepository {
	return &AccountRepository{db: db, logger: logger}
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Type,
		&a.Balance,
		&a.IsDefault,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.Type,
		account.Balance,
		account.IsDefault,
		account.CreatedBy,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return translate("create account", err)
	}

	r.logger.Debug("account created", zap.String("id", account.ID.String()), zap.String("name", account.Name))
	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate("get account", err)
	}
	return a, nil
}

// GetByIDForUpdate retrieves an account and locks its row until the transaction ends
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	a, err := scanAccount(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate("lock account", err)
	}
	return a, nil
}

// GetDefault retrieves the default account
func (r *AccountRepository) GetDefault(ctx context.Context) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE is_default LIMIT 1`

	a, err := scanAccount(GetExecutor(ctx, r.db).QueryRowContext(ctx, query))
	if err != nil {
		return nil, translate("get default account", err)
	}
	return a, nil
}

// List retrieves all accounts, default first
func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY is_default DESC, name ASC`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}

	return accounts, nil
}

// Update updates an account's name and type
func (r *AccountRepository) Update(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, type = $3, updated_at = $4
		WHERE id = $1
	`

	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.Type,
		account.UpdatedAt,
	)
	if err != nil {
		return translate("update account", err)
	}
	if err := expectAffected("update account", res); err != nil {
		return err
	}

	r.logger.Debug("account updated", zap.String("id", account.ID.String()))
	return nil
}

// AdjustBalance adds delta to an account balance
func (r *AccountRepository) AdjustBalance(ctx context.Context, id uuid.UUID, delta float64) error {
	query := `
		UPDATE accounts
		SET balance = balance + $2, updated_at = $3
		WHERE id = $1
	`

	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, models.RoundAmount(delta), time.Now())
	if err != nil {
		return translate("adjust account balance", err)
	}
	return expectAffected("adjust account balance", res)
}

// SetDefault marks one account as default and clears every other
func (r *AccountRepository) SetDefault(ctx context.Context, id uuid.UUID) error {
	exec := GetExecutor(ctx, r.db)
	now := time.Now()

	if _, err := exec.ExecContext(ctx,
		`UPDATE accounts SET is_default = FALSE, updated_at = $2 WHERE is_default AND id <> $1`, id, now); err != nil {
		return translate("clear default account", err)
	}

	res, err := exec.ExecContext(ctx,
		`UPDATE accounts SET is_default = TRUE, updated_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return translate("set default account", err)
	}
	if err := expectAffected("set default account", res); err != nil {
		return err
	}

	r.logger.Debug("default account set", zap.String("id", id.String()))
	return nil
}

// Delete deletes an account and, by cascade, its transactions
func (r *AccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return translate("delete account", err)
	}
	if err := expectAffected("delete account", res); err != nil {
		return err
	}

	r.logger.Debug("account deleted", zap.String("id", id.String()))
	return nil
}
