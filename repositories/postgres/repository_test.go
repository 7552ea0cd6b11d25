package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB, zap.NewNop()), mock
}

var userCols = []string{"id", "external_id", "email", "first_name", "last_name", "image_url", "role", "created_at", "updated_at"}

func TestUserRepository_GetByExternalID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT id, external_id, email .* FROM users WHERE external_id = \$1`).
		WithArgs("user_2abc").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(id.String(), "user_2abc", "staff@terual.ph", "Ana", "Cruz", "", "STAFF", now, now))

	u, err := repo.GetByExternalID(context.Background(), "user_2abc")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, models.RoleStaff, u.Role)
	assert.Equal(t, "Ana Cruz", u.FullName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByExternalID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())

	mock.ExpectQuery(`FROM users WHERE external_id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.GetByExternalID(context.Background(), "ghost")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	u := models.NewUser("user_2abc", "dup@terual.ph", models.RoleStaff)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := repo.Create(context.Background(), u)
	assert.ErrorIs(t, err, repositories.ErrDuplicateKey)
	assert.Contains(t, err.Error(), "users_email_key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateRole(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`UPDATE users\s+SET role = \$2`).
		WithArgs(id, "ADMIN", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(id.String(), "user_x", "x@terual.ph", "", "", "", "ADMIN", now, now))

	u, err := repo.UpdateRole(context.Background(), id, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_SetDefault(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, zap.NewNop())
	id := uuid.New()

	mock.ExpectExec(`UPDATE accounts SET is_default = FALSE`).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE accounts SET is_default = TRUE`).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetDefault(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_AdjustBalance_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, zap.NewNop())
	id := uuid.New()

	mock.ExpectExec(`UPDATE accounts\s+SET balance = balance \+ \$2`).
		WithArgs(id, -12.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AdjustBalance(context.Background(), id, -12.5)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_Create_DuplicateRef(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db, zap.NewNop())
	ref := "OR-0001"
	tx := models.NewTransaction(uuid.New(), models.TransactionTypeIncome, 500, time.Now())
	tx.RefNumber = &ref

	mock.ExpectExec(`INSERT INTO transactions`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_transactions_ref_number"})

	err := repo.Create(context.Background(), tx)
	assert.ErrorIs(t, err, repositories.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ExistsByRef(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM transactions WHERE ref_number = $1`)).
		WithArgs("OR-0001", nil).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByRef(context.Background(), "OR-0001", nil)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_List_BuildsFilter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db, zap.NewNop())
	accountID := uuid.New()
	expense := models.TransactionTypeExpense

	mock.ExpectQuery(`FROM transactions WHERE account_id = \$1 AND type = \$2 AND \(description ILIKE \$3 OR merchant ILIKE \$3 OR ref_number ILIKE \$3\) ORDER BY date DESC, created_at DESC LIMIT \$4 OFFSET \$5`).
		WithArgs(accountID, "EXPENSE", "%jollibee%", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.List(context.Background(), repositories.TransactionFilter{
		AccountID: &accountID,
		Type:      &expense,
		Search:    " jollibee ",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var transactionCols = []string{"id", "account_id", "type", "amount", "description", "date", "category", "particular",
	"merchant", "ref_number", "print_number", "activity", "is_recurring", "recurring_interval", "next_recurring_date",
	"last_processed", "status", "created_by", "created_at", "updated_at"}

func transactionRow(rows *sqlmock.Rows, id, accountID uuid.UUID, amount float64, now time.Time) *sqlmock.Rows {
	return rows.AddRow(id.String(), accountID.String(), "INCOME", amount, "", now, "sales", "", "",
		nil, "", "OPERATING", false, nil, nil, nil, "COMPLETED", nil, now, now)
}

func TestTransactionRepository_GetByIDForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db, zap.NewNop())
	id, accountID := uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM transactions WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(transactionRow(sqlmock.NewRows(transactionCols), id, accountID, 250, time.Now()))

	tx, err := repo.GetByIDForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, accountID, tx.AccountID)
	assert.Equal(t, 250.0, tx.Amount)

	mock.ExpectQuery(`FOR UPDATE`).WithArgs(id).WillReturnRows(sqlmock.NewRows(transactionCols))
	_, err = repo.GetByIDForUpdate(context.Background(), id)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_DeleteMany(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db, zap.NewNop())
	removed, alreadyGone, accountID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM transactions WHERE id = ANY($1) RETURNING id, account_id`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(transactionRow(sqlmock.NewRows(transactionCols), removed, accountID, 100, time.Now()))

	txs, err := repo.DeleteMany(context.Background(), []uuid.UUID{removed, alreadyGone})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, removed, txs[0].ID)

	txs, err = repo.DeleteMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_MarkProcessed_AlreadyAdvanced(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db, zap.NewNop())
	id := uuid.New()
	processedAt := time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC)
	next := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE transactions\s+SET last_processed = \$2, next_recurring_date = \$3.*next_recurring_date < \$3`).
		WithArgs(id, processedAt, next).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE transactions`).
		WithArgs(id, processedAt, next).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkProcessed(context.Background(), id, processedAt, next))
	assert.ErrorIs(t, repo.MarkProcessed(context.Background(), id, processedAt, next), repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ReceiptBook(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db, zap.NewNop())
	accountID := uuid.New()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`GROUP BY print_number`).
		WithArgs(accountID, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"print_number", "count", "sum", "min", "max", "min_date", "max_date"}).
			AddRow("ATP-123", 3, 1500.75, "OR-001", "OR-003", from, to))

	entries, err := repo.ReceiptBook(context.Background(), accountID, from, to)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ATP-123", entries[0].PrintNumber)
	assert.Equal(t, 3, entries[0].Count)
	assert.Equal(t, 1500.75, entries[0].Total)
	assert.Equal(t, "OR-003", entries[0].LastRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCashflowRepository_Create_WritesLinks(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCashflowRepository(db, zap.NewNop())
	txs := []*models.Transaction{
		{ID: uuid.New(), Type: models.TransactionTypeIncome, Amount: 100, Activity: models.ActivityOperating},
		{ID: uuid.New(), Type: models.TransactionTypeExpense, Amount: 40, Activity: models.ActivityInvesting},
	}
	cf := models.BuildCashflow(uuid.New(), time.Now().AddDate(0, -1, 0), time.Now(), 1000, txs)

	mock.ExpectExec(`INSERT INTO cashflows`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO cashflow_transactions`).
		WithArgs(cf.ID, txs[0].ID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO cashflow_transactions`).
		WithArgs(cf.ID, txs[1].ID).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), cf))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_InsertAndList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db, zap.NewNop())
	entry := models.NewAuditLog(models.AuditActionSyncUser, "May 1, 2024 9:00:00 AM")

	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(entry.ID, nil, "syncUser", []byte(`{}`), entry.LoggedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Insert(context.Background(), entry))

	action := models.AuditActionSyncUser
	mock.ExpectQuery(`FROM audit_logs WHERE action = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("syncUser", 100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "action", "meta", "logged_at", "created_at"}).
			AddRow(entry.ID.String(), nil, "syncUser", []byte(`{"email":"a@b.ph"}`), entry.LoggedAt, time.Now()))

	logs, err := repo.List(context.Background(), repositories.AuditFilter{Action: &action})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].UserID)
	assert.JSONEq(t, `{"email":"a@b.ph"}`, string(logs[0].Meta))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_InTransaction(t *testing.T) {
	t.Run("commits and routes repository calls through the transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		accounts := NewAccountRepository(db, zap.NewNop())
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE accounts\s+SET balance`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
			return accounts.AdjustBalance(ctx, id, 10)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the function fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested begin joins the outer transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectCommit()

		outer, err := tm.Begin(context.Background())
		require.NoError(t, err)
		inner, err := tm.Begin(outer.Context())
		require.NoError(t, err)

		require.NoError(t, inner.Commit())
		require.NoError(t, outer.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
