package services

import (
	"context"
	"errors"
	"testing"

	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/repositories/mocks"
	"github.com/stretchr/testify/assert"
)

func TestWithTransaction_Success(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(mocks.TransactionManager)
	mockTx := new(mocks.Transaction)

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(ctx)
	mockTx.On("Commit").Return(nil)

	err := WithTransaction(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) error {
		return nil
	})

	assert.NoError(t, err)
	assert.True(t, mockTx.Committed)
	assert.False(t, mockTx.RolledBack)
	mockTxMgr.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

func TestWithTransaction_ErrorInFunction(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(mocks.TransactionManager)
	mockTx := new(mocks.Transaction)
	expectedErr := errors.New("operation failed")

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(ctx)
	mockTx.On("Rollback").Return(nil)

	err := WithTransaction(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) error {
		return expectedErr
	})

	assert.Error(t, err)
	assert.Equal(t, expectedErr, err)
	assert.False(t, mockTx.Committed)
	assert.True(t, mockTx.RolledBack)
	mockTxMgr.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

func TestWithTransaction_BeginError(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(mocks.TransactionManager)
	expectedErr := errors.New("failed to begin transaction")

	mockTxMgr.On("Begin", ctx).Return(nil, expectedErr)

	err := WithTransaction(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) error {
		return nil
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")
	mockTxMgr.AssertExpectations(t)
}

func TestWithTransaction_CommitError(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(mocks.TransactionManager)
	mockTx := new(mocks.Transaction)
	expectedErr := errors.New("commit failed")

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(ctx)
	mockTx.On("Commit").Return(expectedErr)

	err := WithTransaction(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) error {
		return nil
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	assert.True(t, mockTx.Committed)
	mockTxMgr.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

func TestWithTransaction_RollbackError(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(mocks.TransactionManager)
	mockTx := new(mocks.Transaction)
	operationErr := errors.New("operation failed")
	rollbackErr := errors.New("rollback failed")

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(ctx)
	mockTx.On("Rollback").Return(rollbackErr)

	err := WithTransaction(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) error {
		return operationErr
	})

	assert.Error(t, err)
	assert.ErrorIs(t, err, operationErr)
	assert.ErrorIs(t, err, rollbackErr)
	assert.Contains(t, err.Error(), "rollback error")
	assert.True(t, mockTx.RolledBack)
	mockTxMgr.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

func TestWithTransaction_RollbackErrorKeepsDomainError(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(mocks.TransactionManager)
	mockTx := new(mocks.Transaction)

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(ctx)
	mockTx.On("Rollback").Return(errors.New("connection reset"))

	err := WithTransaction(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) error {
		return ErrDuplicateReference
	})

	assert.ErrorIs(t, err, ErrDuplicateReference)
	assert.True(t, IsDuplicateKeyError(err))
}

func TestWithTransactionResult_Success(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(mocks.TransactionManager)
	mockTx := new(mocks.Transaction)
	expectedResult := "success"

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(ctx)
	mockTx.On("Commit").Return(nil)

	result, err := WithTransactionResult(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) (string, error) {
		return expectedResult, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, expectedResult, result)
	assert.True(t, mockTx.Committed)
	assert.False(t, mockTx.RolledBack)
	mockTxMgr.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

func TestWithTransactionResult_ErrorInFunction(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(mocks.TransactionManager)
	mockTx := new(mocks.Transaction)
	expectedErr := errors.New("operation failed")

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(ctx)
	mockTx.On("Rollback").Return(nil)

	result, err := WithTransactionResult(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) (string, error) {
		return "", expectedErr
	})

	assert.Error(t, err)
	assert.Equal(t, expectedErr, err)
	assert.Equal(t, "", result)
	assert.False(t, mockTx.Committed)
	assert.True(t, mockTx.RolledBack)
	mockTxMgr.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

func TestWithTransactionResult_BeginError(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(mocks.TransactionManager)
	expectedErr := errors.New("failed to begin transaction")

	mockTxMgr.On("Begin", ctx).Return(nil, expectedErr)

	result, err := WithTransactionResult(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) (int, error) {
		return 42, nil
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")
	assert.Equal(t, 0, result)
	mockTxMgr.AssertExpectations(t)
}

func TestWithTransactionResult_CommitError(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(mocks.TransactionManager)
	mockTx := new(mocks.Transaction)
	expectedErr := errors.New("commit failed")

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(ctx)
	mockTx.On("Commit").Return(expectedErr)

	result, err := WithTransactionResult(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) (int, error) {
		return 42, nil
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	assert.Equal(t, 42, result)
	assert.True(t, mockTx.Committed)
	mockTxMgr.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

type ctxKey struct{}

func TestWithTransaction_PassesTransactionContext(t *testing.T) {
	ctx := context.Background()
	txCtx := context.WithValue(ctx, ctxKey{}, "tx")
	mockTxMgr := new(mocks.TransactionManager)
	mockTx := new(mocks.Transaction)

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(txCtx)
	mockTx.On("Commit").Return(nil)

	var seen interface{}
	err := WithTransaction(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) error {
		seen = ctx.Value(ctxKey{})
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "tx", seen)
}

func TestWithTransaction_PanicRollsBack(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(mocks.TransactionManager)
	mockTx := new(mocks.Transaction)

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(ctx)
	mockTx.On("Rollback").Return(nil)

	assert.Panics(t, func() {
		_ = WithTransaction(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) error {
			panic("boom")
		})
	})
	assert.True(t, mockTx.RolledBack)
	assert.False(t, mockTx.Committed)
}
