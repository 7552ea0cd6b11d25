package recurring

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/repositories/mocks"
	"github.com/mrpayong/terual-accounting/services"
	"github.com/mrpayong/terual-accounting/services/workflow/workflowtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	processor    *Processor
	harness      *workflowtest.Harness
	accounts     *mocks.AccountRepository
	transactions *mocks.TransactionRepository
}

func newFixture() *fixture {
	txMgr, _ := mocks.ExpectTransaction(context.Background())
	f := &fixture{
		harness:      workflowtest.New(now),
		accounts:     new(mocks.AccountRepository),
		transactions: new(mocks.TransactionRepository),
	}
	f.processor = NewProcessor(txMgr, f.accounts, f.transactions, f.harness.Runner, nil, zap.NewNop())
	f.processor.clock = func() time.Time { return now }
	return f
}

func template(interval models.RecurringInterval, base time.Time, amount float64) *models.Transaction {
	return models.NewTransaction(uuid.New(), models.TransactionTypeExpense, amount, base).WithRecurrence(interval)
}

func TestProcessDue_Monthly(t *testing.T) {
	f := newFixture()
	tmpl := template(models.IntervalMonthly, day(1, 1), 500)
	ref := "RENT"
	tmpl.RefNumber = &ref

	f.transactions.On("ListDueRecurring", mock.Anything, now).Return([]*models.Transaction{tmpl}, nil)
	f.transactions.On("MarkProcessed", mock.Anything, tmpl.ID, now, day(3, 1)).Return(nil)
	f.transactions.On("Create", mock.Anything, mock.MatchedBy(func(tx *models.Transaction) bool {
		return tx.Reference() == "RENT-R20240201" && tx.Date.Equal(day(2, 1)) && !tx.IsRecurring
	})).Return(nil)
	f.accounts.On("AdjustBalance", mock.Anything, tmpl.AccountID, -500.0).Return(nil)

	summary, err := f.processor.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Summary{Templates: 1, Processed: 1}, summary)

	entries := f.harness.Recorder.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionProcessRecurring, entries[0].Action)
	assert.Equal(t, uuid.Nil, entries[0].ActorID)
	assert.Equal(t, "2024-03-01", entries[0].Metadata["nextDate"])
	f.transactions.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
}

func TestProcessDue_CatchesUpMissedOccurrences(t *testing.T) {
	f := newFixture()
	tmpl := template(models.IntervalDaily, day(2, 7), 10)

	f.transactions.On("ListDueRecurring", mock.Anything, now).Return([]*models.Transaction{tmpl}, nil)
	f.transactions.On("MarkProcessed", mock.Anything, tmpl.ID, now, mock.Anything).Return(nil)
	f.transactions.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.accounts.On("AdjustBalance", mock.Anything, tmpl.AccountID, -10.0).Return(nil)

	summary, err := f.processor.ProcessDue(context.Background())
	require.NoError(t, err)

	// Feb 8, 9 and 10 are due at noon on Feb 10
	assert.Equal(t, 3, summary.Processed)
	f.transactions.AssertNumberOfCalls(t, "Create", 3)
	assert.Equal(t, day(2, 11), *tmpl.NextRecurringDate)
}

func TestProcessDue_FailuresAreIsolated(t *testing.T) {
	f := newFixture()
	broken := template(models.IntervalMonthly, day(1, 1), 100)
	advanced := template(models.IntervalMonthly, day(1, 2), 200)
	healthy := template(models.IntervalMonthly, day(1, 3), 300)
	noInterval := models.NewTransaction(uuid.New(), models.TransactionTypeIncome, 1, day(1, 1))
	noInterval.IsRecurring = true
	next := day(2, 1)
	noInterval.NextRecurringDate = &next

	f.transactions.On("ListDueRecurring", mock.Anything, now).
		Return([]*models.Transaction{broken, advanced, noInterval, healthy}, nil)

	f.transactions.On("MarkProcessed", mock.Anything, broken.ID, now, mock.Anything).Return(nil)
	f.transactions.On("Create", mock.Anything, mock.MatchedBy(func(tx *models.Transaction) bool {
		return tx.AccountID == broken.AccountID
	})).Return(errors.New("connection reset"))

	f.transactions.On("MarkProcessed", mock.Anything, advanced.ID, now, mock.Anything).
		Return(repositories.ErrNotFound)

	f.transactions.On("MarkProcessed", mock.Anything, healthy.ID, now, mock.Anything).Return(nil)
	f.transactions.On("Create", mock.Anything, mock.MatchedBy(func(tx *models.Transaction) bool {
		return tx.AccountID == healthy.AccountID
	})).Return(nil)
	f.accounts.On("AdjustBalance", mock.Anything, healthy.AccountID, -300.0).Return(nil)

	summary, err := f.processor.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Summary{Templates: 4, Processed: 1, Skipped: 1, Failed: 2}, summary)
	assert.Equal(t, []models.AuditAction{models.AuditActionProcessRecurring}, f.harness.Recorder.Actions())
	f.accounts.AssertNotCalled(t, "AdjustBalance", mock.Anything, broken.AccountID, mock.Anything)
}

func TestProcessDue_ListFailure(t *testing.T) {
	f := newFixture()
	f.transactions.On("ListDueRecurring", mock.Anything, now).Return(nil, errors.New("timeout"))

	_, err := f.processor.ProcessDue(context.Background())
	assert.True(t, services.IsUpstreamError(err))
}

type countingPass struct {
	calls int32
	err   error
}

func (c *countingPass) ProcessDue(ctx context.Context) (*Summary, error) {
	atomic.AddInt32(&c.calls, 1)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("pass must run with a deadline")
	}
	return &Summary{}, c.err
}

func TestScheduler(t *testing.T) {
	t.Run("rejects an invalid spec", func(t *testing.T) {
		_, err := NewScheduler("every tuesday", &countingPass{}, time.Minute, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("run executes one bounded pass", func(t *testing.T) {
		pass := &countingPass{}
		s, err := NewScheduler("", pass, time.Minute, zap.NewNop())
		require.NoError(t, err)

		s.Run()
		pass.err = errors.New("boom")
		s.Run()
		assert.Equal(t, int32(2), atomic.LoadInt32(&pass.calls))
	})

	t.Run("start and stop", func(t *testing.T) {
		s, err := NewScheduler("@every 1h", &countingPass{}, time.Minute, zap.NewNop())
		require.NoError(t, err)

		s.Start()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, s.Stop(ctx))
	})
}
