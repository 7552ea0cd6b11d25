// Package recurring materialises due recurring transactions on a schedule.
package recurring

import (
	"context"
	"time"

	"github.com/mrpayong/terual-accounting/identity"
	"github.com/mrpayong/terual-accounting/internal/observability"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/services"
	"github.com/mrpayong/terual-accounting/services/invalidation"
	"github.com/mrpayong/terual-accounting/services/workflow"
	"go.uber.org/zap"
)

// maxCatchUp bounds the occurrences one template may produce in a single pass
const maxCatchUp = 400

// Summary reports one ProcessDue pass
type Summary struct {
	Templates int `json:"templates"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Occurrence is one materialised run of a template
type Occurrence struct {
	TemplateID  string              `json:"template_id"`
	Transaction *models.Transaction `json:"transaction"`
	Next        time.Time           `json:"next"`
}

// Processor turns due recurring templates into ledger transactions
type Processor struct {
	txMgr        repositories.TransactionManager
	accounts     repositories.AccountRepository
	transactions repositories.TransactionRepository
	runner       *workflow.Runner
	clock        func() time.Time
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewProcessor creates a new Processor
func NewProcessor(
	txMgr repositories.TransactionManager,
	accounts repositories.AccountRepository,
	transactions repositories.TransactionRepository,
	runner *workflow.Runner,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		txMgr:        txMgr,
		accounts:     accounts,
		transactions: transactions,
		runner:       runner,
		clock:        time.Now,
		metrics:      metrics,
		logger:       logger.Named("recurring"),
	}
}

// ProcessDue materialises every occurrence that is due now, as the system actor.
// Each occurrence commits on its own; a failing template does not stop the others.
func (p *Processor) ProcessDue(ctx context.Context) (*Summary, error) {
	ctx = identity.WithSystemActor(ctx)
	now := p.clock()

	due, err := p.transactions.ListDueRecurring(ctx, now)
	if err != nil {
		return nil, services.FromStorage(err, nil)
	}

	summary := &Summary{Templates: len(due)}
	for _, tmpl := range due {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		p.processTemplate(ctx, tmpl, now, summary)
	}

	p.logger.Info("recurring pass finished",
		zap.Int("templates", summary.Templates),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (p *Processor) processTemplate(ctx context.Context, tmpl *models.Transaction, now time.Time, summary *Summary) {
	if tmpl.RecurringInterval == nil || !tmpl.RecurringInterval.Valid() {
		summary.Failed++
		p.metrics.RecordRecurring("failed")
		p.logger.Error("recurring template has no valid interval", zap.String("template_id", tmpl.ID.String()))
		return
	}

	for i := 0; i < maxCatchUp && tmpl.IsDue(now); i++ {
		occ, err := p.materialise(ctx, tmpl, now)
		switch {
		case err == nil:
			summary.Processed++
			p.metrics.RecordRecurring("processed")
			next := occ.Next
			tmpl.NextRecurringDate = &next
		case services.IsNotFoundError(err):
			summary.Skipped++
			p.metrics.RecordRecurring("skipped")
			p.logger.Info("recurring template already advanced", zap.String("template_id", tmpl.ID.String()))
			return
		default:
			summary.Failed++
			p.metrics.RecordRecurring("failed")
			p.logger.Error("recurring occurrence failed",
				zap.String("template_id", tmpl.ID.String()),
				zap.Error(err))
			return
		}
	}
}

// materialise inserts the occurrence due on tmpl's next date, adjusts the
// balance and advances the template, all in one database transaction
func (p *Processor) materialise(ctx context.Context, tmpl *models.Transaction, now time.Time) (*Occurrence, error) {
	dueDate := *tmpl.NextRecurringDate
	next := models.NextRecurringDate(dueDate, *tmpl.RecurringInterval)

	return workflow.Run(ctx, p.runner, workflow.Mutation[*Occurrence]{
		Action: models.AuditActionProcessRecurring,
		Roles:  workflow.SysAdminOnly,
		Execute: func(ctx context.Context, _ *models.Actor) (*Occurrence, error) {
			return services.WithTransactionResult(ctx, p.txMgr, func(ctx context.Context, _ repositories.Transaction) (*Occurrence, error) {
				if err := p.transactions.MarkProcessed(ctx, tmpl.ID, now, next); err != nil {
					return nil, services.FromStorage(err, services.ErrTransactionNotFound)
				}

				occ := tmpl.Occurrence(dueDate)
				if err := p.transactions.Create(ctx, occ); err != nil {
					return nil, services.FromStorage(err, nil)
				}
				if err := p.accounts.AdjustBalance(ctx, occ.AccountID, occ.SignedAmount()); err != nil {
					return nil, services.FromStorage(err, services.ErrAccountNotFound)
				}
				return &Occurrence{TemplateID: tmpl.ID.String(), Transaction: occ, Next: next}, nil
			})
		},
		Metadata: func(o *Occurrence) map[string]interface{} {
			return map[string]interface{}{
				"templateId":    o.TemplateID,
				"transactionId": o.Transaction.ID,
				"accountId":     o.Transaction.AccountID,
				"amount":        o.Transaction.Amount,
				"date":          o.Transaction.Date.Format("2006-01-02"),
				"nextDate":      o.Next.Format("2006-01-02"),
			}
		},
		Invalidates: func(o *Occurrence) []string {
			return []string{
				invalidation.PathDashboard,
				invalidation.PathTransactions,
				invalidation.AccountPath(o.Transaction.AccountID.String()),
			}
		},
	})
}
