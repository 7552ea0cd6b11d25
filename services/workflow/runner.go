package workflow

import (
	"context"
	"time"

	"github.com/mrpayong/terual-accounting/internal/observability"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/services"
	"github.com/mrpayong/terual-accounting/services/audit"
	"go.uber.org/zap"
)

// State is a step of one workflow invocation
type State string

const (
	StateStart        State = "START"
	StateResolving    State = "RESOLVING"
	StateAuthorizing  State = "AUTHORIZING"
	StateExecuting    State = "EXECUTING"
	StateCommitted    State = "COMMITTED"
	StateLogging      State = "LOGGING"
	StateInvalidating State = "INVALIDATING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// Transition is emitted on every state change of an invocation
type Transition struct {
	Action models.AuditAction
	From   State
	To     State
	Err    error // set when To is StateFailed
}

// ViewInvalidator marks rendered views stale
type ViewInvalidator interface {
	Invalidate(ctx context.Context, paths ...string)
}

// Mutation describes one audited state change.
// Roles must be non-empty; Execute must leave storage unchanged when it fails.
type Mutation[T any] struct {
	Action      models.AuditAction
	Roles       []models.Role
	Execute     func(ctx context.Context, actor *models.Actor) (T, error)
	Metadata    func(result T) map[string]interface{}
	Invalidates func(result T) []string
}

// Runner drives mutations through resolve, authorize, execute, log and invalidate
type Runner struct {
	resolver    ActorResolver
	recorder    audit.Recorder
	invalidator ViewInvalidator
	clock       func() time.Time
	metrics     *observability.Metrics
	logger      *zap.Logger
	observe     func(Transition)
}

// NewRunner creates a new Runner
func NewRunner(resolver ActorResolver, recorder audit.Recorder, invalidator ViewInvalidator, metrics *observability.Metrics, logger *zap.Logger) *Runner {
	return &Runner{
		resolver:    resolver,
		recorder:    recorder,
		invalidator: invalidator,
		clock:       time.Now,
		metrics:     metrics,
		logger:      logger.Named("workflow"),
	}
}

// WithClock replaces the clock used for commit and audit timestamps
func (r *Runner) WithClock(clock func() time.Time) *Runner {
	r.clock = clock
	return r
}

// OnTransition registers fn to observe every state change
func (r *Runner) OnTransition(fn func(Transition)) *Runner {
	r.observe = fn
	return r
}

// CurrentActor resolves the actor for ctx without authorizing anything
func (r *Runner) CurrentActor(ctx context.Context) (*models.Actor, error) {
	return r.resolver.Resolve(ctx)
}

type invocation struct {
	runner *Runner
	action models.AuditAction
	state  State
}

func (inv *invocation) to(next State) {
	prev := inv.state
	inv.state = next
	if inv.runner.observe != nil {
		inv.runner.observe(Transition{Action: inv.action, From: prev, To: next})
	}
}

func (inv *invocation) fail(err error) error {
	prev := inv.state
	inv.state = StateFailed
	if inv.runner.observe != nil {
		inv.runner.observe(Transition{Action: inv.action, From: prev, To: StateFailed, Err: err})
	}
	inv.runner.metrics.RecordWorkflow(string(inv.action), string(StateFailed)+"_"+string(prev))

	fields := []zap.Field{
		zap.String("action", string(inv.action)),
		zap.String("failed_in", string(prev)),
		zap.String("error_type", string(services.GetErrorType(err))),
		zap.Error(err),
	}
	if services.IsUpstreamError(err) || services.IsInternalError(err) {
		inv.runner.logger.Error("workflow failed", fields...)
	} else {
		inv.runner.logger.Info("workflow rejected", fields...)
	}
	return err
}

// resolveAndAuthorize runs the RESOLVING and AUTHORIZING steps
func (inv *invocation) resolveAndAuthorize(ctx context.Context, roles []models.Role) (*models.Actor, error) {
	inv.to(StateResolving)
	actor, err := inv.runner.resolver.Resolve(ctx)
	if err != nil {
		return nil, inv.fail(services.FromStorage(err, services.ErrUserNotFound))
	}

	inv.to(StateAuthorizing)
	if len(roles) == 0 {
		return nil, inv.fail(services.ErrInternal.WithDetail("reason", "operation declares no roles"))
	}
	if _, err := Authorize(actor, roles...); err != nil {
		return nil, inv.fail(err)
	}
	return actor, nil
}

// Run executes m for the actor in ctx. Resolver and gate failures return before
// Execute runs. Once Execute succeeds the result is returned regardless of the
// audit or invalidation outcome.
func Run[T any](ctx context.Context, r *Runner, m Mutation[T]) (T, error) {
	var zero T
	inv := &invocation{runner: r, action: m.Action, state: StateStart}

	actor, err := inv.resolveAndAuthorize(ctx, m.Roles)
	if err != nil {
		return zero, err
	}

	inv.to(StateExecuting)
	result, err := m.Execute(ctx, actor)
	if err != nil {
		return zero, inv.fail(services.FromStorage(err, nil))
	}
	committedAt := r.clock()
	inv.to(StateCommitted)

	inv.to(StateLogging)
	var meta map[string]interface{}
	if m.Metadata != nil {
		meta = m.Metadata(result)
	}
	loggedAt := r.clock()
	if loggedAt.Before(committedAt) {
		loggedAt = committedAt
	}
	outcome := r.recorder.Record(ctx, audit.Entry{
		ActorID:   actor.UserID,
		Action:    m.Action,
		Metadata:  meta,
		Timestamp: loggedAt,
	})
	if outcome != audit.OutcomeRecorded {
		r.logger.Warn("audit entry degraded",
			zap.String("action", string(m.Action)),
			zap.String("outcome", outcome.String()))
	}

	inv.to(StateInvalidating)
	if m.Invalidates != nil {
		if paths := m.Invalidates(result); len(paths) > 0 {
			r.invalidator.Invalidate(ctx, paths...)
		}
	}

	inv.to(StateDone)
	r.metrics.RecordWorkflow(string(m.Action), string(StateDone))
	return result, nil
}

// Query runs a read for the actor in ctx after the same resolve and role checks
// as a mutation. Reads are neither audited nor invalidate views.
func Query[T any](ctx context.Context, r *Runner, name string, roles []models.Role, read func(ctx context.Context, actor *models.Actor) (T, error)) (T, error) {
	var zero T
	inv := &invocation{runner: r, action: models.AuditAction(name), state: StateStart}

	actor, err := inv.resolveAndAuthorize(ctx, roles)
	if err != nil {
		return zero, err
	}

	inv.to(StateExecuting)
	result, err := read(ctx, actor)
	if err != nil {
		return zero, inv.fail(services.FromStorage(err, nil))
	}
	inv.to(StateDone)
	return result, nil
}
