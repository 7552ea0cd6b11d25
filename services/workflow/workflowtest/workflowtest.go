// Package workflowtest provides an in-memory Runner for service tests.
package workflowtest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/identity"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories/mocks"
	"github.com/mrpayong/terual-accounting/services/audit"
	"github.com/mrpayong/terual-accounting/services/workflow"
	"go.uber.org/zap"
)

// Recorder keeps audit entries in memory
type Recorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *Recorder) Record(_ context.Context, e audit.Entry) audit.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return audit.OutcomeRecorded
}

// Entries returns a copy of the recorded entries
func (r *Recorder) Entries() []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Entry(nil), r.entries...)
}

// Actions returns the recorded actions in order
func (r *Recorder) Actions() []models.AuditAction {
	var actions []models.AuditAction
	for _, e := range r.Entries() {
		actions = append(actions, e.Action)
	}
	return actions
}

// Invalidator keeps invalidated paths in memory
type Invalidator struct {
	mu    sync.Mutex
	paths []string
}

func (i *Invalidator) Invalidate(_ context.Context, paths ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.paths = append(i.paths, paths...)
}

// Paths returns the invalidated paths in order
func (i *Invalidator) Paths() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.paths...)
}

// Harness bundles a Runner with its in-memory collaborators
type Harness struct {
	Runner      *workflow.Runner
	Recorder    *Recorder
	Invalidator *Invalidator
	Users       *mocks.UserRepository
}

// New creates a Harness whose clock is fixed at now
func New(now time.Time) *Harness {
	h := &Harness{
		Recorder:    &Recorder{},
		Invalidator: &Invalidator{},
		Users:       new(mocks.UserRepository),
	}
	h.Runner = workflow.NewRunner(workflow.NewResolver(h.Users), h.Recorder, h.Invalidator, nil, zap.NewNop()).
		WithClock(func() time.Time { return now })
	return h
}

// As returns ctx carrying an actor with role
func As(ctx context.Context, role models.Role) (context.Context, *models.Actor) {
	actor := &models.Actor{UserID: uuid.New(), ExternalID: "user_" + string(role), Role: role}
	return identity.WithActor(ctx, actor), actor
}
