package audit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/internal/observability"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"go.uber.org/zap"
)

// Entry is one audit record to write: who did what, with what metadata, when
type Entry struct {
	ActorID   uuid.UUID // uuid.Nil for the system actor
	Action    models.AuditAction
	Metadata  map[string]interface{}
	Timestamp time.Time
}

// Outcome describes what reached the audit store for one Record call
type Outcome int

const (
	// OutcomeRecorded means the entry was stored as given
	OutcomeRecorded Outcome = iota
	// OutcomeRecordedFallback means the entry failed and a failure marker was stored instead
	OutcomeRecordedFallback
	// OutcomeDropped means both writes failed; only the diagnostic log has it
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeRecordedFallback:
		return "fallback"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Recorder is the single entry point the workflow uses for audit writes
type Recorder interface {
	Record(ctx context.Context, e Entry) Outcome
}

// Config holds the audit logger settings
type Config struct {
	Location     *time.Location
	Layout       string
	WriteTimeout time.Duration
}

// DefaultConfig returns the default configuration (Manila time, long US layout)
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		loc = time.FixedZone("PHT", 8*60*60)
	}
	return Config{
		Location:     loc,
		Layout:       "January 2, 2006 3:04:05 PM",
		WriteTimeout: 5 * time.Second,
	}
}

// Logger writes audit entries synchronously and never returns an error.
// If the primary write fails it writes one auditLogFailure entry without the
// original metadata; if that fails too the entry goes to the diagnostic log.
type Logger struct {
	repo    repositories.AuditRepository
	cfg     Config
	metrics *observability.Metrics
	logger  *zap.Logger

	recorded  atomic.Int64
	fallbacks atomic.Int64
	dropped   atomic.Int64
}

// NewLogger creates a new audit Logger
func NewLogger(repo repositories.AuditRepository, cfg Config, metrics *observability.Metrics, logger *zap.Logger) *Logger {
	def := DefaultConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.Layout == "" {
		cfg.Layout = def.Layout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Logger{
		repo:    repo,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.Named("audit"),
	}
}

// FormatTimestamp renders t in the configured zone and layout
func (l *Logger) FormatTimestamp(t time.Time) string {
	return t.In(l.cfg.Location).Format(l.cfg.Layout)
}

// Record writes e. The write is detached from ctx cancellation so an entry for a
// committed mutation is still attempted after the client goes away.
func (l *Logger) Record(ctx context.Context, e Entry) Outcome {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	loggedAt := l.FormatTimestamp(e.Timestamp)

	entry := models.NewAuditLog(e.Action, loggedAt).WithUser(e.ActorID)
	if e.Metadata != nil {
		entry.WithMeta(e.Metadata)
	}

	err := l.insert(ctx, entry)
	if err == nil {
		return l.done(OutcomeRecorded)
	}

	l.logger.Warn("audit write failed, recording failure marker",
		zap.String("action", string(e.Action)),
		zap.String("actor_id", e.ActorID.String()),
		zap.Error(err))

	fallback := models.NewAuditLog(models.AuditActionLogFailure, loggedAt).
		WithUser(e.ActorID).
		WithMeta(map[string]interface{}{
			"failedAction": string(e.Action),
			"error":        "audit write failed",
		})

	if fbErr := l.insert(ctx, fallback); fbErr != nil {
		l.logger.Error("audit fallback write failed",
			zap.String("action", string(e.Action)),
			zap.String("actor_id", e.ActorID.String()),
			zap.String("logged_at", loggedAt),
			zap.Any("metadata", e.Metadata),
			zap.NamedError("primary_error", err),
			zap.Error(fbErr))
		return l.done(OutcomeDropped)
	}
	return l.done(OutcomeRecordedFallback)
}

func (l *Logger) insert(ctx context.Context, entry *models.AuditLog) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.WriteTimeout)
	defer cancel()

	if err := l.repo.Insert(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func (l *Logger) done(o Outcome) Outcome {
	switch o {
	case OutcomeRecorded:
		l.recorded.Add(1)
	case OutcomeRecordedFallback:
		l.fallbacks.Add(1)
	case OutcomeDropped:
		l.dropped.Add(1)
	}
	l.metrics.RecordAuditWrite(o.String())
	return o
}

// Stats represents audit logger counters since start
type Stats struct {
	Recorded  int64
	Fallbacks int64
	Dropped   int64
}

// GetStats returns the audit logger counters
func (l *Logger) GetStats() Stats {
	return Stats{
		Recorded:  l.recorded.Load(),
		Fallbacks: l.fallbacks.Load(),
		Dropped:   l.dropped.Load(),
	}
}
