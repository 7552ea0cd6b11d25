package recurring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSpec runs the processor at the top of every hour
const DefaultSpec = "@hourly"

// DuePass is one pass over due recurring templates
type DuePass interface {
	ProcessDue(ctx context.Context) (*Summary, error)
}

// Scheduler runs a DuePass on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	pass    DuePass
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
}

// NewScheduler creates a scheduler for spec. Each run is bounded by timeout.
func NewScheduler(spec string, pass DuePass, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	logger = logger.Named("scheduler")
	cronLog := cronLogger{logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		pass:    pass,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(spec, s.Run); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid recurring schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("recurring scheduler started")
}

// Stop stops scheduling, cancels a running pass and waits for it to return or ctx to end
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.logger.Info("recurring scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes one pass immediately
func (s *Scheduler) Run() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	summary, err := s.pass.ProcessDue(ctx)
	if err != nil {
		s.logger.Error("recurring pass failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	s.logger.Debug("recurring pass done",
		zap.Int("processed", summary.Processed),
		zap.Duration("elapsed", time.Since(start)))
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
