package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrpayong/terual-accounting/app"
	"github.com/mrpayong/terual-accounting/config"
	"github.com/mrpayong/terual-accounting/internal/observability"
	"github.com/mrpayong/terual-accounting/repositories/postgres"
	"github.com/mrpayong/terual-accounting/routes"
	"go.uber.org/zap"
)

// botSweepInterval is how often idle per-IP rate limiters are dropped
const botSweepInterval = 5 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.New(ctx)
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Database.AutoMigrate {
		if err := migrate(cfg, logger); err != nil {
			return err
		}
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if deps.Scheduler != nil {
		deps.Scheduler.Start()
	}
	go sweepBots(ctx, deps)

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           routes.SetupRoutes(deps),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = deps.Close(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	return deps.Close(shutdownCtx)
}

// initLogger builds the zap logger from the observability settings
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "terual")), nil
}

func migrate(cfg *config.Config, logger *zap.Logger) error {
	m, err := postgres.NewMigrator(cfg.Database.URL(), logger.Named("migrate"))
	if err != nil {
		return fmt.Errorf("failed to open migrator: %w", err)
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}

func sweepBots(ctx context.Context, deps *app.Dependencies) {
	ticker := time.NewTicker(botSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := deps.BotProtection.Sweep(); n > 0 {
				deps.Logger.Debug("dropped idle rate limiters", zap.Int("count", n))
			}
		}
	}
}
