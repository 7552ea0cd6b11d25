package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrpayong/terual-accounting/config"
	"github.com/mrpayong/terual-accounting/handlers"
	"github.com/mrpayong/terual-accounting/identity"
	"github.com/mrpayong/terual-accounting/internal/observability"
	"github.com/mrpayong/terual-accounting/middleware"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/repositories/postgres"
	"github.com/mrpayong/terual-accounting/services/accounts"
	"github.com/mrpayong/terual-accounting/services/audit"
	"github.com/mrpayong/terual-accounting/services/dashboard"
	"github.com/mrpayong/terual-accounting/services/invalidation"
	"github.com/mrpayong/terual-accounting/services/ledger"
	"github.com/mrpayong/terual-accounting/services/providers"
	"github.com/mrpayong/terual-accounting/services/providers/gemini"
	"github.com/mrpayong/terual-accounting/services/receipts"
	"github.com/mrpayong/terual-accounting/services/recurring"
	"github.com/mrpayong/terual-accounting/services/reports"
	"github.com/mrpayong/terual-accounting/services/users"
	"github.com/mrpayong/terual-accounting/services/workflow"
	"github.com/mrpayong/terual-accounting/web"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Redis   *invalidation.RedisClient // nil when views use the in-process store
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repositories
	RepoFactory *postgres.RepositoryFactory
	Repos       *repositories.Repositories
	TxManager   repositories.TransactionManager

	// Workflow
	Audit       *audit.Logger
	AuditReader *audit.Reader
	Invalidator *invalidation.Invalidator
	Views       *invalidation.ViewCache
	Runner      *workflow.Runner

	// Services
	Ledger    *ledger.Service
	Accounts  *accounts.Service
	Dashboard *dashboard.Service
	Reports   *reports.Service
	Users     *users.Service
	Providers *providers.Registry
	Scanner   *receipts.Scanner
	Recurring *recurring.Processor
	Scheduler *recurring.Scheduler // nil when disabled

	// HTTP
	AuthMiddleware     *middleware.AuthMiddleware
	BotProtection      *middleware.BotProtection
	TransactionHandler *handlers.TransactionHandler
	AccountHandler     *handlers.AccountHandler
	ReportHandler      *handlers.ReportHandler
	UserHandler        *handlers.UserHandler
	ReceiptHandler     *handlers.ReceiptHandler
	WebhookHandler     *handlers.WebhookHandler
	HealthHandler      *handlers.HealthHandler
	Web                *web.Handler
}

// NewDependencies opens the database and Redis connections and wires the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient, err := invalidation.NewRedisClient(ctx, cfg.Cache.RedisURL)
	if err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	deps, err := Assemble(cfg, factory, redisClient, observability.NewMetrics(), logger)
	if err != nil {
		_ = factory.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// Assemble wires every component on top of already opened connections.
// redisClient may be nil.
func Assemble(cfg *config.Config, factory *postgres.RepositoryFactory, redisClient *invalidation.RedisClient, metrics *observability.Metrics, logger *zap.Logger) (*Dependencies, error) {
	d := &Dependencies{
		Config:      cfg,
		DB:          factory.GetDB(),
		Redis:       redisClient,
		Logger:      logger,
		Metrics:     metrics,
		RepoFactory: factory,
		Repos:       factory.NewRepositories(),
		TxManager:   factory.GetTransactionManager(),
	}

	d.initWorkflow()
	if err := d.initServices(); err != nil {
		return nil, err
	}
	if err := d.initHTTP(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dependencies) initWorkflow() {
	var store invalidation.Store = invalidation.NewMemoryStore()
	if d.Redis != nil {
		store = invalidation.NewRedisStore(d.Redis.Client)
		d.Logger.Info("view generations shared through redis")
	}
	d.Invalidator = invalidation.NewInvalidator(store, d.Metrics, d.Logger.Named("invalidation"))
	d.Views = invalidation.NewViewCache(store, d.Config.Cache.ViewTTL, d.Metrics, d.Logger.Named("views")).
		WithMaxEntries(d.Config.Cache.MaxViews)

	d.Audit = audit.NewLogger(d.Repos.AuditLogs, audit.Config{
		Location:     d.Config.Audit.Location(),
		Layout:       d.Config.Audit.Layout,
		WriteTimeout: d.Config.Audit.WriteTimeout,
	}, d.Metrics, d.Logger.Named("audit"))
	d.AuditReader = audit.NewReader(d.Repos.AuditLogs, d.Repos.Users, d.Logger)

	d.Runner = workflow.NewRunner(workflow.NewResolver(d.Repos.Users), d.Audit, d.Invalidator, d.Metrics, d.Logger)
}

func (d *Dependencies) initServices() error {
	r := d.Repos
	d.Ledger = ledger.NewService(d.TxManager, r.Accounts, r.Transactions, d.Runner, d.Logger)
	d.Accounts = accounts.NewService(d.TxManager, r.Accounts, d.Runner, d.Logger)
	d.Dashboard = dashboard.NewService(r.Accounts, r.Transactions, d.Runner, d.Logger)
	d.Reports = reports.NewService(d.TxManager, r.Accounts, r.Transactions, r.Cashflows, d.Runner, d.Logger)
	d.Users = users.NewService(r.Users, d.AuditReader, d.Runner, d.Logger)
	d.Recurring = recurring.NewProcessor(d.TxManager, r.Accounts, r.Transactions, d.Runner, d.Metrics, d.Logger)

	if err := d.initProviders(); err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}
	d.Scanner = receipts.NewScanner(d.Providers, d.Runner, int(d.Config.Inference.MaxImageBytes), d.Metrics, d.Logger)

	if d.Config.Scheduler.Enabled {
		scheduler, err := recurring.NewScheduler(d.Config.Scheduler.Spec, d.Recurring, 0, d.Logger)
		if err != nil {
			return err
		}
		d.Scheduler = scheduler
	}
	return nil
}

// initProviders registers the configured inference providers
func (d *Dependencies) initProviders() error {
	d.Providers = providers.NewRegistry()

	inf := d.Config.Inference
	if inf.APIKey == "" {
		d.Logger.Warn("no inference API key configured, receipt scanning disabled")
		return nil
	}

	pc := providers.DefaultProviderConfig()
	pc.APIKey = inf.APIKey
	if inf.BaseURL != "" {
		pc.BaseURL = inf.BaseURL
	}
	if inf.Model != "" {
		pc.Model = inf.Model
	}
	if inf.Timeout > 0 {
		pc.Timeout = inf.Timeout
	}
	pc.MaxRetries = inf.MaxRetries
	if inf.RetryDelay > 0 {
		pc.RetryDelay = inf.RetryDelay
	}
	if inf.MaxResponseBytes > 0 {
		pc.MaxResponseBytes = inf.MaxResponseBytes
	}

	adapter := gemini.NewGeminiAdapter(pc)
	if err := d.Providers.RegisterProvider(adapter); err != nil {
		return err
	}
	d.Logger.Info("registered inference provider", zap.String("provider", adapter.Name()))
	return nil
}

func (d *Dependencies) initHTTP() error {
	auth := d.Config.Auth
	validator := identity.NewValidator(identity.Config{
		Issuer:            auth.Issuer,
		JWKSURL:           auth.JWKSURL,
		Audience:          auth.Audience,
		AuthorizedParties: auth.AuthorizedParties,
		CacheTTL:          auth.JWKSCacheTTL,
	})
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, auth.SessionCookie, auth.SignInURL, d.Logger)

	bot := d.Config.BotProtection
	d.BotProtection = middleware.NewBotProtection(bot.BlockedUserAgents, bot.RequestsPerSecond, bot.Burst, d.Metrics, d.Logger)

	d.TransactionHandler = handlers.NewTransactionHandler(d.Ledger, d.Logger)
	d.AccountHandler = handlers.NewAccountHandler(d.Accounts, d.Logger)
	d.ReportHandler = handlers.NewReportHandler(d.Reports, d.Dashboard, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.Users, d.Logger)
	d.ReceiptHandler = handlers.NewReceiptHandler(d.Scanner, d.Config.Inference.MaxImageBytes, d.Logger)

	// a typed nil verifier would defeat the handler's "not configured" check
	var verifier handlers.WebhookVerifier
	if auth.WebhookSecret != "" {
		v, err := identity.NewWebhookVerifier(auth.WebhookSecret, auth.WebhookTolerance)
		if err != nil {
			return fmt.Errorf("failed to initialize webhook verifier: %w", err)
		}
		verifier = v
	} else {
		d.Logger.Warn("identity webhook secret not configured, user sync disabled")
	}
	d.WebhookHandler = handlers.NewWebhookHandler(verifier, d.Users, d.Logger)

	checks := map[string]handlers.Pinger{"database": handlers.DatabasePinger(d.DB.DB)}
	if d.Redis != nil {
		checks["redis"] = handlers.PingFunc(d.Redis.Health)
	}
	d.HealthHandler = handlers.NewHealthHandler(checks, d.Logger)

	pages, err := web.NewHandler(web.Services{
		Ledger:    d.Ledger,
		Accounts:  d.Accounts,
		Dashboard: d.Dashboard,
		Reports:   d.Reports,
		Users:     d.Users,
	}, d.Views, web.Config{SessionCookie: auth.SessionCookie, SignOutURL: auth.SignOutURL}, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to parse page templates: %w", err)
	}
	d.Web = pages
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Scheduler != nil {
		if err := d.Scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop scheduler: %w", err))
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
