package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/app"
	"github.com/mrpayong/terual-accounting/config"
	"github.com/mrpayong/terual-accounting/internal/observability"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/services/audit"
	"github.com/mrpayong/terual-accounting/services/recurring"
	"github.com/mrpayong/terual-accounting/services/users"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// backend is the slice of the application the admin commands drive
type backend interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateUser(ctx context.Context, externalID, email string, role models.Role) (*models.User, error)
	UpdateUserRole(ctx context.Context, userID uuid.UUID, role models.Role) (*models.User, error)
	AuditTrail(ctx context.Context, filter repositories.AuditFilter) ([]*audit.Record, error)
	ProcessDue(ctx context.Context) (*recurring.Summary, error)
}

type appBackend struct {
	*users.Service
	*recurring.Processor
}

type cli struct {
	out     io.Writer
	json    bool
	connect func(ctx context.Context) (backend, func() error, error)
}

func newCLI(out io.Writer) *cli {
	return &cli{out: out, connect: connectApp}
}

// connectApp wires the full application. Commands run as the system actor,
// so the session validator and web handlers are built but never used.
func connectApp(ctx context.Context) (backend, func() error, error) {
	cfg, logger, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error { return deps.Close(context.Background()) }
	return appBackend{Service: deps.Users, Processor: deps.Recurring}, closeFn, nil
}

func loadConfig(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	// keep stdout clean for tables and --json
	logger, err := observability.NewLogger("warn", "console")
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "terualctl",
		Short:         "Terual accounting administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.out)
	root.PersistentFlags().BoolVar(&c.json, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newMigrateCmd(c),
		newUsersCmd(c),
		newAuditCmd(c),
		newRecurringCmd(c),
	)
	return root
}

// withBackend connects, runs fn and releases the connections
func (c *cli) withBackend(cmd *cobra.Command, fn func(ctx context.Context, b backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, closeFn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()
	return fn(ctx, b)
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
