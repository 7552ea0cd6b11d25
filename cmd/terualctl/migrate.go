package main

import (
	"context"
	"fmt"

	"github.com/mrpayong/terual-accounting/repositories/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					return c.printVersion(m)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					if err := m.Down(); err != nil {
						return err
					}
					return c.printVersion(m)
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), c.printVersion)
			},
		},
	)
	return cmd
}

func withMigrator(ctx context.Context, fn func(m *postgres.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	m, err := postgres.NewMigrator(cfg.Database.URL(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return fn(m)
}

func (c *cli) printVersion(m *postgres.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if c.json {
		return c.printJSON(map[string]interface{}{"version": version, "dirty": dirty})
	}
	_, err = fmt.Fprintf(c.out, "schema version %d (dirty: %t)\n", version, dirty)
	return err
}
