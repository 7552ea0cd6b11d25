package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema migrations
type Migrator struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

// NewMigrator opens a migrator against databaseURL, a postgres:// URL
func NewMigrator(databaseURL string, logger *zap.Logger) (*Migrator, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("migrate new: %w", err)
	}

	return &Migrator{m: m, logger: logger}, nil
}

// Up applies all pending migrations. Being already current is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	mg.logVersion("migrations applied")
	return nil
}

// Down rolls back a single migration step
func (mg *Migrator) Down() error {
	if err := mg.m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	mg.logVersion("migration rolled back")
	return nil
}

// Version returns the current schema version; zero when nothing has been applied
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migrate version: %w", err)
	}
	return v, dirty, nil
}

// Close releases the source and database handles
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (mg *Migrator) logVersion(msg string) {
	v, dirty, err := mg.Version()
	if err != nil {
		mg.logger.Warn("could not read schema version", zap.Error(err))
		return
	}
	mg.logger.Info(msg, zap.Uint("version", v), zap.Bool("dirty", dirty))
}

// Migrate applies all pending migrations and closes the migrator
func Migrate(databaseURL string, logger *zap.Logger) error {
	mg, err := NewMigrator(databaseURL, logger)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}
