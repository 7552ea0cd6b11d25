package postgres

import (
	"github.com/mrpayong/terual-accounting/config"
	"github.com/mrpayong/terual-accounting/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory owns the connection pool and hands out repositories bound to it
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory opens the database and creates a factory for it
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return NewRepositoryFactoryFromDB(db, logger), nil
}

// NewRepositoryFactoryFromDB creates a factory around an existing pool
func NewRepositoryFactoryFromDB(db *DB, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{db: db, logger: logger}
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Users:        NewUserRepository(f.db, f.logger),
		Accounts:     NewAccountRepository(f.db, f.logger),
		Transactions: NewTransactionRepository(f.db, f.logger),
		Cashflows:    NewCashflowRepository(f.db, f.logger),
		AuditLogs:    NewAuditRepository(f.db, f.logger),
	}
}

// GetTransactionManager returns a transaction manager on the factory's pool
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	return NewTransactionManager(f.db, f.logger)
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
