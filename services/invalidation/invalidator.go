package invalidation

import (
	"context"

	"github.com/mrpayong/terual-accounting/internal/observability"
	"go.uber.org/zap"
)

// View paths rendered by the web layer
const (
	PathDashboard    = "/dashboard"
	PathTransactions = "/transactions"
	PathAccounts     = "/accounts"
	PathCashflow     = "/reports/cashflow"
	PathReceiptBook  = "/reports/receipt-book"
	PathAdminUsers   = "/admin/users"
	PathAdminAudit   = "/admin/audit"
)

// AccountPath returns the view path of one account's page
func AccountPath(id string) string {
	return PathAccounts + "/" + id
}

// Invalidator marks views stale. Invalidation is advisory: failures are logged, never returned.
type Invalidator struct {
	store   Store
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewInvalidator creates a new Invalidator
func NewInvalidator(store Store, metrics *observability.Metrics, logger *zap.Logger) *Invalidator {
	return &Invalidator{store: store, metrics: metrics, logger: logger}
}

// Invalidate bumps the generation of every distinct path
func (i *Invalidator) Invalidate(ctx context.Context, paths ...string) {
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}

		if _, err := i.store.Bump(ctx, path); err != nil {
			i.logger.Warn("view invalidation failed", zap.String("path", path), zap.Error(err))
			continue
		}
		i.metrics.RecordInvalidation(path)
	}
}
