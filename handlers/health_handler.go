package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/mrpayong/terual-accounting/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Pinger is a dependency whose reachability gates readiness
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f(ctx)
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	checks  map[string]Pinger
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. Nil checks are skipped.
func NewHealthHandler(checks map[string]Pinger, logger *zap.Logger) *HealthHandler {
	active := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			active[name] = p
		}
	}
	return &HealthHandler{checks: active, timeout: 3 * time.Second, logger: logger}
}

// HandleHealth handles GET /healthz. It reports liveness only.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz and fails when any dependency is unreachable
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	allHealthy := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "unhealthy"
			allHealthy = false
			continue
		}
		checks[name] = "healthy"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	if err := utils.WriteJSON(w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// DatabasePinger checks that db answers a trivial query
func DatabasePinger(db *sql.DB) Pinger {
	if db == nil {
		return nil
	}
	return PingFunc(func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		var result int
		return db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	})
}
