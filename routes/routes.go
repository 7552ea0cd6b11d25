package routes

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mrpayong/terual-accounting/app"
	"github.com/mrpayong/terual-accounting/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger.Named("http")))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	r.Use(middleware.Prometheus(deps.Metrics))

	// Probes and scraping stay reachable for infrastructure user agents
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)
	if cfg.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if cfg.BotProtection.Enabled {
			r.Use(deps.BotProtection.Middleware)
		}

		// Signed by the identity provider, not by a user session
		r.Post("/webhooks/identity", deps.WebhookHandler.HandleIdentity)
		r.Get("/sign-out", deps.Web.HandleSignOut)

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   cfg.Server.AllowedOrigins,
				AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
				ExposedHeaders:   []string{"X-Request-Id"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
			r.Use(deps.AuthMiddleware.RequireAuth)

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", deps.TransactionHandler.HandleList)
				r.Post("/", deps.TransactionHandler.HandleCreate)
				r.Post("/bulk-delete", deps.TransactionHandler.HandleBulkDelete)
				r.Get("/{id}", deps.TransactionHandler.HandleGet)
				r.Put("/{id}", deps.TransactionHandler.HandleUpdate)
				r.Delete("/{id}", deps.TransactionHandler.HandleDelete)
			})

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", deps.AccountHandler.HandleList)
				r.Post("/", deps.AccountHandler.HandleCreate)
				r.Get("/{id}", deps.AccountHandler.HandleGet)
				r.Put("/{id}", deps.AccountHandler.HandleUpdate)
				r.Delete("/{id}", deps.AccountHandler.HandleDelete)
				r.Post("/{id}/default", deps.AccountHandler.HandleSetDefault)
			})

			r.Get("/dashboard", deps.ReportHandler.HandleDashboard)
			r.Route("/reports", func(r chi.Router) {
				r.Get("/cashflow", deps.ReportHandler.HandleListCashflows)
				r.Post("/cashflow", deps.ReportHandler.HandleCreateCashflow)
				r.Get("/cashflow/{id}", deps.ReportHandler.HandleGetCashflow)
				r.Delete("/cashflow/{id}", deps.ReportHandler.HandleDeleteCashflow)
				r.Get("/receipt-book", deps.ReportHandler.HandleReceiptBook)
			})

			r.Post("/receipts/scan", deps.ReceiptHandler.HandleScan)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", deps.UserHandler.HandleList)
				r.Get("/me", deps.UserHandler.HandleMe)
				r.Put("/{id}/role", deps.UserHandler.HandleUpdateRole)
			})
			r.Get("/audit/logs", deps.UserHandler.HandleAuditLogs)
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireSession)
			deps.Web.Routes(r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
