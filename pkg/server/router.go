// Package server assembles the HTTP router of the loyalty service.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/chris/loyalty-ledger/pkg/auth"
	"github.com/chris/loyalty-ledger/pkg/engine"
	"github.com/chris/loyalty-ledger/pkg/handlers"
	"github.com/chris/loyalty-ledger/pkg/handlers/accounts"
	"github.com/chris/loyalty-ledger/pkg/handlers/ledger"
	"github.com/chris/loyalty-ledger/pkg/handlers/operations"
	"github.com/chris/loyalty-ledger/pkg/handlers/rulesets"
	"github.com/chris/loyalty-ledger/pkg/metrics"
	"github.com/chris/loyalty-ledger/pkg/middleware"
	"github.com/chris/loyalty-ledger/pkg/query"
	"github.com/chris/loyalty-ledger/pkg/ruleset"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const requestTimeout = 30 * time.Second

// Deps are the services the router exposes.
type Deps struct {
	Engine         *engine.Engine
	Query          *query.Service
	Rulesets       *ruleset.Service
	Verifier       middleware.TokenVerifier
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	AllowedOrigins []string
	// Ready reports whether the storage backend can serve requests. Nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter wires every route with its middleware stack.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewStructuredLogger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(d.Metrics.Middleware)
	r.Use(chimw.Timeout(requestTimeout))
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", operations.IdempotencyKeyHeader},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", handlers.Health)
	r.Get("/readyz", handlers.Ready(func(r *http.Request) error {
		if d.Ready == nil {
			return nil
		}
		return d.Ready(r.Context())
	}))
	r.Handle("/metrics", d.Metrics.Handler())

	rulesetsHandler := rulesets.NewRulesetsHandler(d.Rulesets, d.Query)
	accountsHandler := accounts.NewAccountsHandler(d.Engine, d.Query)
	ledgerHandler := ledger.NewLedgerHandler(d.Query)
	operationsHandler := operations.NewOperationsHandler(d.Query, d.Engine)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(d.Verifier))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleAdmin))
			r.Post("/rulesets", rulesetsHandler.CreateRuleset)
			r.Get("/rulesets", rulesetsHandler.ListRulesets)
			r.Get("/rulesets/current", rulesetsHandler.GetCurrentRuleset)
			r.Post("/accounts", accountsHandler.CreateAccount)
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleClient))
			r.Get("/", ledgerHandler.GetProfile)
			r.Get("/balance", ledgerHandler.GetBalance)
			r.Get("/events", ledgerHandler.ListEvents)
		})

		r.Route("/cashier", func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleCashier))
			r.Get("/accounts/by-code/{publicCode}", accountsHandler.GetAccountByCode)
			r.Get("/accounts/by-code/{publicCode}/events", accountsHandler.ListAccountEvents)
			r.Post("/operations", operationsHandler.ExecuteOperation)
			r.Post("/earn", operationsHandler.Earn)
			r.Post("/spend", operationsHandler.Spend)
		})
	})

	return r
}
