/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request for tracing
  2. RequestLogger:  zerolog request line + request-scoped logger
  3. Recovery:       Panic recovery (500 instead of crash)
  4. CORS:           Cross-origin requests for the mobile / web client

ROUTE GROUPS:
  /healthz                              Liveness
  /api/users/{userID}/accounts/*        Bank sub-accounts
  /api/users/{userID}/transactions/*    Transactions (drive the ledger)
  /api/users/{userID}/balances/*        Monthly running balances
  /api/users/{userID}/budgets/*         Budgets
  /api/scenarios/*                      Demo scenarios
  /api/recurring/run                    Manual recurring pass
  /api/reset                            Database reset (dev only)

SECURITY NOTE:
  No authentication middleware. The user id in the path is trusted.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, log zerolog.Logger, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(Recovery(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", h.GetAccountBook)
				r.Post("/", h.CreateAccount)
				r.Get("/{accountID}", h.GetAccount)
				r.Put("/{accountID}", h.UpdateAccount)
				r.Delete("/{accountID}", h.DeleteAccount)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", h.ListTransactions)
				r.Post("/", h.CreateTransaction)
				r.Get("/{txID}", h.GetTransaction)
				r.Put("/{txID}", h.UpdateTransaction)
				r.Delete("/{txID}", h.DeleteTransaction)
			})

			r.Route("/balances", func(r chi.Router) {
				r.Get("/", h.GetBalanceHistory)
				r.Get("/{month}", h.GetMonthlyBalance)
			})

			r.Route("/budgets", func(r chi.Router) {
				r.Get("/", h.ListBudgets)
				r.Post("/", h.CreateBudget)
				r.Get("/{budgetID}", h.GetBudget)
				r.Put("/{budgetID}", h.UpdateBudget)
				r.Delete("/{budgetID}", h.DeleteBudget)
			})
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Post("/recurring/run", h.RunRecurring)
		r.Post("/reset", h.ResetDatabase)
	})

	return r
}
