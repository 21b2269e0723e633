/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the finance ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, FINLEDGER_* environment, flags)
  2. Build the zerolog logger
  3. Initialize SQLite store
  4. Start the notification dispatcher
  5. Create the ledger engine, services and API handler
  6. Start the recurring and budget alert schedulers
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  See config/config.go. Flags override environment variables.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop schedulers
  4. Drain the notification queue
  5. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/finance.db"

  # Run with in-memory database and JSON logs
  ./server -db=":memory:" -log-format=json

  # Log budget step failures instead of rolling back
  FINLEDGER_STRICT=false ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration sources
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/finance-ledger/api"
	"github.com/warp/finance-ledger/config"
	"github.com/warp/finance-ledger/ledger"
	"github.com/warp/finance-ledger/logger"
	"github.com/warp/finance-ledger/notify"
	"github.com/warp/finance-ledger/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	// Notifications
	dispatcher := notify.NewDispatcher(
		notify.LogSender{Log: log.With().Str("component", "notify").Logger()},
		cfg.NotifyBuffer,
		log,
	)
	defer dispatcher.Close()

	// Ledger
	engine := ledger.NewEngine(cfg.Strict, log.With().Str("component", "engine").Logger())
	handler := api.NewHandler(store, engine, dispatcher, log)

	// Schedulers
	recurring := api.NewRecurringScheduler(handler.Transactions, cfg.RecurringInterval, log)
	alerts := api.NewBudgetAlertScheduler(handler.Budgets, dispatcher, cfg.BudgetAlertInterval, log)
	recurring.Start()
	alerts.Start()
	defer alerts.Stop()
	defer recurring.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, log, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("db", cfg.DBPath).
			Bool("strict", cfg.Strict).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server")
	case err := <-serverErr:
		log.Error().Err(err).Msg("Server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Int64("notifications_dropped", dispatcher.Dropped()).Msg("Server stopped")
}
