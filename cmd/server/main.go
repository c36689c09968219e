/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the LaVaca group savings server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, environment, and command-line flags
  2. Initialize SQLite store
  3. Wire the pool service with its collaborators
  4. Configure HTTP router and deadline sweeper
  5. Start server with graceful shutdown

CONFIGURATION:
  --address / RUN_ADDRESS          Listen address (default: localhost:8080)
  --database / DATABASE_PATH       SQLite path, ":memory:" for in-memory
  --log-level / LOG_LEVEL          debug, info, warn, error
  --sweep-interval / SWEEP_INTERVAL Vote deadline sweep interval
  --webhook / WEBHOOK_URL          Notification webhook (empty disables)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper and close the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server --database="./data/lavaca.db"

  # Run with in-memory database
  ./server --database=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/sweeper.go: Deadline sweeper
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lavaca/ledger-engine/api"
	"github.com/lavaca/ledger-engine/logger"
	"github.com/lavaca/ledger-engine/notify"
	"github.com/lavaca/ledger-engine/store/sqlite"
	"github.com/lavaca/ledger-engine/vaca"
)

func main() {
	cfg := NewConfig()
	if err := cfg.LoadDotEnv(os.Getwd); err != nil {
		logger.NewLogger(logger.LevelError).Error("failed to load .env", "err", err)
		os.Exit(1)
	}
	cfg.LoadEnv(os.Getenv)
	if err := cfg.ParseFlags(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	log := logger.NewLogger(cfg.LogLevel)

	// Initialize store
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Error("failed to initialize database", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	// Collaborators
	var notifier vaca.Notifier = vaca.NopNotifier{}
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.WebhookURL, log)
	}

	service := vaca.NewPoolService(store, vaca.TrustingIdentity{}, notifier, log)

	// HTTP layer
	handler := api.NewHandler(service, log)
	router := api.NewRouter(handler)

	sweeper := api.NewDeadlineSweeper(service, log)
	sweeper.CheckInterval = cfg.SweepInterval
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting", "addr", cfg.ListenAddr, "db", cfg.DatabasePath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "err", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
