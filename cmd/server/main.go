/*
main.go - Application entry point

PURPOSE:
  Starts the ride engine HTTP server. Handles configuration, reference-data
  seeding, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Open the SQL store (sqlite3 or postgres)
  3. Seed reference data (SEED_FILE or the built-in CAO seed)
  4. Create the payroll service and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS (override environment):
  -port    HTTP server port
  -driver  Database driver: sqlite3 or postgres
  -db      SQLite path or postgres DSN. Use ":memory:" for a throwaway store
  -seed    YAML reference-data seed file

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/rides.db"
  ./server -db=":memory:" -port=3000
  DB_DRIVER=postgres DATABASE_URL=postgres://... ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/ride-engine/api"
	"github.com/warp/ride-engine/config"
	"github.com/warp/ride-engine/payroll"
	"github.com/warp/ride-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	driver := flag.String("driver", cfg.DBDriver, "Database driver (sqlite3|postgres)")
	dsn := flag.String("db", cfg.DatabaseURL, "SQLite database path or postgres DSN")
	seedFile := flag.String("seed", cfg.SeedFile, "YAML reference-data seed")
	flag.Parse()

	// Initialize store
	store, err := sqlite.Open(*driver, *dsn)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Seed reference data
	seed, err := config.LoadSeed(*seedFile)
	if err != nil {
		log.Fatalf("Failed to load seed: %v", err)
	}
	if err := seed.Apply(context.Background(), store); err != nil {
		log.Fatalf("Failed to apply seed: %v", err)
	}
	log.Printf("[seed] %d rate rows, %d hours codes, %d holidays", len(seed.RateRows), len(seed.HoursCodes), len(seed.Holidays))

	// Initialize service and handler
	svc := payroll.NewService(store, payroll.Config{
		DefaultHoursCode: cfg.DefaultHoursCode,
		Holidays:         seed.Holidays,
	})
	svc.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	svc.OnRideChanged = func(ctx context.Context, change payroll.RideChange) {
		if change.Invalidated {
			log.Printf("[approvals] driver %s week %s invalidated by ride %s", change.DriverID, change.Week, change.RideID)
		}
	}

	handler := api.NewHandler(svc)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("[server] listening on http://localhost:%d (%s)", *port, *driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[server] shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("[server] stopped")
}
