/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the bakery inventory and ledger engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire the engine over the store with the logging event sink
  4. Load recipes (file and database)
  5. Configure HTTP router and start the consistency sweeper
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: bakery.db)
                   Use ":memory:" for in-memory database
  -recipes         Optional JSON recipe file loaded at startup
  -sweep-interval  Consistency sweep interval (default: 15m, 0 disables)
  -lock-timeout    Per-record lock acquisition timeout (default: 3s)
  -log-level       logrus level (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper and close the database
  4. Exit

EXAMPLES:
  # Run with file database and a recipe file
  ./server -db="./data/bakery.db" -recipes="./recipes.json"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ovenworks/bakery-engine/api"
	"github.com/ovenworks/bakery-engine/core"
	"github.com/ovenworks/bakery-engine/recipes"
	"github.com/ovenworks/bakery-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "bakery.db", "SQLite database path")
	recipeFile := flag.String("recipes", "", "JSON recipe file loaded at startup")
	sweepInterval := flag.Duration("sweep-interval", 15*time.Minute, "consistency sweep interval (0 disables)")
	lockTimeout := flag.Duration("lock-timeout", core.DefaultLockTimeout, "per-record lock acquisition timeout")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	// Logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(level)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire the engine
	engine := core.NewEngine(store,
		core.WithEventSink(api.NewLogSink(logger)),
		core.WithLockTimeout(*lockTimeout),
	)

	// Load recipes
	book := recipes.NewStaticBook()
	if *recipeFile != "" {
		book, err = recipes.LoadFile(*recipeFile)
		if err != nil {
			logger.Fatalf("Failed to load recipe file: %v", err)
		}
		logger.WithField("file", *recipeFile).Info("recipes loaded from file")
	}

	// Initialize handler
	handler := api.NewHandler(engine, store, book)
	if err := handler.LoadRecipes(context.Background()); err != nil {
		logger.Warnf("Failed to load persisted recipes: %v", err)
	}

	// Background consistency sweeper
	sweeper := api.NewConsistencySweeper(engine, logger)
	if *sweepInterval > 0 {
		sweeper.Interval = *sweepInterval
	} else {
		sweeper.Enabled = false
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Create router
	router := api.NewRouter(handler)

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
		logger.Infof("Server starting on http://localhost:%d", *port)
		logger.Infof("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
