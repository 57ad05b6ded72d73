/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the statement engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire builder, report service, and HTTP handler
  4. Configure router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -db          SQLite database path (default: statements.db)
               Use ":memory:" for an in-memory database
  -validation  Submit validation mode: strict (default) or lenient

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/statement-engine/api"
	"github.com/warp/statement-engine/report"
	"github.com/warp/statement-engine/statement"
	"github.com/warp/statement-engine/store/sqlite"
)

// logNotifier is the default Notifier: delivery is an external concern,
// so out of the box we just log what would have been sent.
type logNotifier struct{}

func (logNotifier) Notify(reportID string, action report.Action, actorID string, recipients []string) error {
	log.Printf("notify: report=%s action=%s actor=%s recipients=%v", reportID, action, actorID, recipients)
	return nil
}

// passValidator accepts every submit. Deployments plug in their own
// Validator implementation.
type passValidator struct{}

func (passValidator) Validate(ctx context.Context, reportID string) (*report.ValidationResult, error) {
	return &report.ValidationResult{IsValid: true}, nil
}

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "statements.db", "SQLite database path")
	validationMode := flag.String("validation", "strict", "submit validation mode: strict or lenient")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	builder := &statement.Builder{Templates: store, Amounts: store}

	mode := report.ModeStrict
	if *validationMode == "lenient" {
		mode = report.ModeLenient
	}
	service := &report.Service{
		Reports:   store,
		Builder:   builder,
		Validator: passValidator{},
		Notifier:  logNotifier{},
		Mode:      mode,
	}

	handler := api.NewHandler(store, service, builder)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
