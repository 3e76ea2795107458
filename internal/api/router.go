// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ledgersync/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(ingestionHandler *handler.IngestionHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Ingestion API routes
	r.Get("/balance-snapshots/{externalID}", ingestionHandler.GetSnapshot)
	r.Route("/wallets/{walletID}", func(r chi.Router) {
		r.Post("/balance-syncs", ingestionHandler.SyncBalance)
		r.Post("/events", ingestionHandler.IngestEvent)
		r.Get("/events", ingestionHandler.ListEvents)
	})

	return r
}
