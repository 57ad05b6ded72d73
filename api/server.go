/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the reporting frontend

SECURITY NOTE:
  No authentication middleware. Authentication and authorization are
  external collaborators, out of this core's scope.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/statement-engine/report"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/templates", func(r chi.Router) {
			r.Get("/{code}", h.GetTemplate)
			r.Put("/{code}", h.PutTemplate)
			r.Post("/{code}/publish", h.PublishTemplate)
		})

		r.Route("/statements", func(r chi.Router) {
			r.Get("/{code}/compute", h.ComputeStatement)
			r.Get("/{code}/budget-actual", h.ComputeBudgetActual)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Post("/", h.CreateReport)
			r.Post("/bulk-approve", h.BulkApprove)
			r.Get("/{id}", h.GetReport)
			r.Post("/{id}/submit", h.WorkflowAction(report.ActionSubmit))
			r.Post("/{id}/approve", h.WorkflowAction(report.ActionApprove))
			r.Post("/{id}/reject", h.WorkflowAction(report.ActionReject))
			r.Post("/{id}/request-changes", h.WorkflowAction(report.ActionRequestChanges))
			r.Post("/{id}/recall", h.WorkflowAction(report.ActionRecall))
		})
	})

	return r
}
