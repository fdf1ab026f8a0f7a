package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	apiMiddleware "github.com/phrazzld/triage/internal/api/middleware"
)

// NewRouter registers the API routes. A non-nil metrics handler is served
// at /metrics.
func NewRouter(h *Handler, metrics http.Handler, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(log))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/input", h.ProcessInput)

		r.Get("/tasks/backlog", h.Backlog)
		r.Get("/tasks/{id}/action", h.ActionPrompt)
		r.Post("/tasks/{id}/decision", h.Decide)
	})

	r.Get("/health", h.Health)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	return r
}
