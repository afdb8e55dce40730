package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler, a Authenticator) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Public: clients probe this while offline
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(a))
			r.Get("/bootstrap", h.Bootstrap)
			r.Post("/sync", h.Sync)
			r.Get("/suggestions", h.Suggestions)
			r.Get("/snapshot", h.Snapshot)
		})
	})

	return r
}
