package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handlerFunc is the signature of every endpoint. A returned error is
// normalised into the failure envelope by handle.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts a handlerFunc to http.HandlerFunc.
func (s *Server) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.writeError(w, r, err)
		}
	}
}

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Unknown paths and known paths with the wrong method look the same.
	notFound := s.handle(func(_ http.ResponseWriter, r *http.Request) error {
		return errNotFound(fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.RequestURI()))
	})
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/health", s.handleHealth)
	if s.metricsHandler != nil {
		r.Handle(s.metricsPath, s.metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handle(s.handleLogin))
		if s.registration {
			r.Post("/auth/register", s.handle(s.handleRegister))
		}

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handle(s.handleMe))

			r.Route("/items", func(r chi.Router) {
				r.Get("/", s.handle(s.handleListItems))
				r.Post("/", s.handle(s.handleCreateItem))

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handle(s.handleGetItem))
					r.Put("/", s.handle(s.handleUpdateItem))
					r.Delete("/", s.handle(s.handleDeleteItem))
				})
			})

			if s.auditLogs != nil {
				r.Get("/audit", s.handle(s.handleListAuditLogs))
			}

			if s.hub != nil {
				r.Get("/events", s.handle(s.handleEventStream))
			}
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
