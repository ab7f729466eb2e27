package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-sculptor/internal/constants"
	"github.com/kozaktomas/face-sculptor/internal/editor"
	"github.com/kozaktomas/face-sculptor/internal/logging"
	"github.com/kozaktomas/face-sculptor/internal/web/handlers"
	"github.com/kozaktomas/face-sculptor/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	categoriesHandler := handlers.NewCategoriesHandler(s.catalog)
	editorsHandler := handlers.NewEditorsHandler(s.editors, s.sessions, s.metrics, logging.For("editors"), s.config.ReferenceImage.MaxSize)
	sessionsHandler := handlers.NewSessionsHandler(s.sessions, editor.NewRenderer(s.catalog, s.config.Engine, s.metrics), s.metrics, logging.For("sessions"))

	// Health check and metrics (no owner required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", s.metrics.Handler())

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", categoriesHandler.List)

		// Everything else acts on behalf of an owner
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOwner())

			// Editors
			r.Post("/editors", editorsHandler.Create)
			r.Get("/editors/{id}", editorsHandler.Get)
			r.Delete("/editors/{id}", editorsHandler.Delete)
			r.Post("/editors/{id}/landmarks", editorsHandler.Landmarks)
			r.Put("/editors/{id}/category", editorsHandler.SelectCategory)
			r.Put("/editors/{id}/parameters/{param}", editorsHandler.SetParameter)
			r.Post("/editors/{id}/reset", editorsHandler.Reset)
			r.Get("/editors/{id}/snapshot", editorsHandler.GetSnapshot)
			r.Put("/editors/{id}/snapshot", editorsHandler.PutSnapshot)
			r.Get("/editors/{id}/mesh", editorsHandler.Mesh)
			r.Get("/editors/{id}/events", editorsHandler.Events)
			r.Post("/editors/{id}/sessions", editorsHandler.Save)
			r.Post("/editors/{id}/load", editorsHandler.Load)

			// Sessions
			r.Get("/sessions", sessionsHandler.List)
			r.Get("/sessions/{id}", sessionsHandler.Get)
			r.Delete("/sessions/{id}", sessionsHandler.Delete)
			r.Get("/sessions/{id}/reference-image", sessionsHandler.ReferenceImage)
			r.With(chiMiddleware.Timeout(constants.CompareTimeout)).Get("/sessions/{id}/compare/{other}", sessionsHandler.Compare)
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "not found"}`))
	})
}
