package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-sculptor/internal/config"
	"github.com/kozaktomas/face-sculptor/internal/constants"
	"github.com/kozaktomas/face-sculptor/internal/logging"
	"github.com/kozaktomas/face-sculptor/internal/metrics"
	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/kozaktomas/face-sculptor/internal/session"
	"github.com/kozaktomas/face-sculptor/internal/web/handlers"
	"github.com/kozaktomas/face-sculptor/internal/web/middleware"
	"github.com/sirupsen/logrus"
)

// Server represents the web server
type Server struct {
	config     *config.Config
	catalog    *params.Catalog
	sessions   *session.Service
	metrics    *metrics.Metrics
	router     *chi.Mux
	httpServer *http.Server
	editors    *handlers.EditorManager
	log        *logrus.Entry
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, port int, host string, catalog *params.Catalog, sessions *session.Service, m *metrics.Metrics) *Server {
	r := chi.NewRouter()
	log := logging.For("web")

	s := &Server{
		config:   cfg,
		catalog:  catalog,
		sessions: sessions,
		metrics:  m,
		router:   r,
		editors:  handlers.NewEditorManager(catalog, cfg.Engine, m, logging.For("editor"), constants.EditorIdleTimeout),
		log:      log,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE mesh streams stay open
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")

	// Closing editors ends their SSE streams so Shutdown does not wait on them.
	s.editors.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Editors returns the editor manager.
func (s *Server) Editors() *handlers.EditorManager {
	return s.editors
}
