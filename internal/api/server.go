package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clearledger/reconcile-backend/internal/api/handlers"
	"github.com/clearledger/reconcile-backend/internal/api/middleware"
	"github.com/clearledger/reconcile-backend/internal/domain/reconcile"
	"github.com/clearledger/reconcile-backend/internal/infrastructure/storage"
	"github.com/clearledger/reconcile-backend/internal/normalize"
	"github.com/clearledger/reconcile-backend/internal/progress"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	normalizer *normalize.Normalizer
	engine     *reconcile.Engine
	hub        *progress.Hub
}

// NewServer creates a new API server.
// If hub is nil, the websocket endpoint is not registered and runs emit no
// progress events.
func NewServer(cfg Config, repo storage.Repository, normalizer *normalize.Normalizer, engine *reconcile.Engine, hub *progress.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:     cfg,
		router:     chi.NewRouter(),
		logger:     logger,
		repo:       repo,
		normalizer: normalizer,
		engine:     engine,
		hub:        hub,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	// CORS
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}
	s.router.Use(middleware.CORS(corsConfig))

	// Request logging
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Bank statements
		statementsHandler := handlers.NewStatementsHandler(s.repo, s.normalizer)
		r.Post("/statements/upload", statementsHandler.Upload)
		r.Get("/statements", statementsHandler.List)

		// Internal ledger
		ledgerHandler := handlers.NewLedgerHandler(s.repo, s.normalizer)
		r.Post("/ledger/upload", ledgerHandler.Upload)

		// Reconciliation
		var sink progress.Sink
		if s.hub != nil {
			sink = s.hub
		}
		reconcileHandler := handlers.NewReconcileHandler(s.repo, s.engine, sink)
		r.Post("/reconcile/run", reconcileHandler.Run)
		r.Get("/reconcile/stats", reconcileHandler.Stats)
		r.Get("/reconcile/activity", reconcileHandler.Activity)
		r.Delete("/reconcile/clear", reconcileHandler.Clear)
	})

	// Progress stream
	if s.hub != nil {
		wsHandler := handlers.NewWSHandler(s.hub, s.logger)
		s.router.Get("/ws", wsHandler.ServeHTTP)
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
