// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/skushagra-sst/visit-counter/internal/config"
	"github.com/skushagra-sst/visit-counter/internal/handlers"
	"github.com/skushagra-sst/visit-counter/internal/metrics"
	"github.com/skushagra-sst/visit-counter/internal/middleware"
	"github.com/skushagra-sst/visit-counter/pkg/logger"
)

// Server represents the HTTP server.
type Server struct {
	cfg            *config.Config
	log            *logger.Logger
	httpServer     *http.Server
	healthHandler  *handlers.HealthHandler
	counterHandler *handlers.CounterHandler
	listener       net.Listener
	running        bool
	mu             sync.RWMutex
}

// New creates a new Server exposing the visit counter engine.
func New(cfg *config.Config, engine handlers.VisitCounter, log *logger.Logger) *Server {
	s := &Server{
		cfg:            cfg,
		log:            log,
		healthHandler:  handlers.NewHealthHandler(),
		counterHandler: handlers.NewCounterHandler(engine),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	chain := middleware.New(
		middleware.Metrics(),
		middleware.RequestID(),
	)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      chain.Then(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// registerRoutes sets up the HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.healthHandler.Health)
	mux.HandleFunc("GET /ready", s.healthHandler.Ready)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/counter/visit/{page_id}", s.counterHandler.RecordVisit)
	mux.HandleFunc("GET /api/v1/counter/visits/{page_id}", s.counterHandler.GetVisits)
}

// HealthHandler returns the health handler for registering checks.
func (s *Server) HealthHandler() *handlers.HealthHandler {
	return s.healthHandler
}

// Handler returns the server's root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	// Create the listener first so the actual address is known when the
	// configured port is 0.
	listener, err := net.Listen("tcp", s.cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.log.Info("server starting", "address", listener.Addr().String())

	err = s.httpServer.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Addr returns the listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")
	s.healthHandler.SetReady(false)

	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil {
		s.log.Error("shutdown error", "error", err.Error())
		return err
	}

	s.log.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
