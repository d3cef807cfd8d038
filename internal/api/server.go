// Package api provides HTTP API functionality for the webmonitor system.
// This package implements a RESTful API using the Gin framework.
//
// Example usage:
//
//	server := api.NewServer(cfg.Server, engine)
//	err := server.Start()
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"webmonitor/internal/config"
	"webmonitor/internal/core"
	"webmonitor/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Server represents the HTTP API server.
type Server struct {
	config  config.ServerConfig
	engine  *core.Engine
	storage *storage.Storage
	router  *gin.Engine
	server  *http.Server
	streams *StreamHandler
}

// NewServer creates a new HTTP API server instance.
//
// Parameters:
//   - cfg: Server configuration containing address, timeout and CORS settings
//   - engine: Core monitoring engine instance
//
// Returns:
//   - *Server: Initialized server instance
func NewServer(cfg config.ServerConfig, engine *core.Engine) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:  cfg,
		engine:  engine,
		storage: engine.Storage(),
		router:  gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	server.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return server
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and begins listening for requests.
// It blocks until the server is shut down.
//
// Returns:
//   - error: Any error that occurred during server startup
func (s *Server) Start() error {
	log.Info().Str("addr", s.config.Addr).Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Serve is like Start but accepts connections on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	log.Info().Str("addr", l.Addr().String()).Msg("Starting HTTP server")

	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
//
// Parameters:
//   - ctx: Context for shutdown timeout
//
// Returns:
//   - error: Any error that occurred during shutdown
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	// Streams never finish on their own
	s.streams.Close()

	return s.server.Shutdown(ctx)
}

// setupMiddleware configures middleware for the Gin router.
func (s *Server) setupMiddleware() {
	// Request ID middleware (should be first)
	s.router.Use(RequestID())

	// Custom panic recovery middleware
	s.router.Use(PanicRecovery())

	s.router.Use(CORS(s.config.CORSOrigins))

	// Custom logger middleware
	s.router.Use(LoggerMiddleware())
}
