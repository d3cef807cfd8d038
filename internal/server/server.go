// Package server provides the main server orchestration for the webmonitor backend.
//
// This package coordinates the startup and shutdown of all core components:
//   - Storage initialization and admin seeding
//   - Monitoring engine startup
//   - HTTP API server management
//   - Graceful shutdown handling
//
// The server follows a structured lifecycle:
//  1. Storage initialization
//  2. Core engine startup
//  3. HTTP API server launch
//  4. Signal handling and graceful shutdown
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"webmonitor/internal/api"
	"webmonitor/internal/config"
	"webmonitor/internal/core"
	"webmonitor/internal/events"
	"webmonitor/internal/storage"

	"github.com/rs/zerolog/log"
)

// ShutdownTimeout bounds the graceful shutdown sequence.
const ShutdownTimeout = 30 * time.Second

// Server represents the main webmonitor server orchestrator.
//
// It manages the lifecycle of all core components including:
//   - Database storage
//   - Monitoring engine
//   - HTTP API server
type Server struct {
	// cfg holds the application configuration
	cfg *config.Config

	// listener overrides cfg.Server.Addr when set
	listener net.Listener

	// ready is closed once the API is accepting connections
	ready chan struct{}
}

// New creates a new server instance with the provided configuration.
//
// The server is not started until Start() is called.
func New(cfg *config.Config) *Server {
	return &Server{
		cfg:   cfg,
		ready: make(chan struct{}),
	}
}

// WithListener makes the server accept connections on l instead of
// listening on the configured address.
func (s *Server) WithListener(l net.Listener) *Server {
	s.listener = l
	return s
}

// Ready is closed once all components are started.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Start initializes and starts all server components in the correct order.
//
// This method blocks until:
//   - A fatal error occurs during startup
//   - The provided context is cancelled (shutdown signal)
//   - The HTTP server encounters an unrecoverable error
//
// Returns an error if any component fails to start or stop gracefully.
func (s *Server) Start(ctx context.Context) error {
	// Phase 1: Initialize storage
	store, err := storage.New(s.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	if err := store.Repositories().Admins.Ensure(ctx, s.cfg.Auth.Username, s.cfg.Auth.Password); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}

	// Phase 2: Initialize core monitoring engine
	engine, err := core.NewEngine(s.cfg, store, events.NewHub(64))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer engine.Stop()

	// Phase 3: Initialize HTTP API server
	apiServer := api.NewServer(s.cfg.Server, engine)

	serverErrors := make(chan error, 1)
	go func() {
		if s.listener != nil {
			serverErrors <- apiServer.Serve(s.listener)
			return
		}
		serverErrors <- apiServer.Start()
	}()

	close(s.ready)

	// Phase 4: Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received, starting graceful shutdown")
	}

	// Phase 5: Graceful shutdown sequence
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server first to stop accepting new requests
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	log.Info().Msg("Server stopped gracefully")
	return nil
}
