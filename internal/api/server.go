// Package api provides the HTTP status and control API for melcloudd.
//
// It exposes the synchronized device state, redacted account
// information, the state-change audit trail and a command endpoint, so
// dashboards and scripts can read and drive devices without speaking
// MQTT.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/skra72/melcloudd/internal/history"
	"github.com/skra72/melcloudd/internal/infrastructure/config"
	"github.com/skra72/melcloudd/internal/infrastructure/logging"
	"github.com/skra72/melcloudd/internal/sync"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// commandTimeout bounds a single cloud write triggered through the API.
const commandTimeout = 30 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	Logger       *logging.Logger
	Coordinators map[string]*sync.Coordinator

	// History is optional; the history endpoints return 503 when nil.
	History *history.Recorder

	Version string
}

// Server is the HTTP API server for melcloudd.
//
// It manages the HTTP listener, routes and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	coords  map[string]*sync.Coordinator
	history *history.Recorder
	version string
	server  *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, coordinators)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if len(deps.Coordinators) == 0 {
		return nil, fmt.Errorf("at least one account coordinator is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		coords:  deps.Coordinators,
		history: deps.History,
		version: deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; stop it with Close().
//
// Returns:
//   - error: Currently always nil; listen failures are logged
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// Handler returns the configured router without starting a listener.
// Used by tests to drive the server through httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// coordinator resolves an account name to its coordinator.
func (s *Server) coordinator(account string) (*sync.Coordinator, bool) {
	c, ok := s.coords[account]
	return c, ok
}
