package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cardata-bridge/cdb/internal/auth"
	"github.com/cardata-bridge/cdb/internal/config"
)

// Server is the northbound HTTP API server.
type Server struct {
	httpServer *http.Server
	hub        TelemetryPort
	registry   RegistryPort
	authMW     *auth.Middleware
	gateway    *wsGateway
	startTime  time.Time
	netCfg     config.NetworkConfig
}

// NewServer creates the API server. authMW may be nil to disable
// authentication.
func NewServer(hub TelemetryPort, registry RegistryPort, authMW *auth.Middleware, netCfg config.NetworkConfig) *Server {
	return &Server{
		hub:       hub,
		registry:  registry,
		authMW:    authMW,
		gateway:   newWSGateway(registry),
		startTime: time.Now(),
		netCfg:    netCfg,
	}
}

// Start runs the HTTP server until Stop or failure.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         s.netCfg.Addr,
		Handler:      mux,
		ReadTimeout:  s.netCfg.ReadTimeout(),
		WriteTimeout: s.netCfg.WriteTimeout(),
		IdleTimeout:  s.netCfg.IdleTimeout(),
	}

	s.gateway.start()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.gateway.stop()

	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
