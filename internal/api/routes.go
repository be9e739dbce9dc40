package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/cardata-bridge/cdb/internal/auth"
)

const apiV1 = "/api/v1"

// RegisterRoutes registers all v1 endpoints. The health endpoint is
// always open; everything else goes through auth when configured.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(apiV1+"/health", s.handleHealth)

	if s.authMW == nil {
		mux.HandleFunc(apiV1+"/vehicles", s.handleVehicles)
		mux.HandleFunc(apiV1+"/vehicles/", s.handleVehicleEndpoints)
		mux.HandleFunc(apiV1+"/telemetry", s.handleTelemetry)
		mux.HandleFunc(apiV1+"/ws", s.gateway.handleWebSocket)
		return
	}

	mux.HandleFunc(apiV1+"/vehicles", s.authMW.RequireAuth(s.authMW.RequireScope(auth.ScopeRead)(s.handleVehicles)))
	mux.HandleFunc(apiV1+"/vehicles/", s.authMW.RequireAuth(s.authMW.RequireScope(auth.ScopeRead)(s.handleVehicleEndpoints)))
	mux.HandleFunc(apiV1+"/telemetry", s.authMW.RequireAuth(s.authMW.RequireScope(auth.ScopeTelemetry)(s.handleTelemetry)))
	mux.HandleFunc(apiV1+"/ws", s.authMW.RequireAuth(s.authMW.RequireScope(auth.ScopeTelemetry)(s.gateway.handleWebSocket)))
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
		return
	}
	WriteSuccess(w, map[string]any{
		"status":   "ok",
		"uptime":   time.Since(s.startTime).Round(time.Second).String(),
		"vehicles": len(s.registry.List()),
	})
}

// handleVehicles handles GET /vehicles.
func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
		return
	}
	items := s.registry.List()
	WriteSuccess(w, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// handleVehicleEndpoints routes /vehicles/{vin}/... paths.
func (s *Server) handleVehicleEndpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
		return
	}

	vin, rest := splitVehiclePath(r.URL.Path)
	if vin == "" {
		WriteFromError(w, ErrBadRequest)
		return
	}

	switch rest {
	case "location":
		s.handleVehicleLocation(w, vin)
	default:
		WriteFromError(w, ErrNotFound)
	}
}

// handleVehicleLocation serves one tracker snapshot. A tracker without
// a usable position reports UNAVAILABLE.
func (s *Server) handleVehicleLocation(w http.ResponseWriter, vin string) {
	snap, ok := s.registry.Get(vin)
	if !ok {
		WriteFromError(w, ErrNotFound)
		return
	}
	if !snap.Available {
		WriteFromError(w, ErrUnavailable)
		return
	}
	WriteSuccess(w, snap)
}

// handleTelemetry handles GET /telemetry (SSE).
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
		return
	}
	if err := s.hub.Subscribe(r.Context(), w, r); err != nil {
		WriteFromError(w, err)
	}
}

// splitVehiclePath extracts the VIN and trailing segment from
// /api/v1/vehicles/{vin}/{rest}.
func splitVehiclePath(path string) (vin, rest string) {
	trimmed := strings.TrimPrefix(path, apiV1+"/vehicles/")
	parts := strings.SplitN(trimmed, "/", 2)
	vin = parts[0]
	if len(parts) == 2 {
		rest = parts[1]
	}
	return vin, rest
}
