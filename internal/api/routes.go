// Package api provides the HTTP server for the orders batch service.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CodAressss/orders-batch-service/internal/api/middleware"
)

const (
	healthCheckTimeout = 2 * time.Second
	expectedURLParts   = 2

	serviceName    = "orders-batch-service"
	serviceVersion = "v1.0.0"
)

// Route represents an HTTP route configuration with a path and handler.
// Used for declarative route registration with middleware bypass support.
type Route struct {
	Path    string           // The URL pattern for this route (e.g., "GET /ping")
	Handler http.HandlerFunc // The HTTP handler function for this route
}

// setupRoutes sets up all HTTP routes for the API server.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Public endpoints: health probes and sign-in bypass bearer auth.
	s.registerPublicRoutes(
		mux,
		Route{"GET /ping", s.handlePing},     // K8s liveness probe
		Route{"GET /ready", s.handleReady},   // K8s readiness probe
		Route{"GET /health", s.handleHealth}, // Basic health check - status, uptime, version
		Route{"POST /api/v1/auth/sign-in", s.handleSignIn},
		Route{"/", s.handleNotFound}, // Catch-all handler for 404 responses
	)

	// Protected endpoints
	mux.HandleFunc("POST /api/v1/orders/load", s.handleLoadOrders)
	mux.HandleFunc("GET /api/v1/orders", s.handleListOrders)
	mux.HandleFunc("GET /api/v1/orders/{orderNumber}", s.handleGetOrder)
	mux.HandleFunc("GET /api/v1/batch-loads/{id}", s.handleGetBatchLoad)
}

// registerPublicRoutes registers HTTP routes that bypass authentication.
// This is a convenience method that:
//  1. Registers the route handler with the HTTP mux
//  2. Automatically registers the path as a public endpoint (bypasses auth middleware)
//
// Security Warning: Never register order or batch endpoints as public routes.
func (s *Server) registerPublicRoutes(mux *http.ServeMux, routes ...Route) {
	validHTTPMethods := map[string]bool{
		"GET":    true,
		"POST":   true,
		"PUT":    true,
		"PATCH":  true,
		"DELETE": true,
	}

	for _, route := range routes {
		mux.Handle(route.Path, route.Handler)

		// Strip method prefix for public endpoint bypass registration.
		// Go 1.22+ method-based routing uses "GET /path" format but
		// r.URL.Path is just "/path" (no method prefix).
		path := route.Path

		parts := strings.Fields(path)
		if len(parts) == expectedURLParts && validHTTPMethods[parts[0]] {
			path = strings.TrimSpace(parts[1])
		}

		if path == "" {
			s.logger.Warn("Malformed route path detected, ignoring route", slog.String("path", path))

			continue
		}

		middleware.RegisterPublicEndpoint(path)
	}
}

// handlePing responds to ping requests for basic server validation.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("pong")); err != nil {
		s.logger.Error("Failed to write ping response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

// handleReady responds to Kubernetes readiness probes with a storage health
// check.
//
// Response codes:
//   - 200 OK: The database is reachable and ready to accept traffic
//   - 503 Service Unavailable: The database is unhealthy or unreachable
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	// Without a configured backend, report ready (degraded mode).
	if s.health == nil {
		s.logger.Warn("Storage connection not configured - readiness check disabled",
			slog.String("correlation_id", correlationID),
		)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)

		if _, err := w.Write([]byte("ready")); err != nil {
			s.logger.Error("Failed to write ready response",
				slog.String("correlation_id", correlationID),
				slog.String("error", err.Error()),
			)
		}

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.health.HealthCheck(ctx); err != nil {
		s.logger.Error("Storage health check failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusServiceUnavailable)

		if _, writeErr := w.Write([]byte("storage unavailable")); writeErr != nil {
			s.logger.Error("Failed to write unavailable response",
				slog.String("correlation_id", correlationID),
				slog.String("error", writeErr.Error()),
			)
		}

		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("ready")); err != nil {
		s.logger.Error("Failed to write ready response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

// handleHealth returns detailed health status information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	var uptime string

	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	health := HealthStatus{
		Status:      "healthy",
		ServiceName: serviceName,
		Version:     serviceVersion,
		Uptime:      uptime,
	}

	data, err := json.Marshal(health)
	if err != nil {
		s.logger.Error("Failed to encode health response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode health response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write health response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

// handleNotFound returns a JSON 404 response for unknown endpoints.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, s.logger, NotFound("The requested resource was not found"))
}

// writeJSON marshals v and writes it with the given status code.
// Marshal failures degrade to a 500 error response.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// hasJSONContentType checks if Content-Type header starts with "application/json".
// This allows charset parameters (e.g., "application/json; charset=utf-8").
func hasJSONContentType(contentType string) bool {
	return strings.HasPrefix(strings.TrimSpace(contentType), "application/json")
}
