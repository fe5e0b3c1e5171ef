// Package api provides the HTTP server for the orders batch service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/CodAressss/orders-batch-service/internal/api/middleware"
	"github.com/CodAressss/orders-batch-service/internal/ingest"
)

// ErrorResponse is the JSON error envelope returned by every failing endpoint.
//
// Code is a stable machine-readable identifier (FIELD_REQUIRED,
// ALREADY_PROCESSED, ...); Message is for humans and may change wording
// between releases.
type ErrorResponse struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Path      string `json:"path"`
}

// NewErrorResponse creates an error response for the given status and code.
// Timestamp and Path are filled in by WriteErrorResponse.
func NewErrorResponse(status int, code ingest.ErrorCode, message string) *ErrorResponse {
	return &ErrorResponse{
		Status:  status,
		Error:   http.StatusText(status),
		Code:    string(code),
		Message: message,
	}
}

// WriteErrorResponse writes a JSON error response, stamping timestamp and
// request path.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, errResp *ErrorResponse) {
	correlationID := middleware.GetCorrelationID(r.Context())

	// Server-local time; the RFC 3339 offset keeps it unambiguous.
	errResp.Timestamp = time.Now().Format(time.RFC3339)
	errResp.Path = r.URL.Path

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errResp.Status)

	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		logger.Error("Failed to encode error response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
			slog.Any("encode_error", err),
			slog.Int("status", errResp.Status),
		)

		// Fallback to basic error response
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Common error constructors for frequently used errors.

// BadRequest creates a 400 Bad Request response with the given code.
func BadRequest(code ingest.ErrorCode, message string) *ErrorResponse {
	return NewErrorResponse(http.StatusBadRequest, code, message)
}

// Unauthorized creates a 401 Unauthorized response.
func Unauthorized(message string) *ErrorResponse {
	return NewErrorResponse(http.StatusUnauthorized, ingest.CodeUnauthorized, message)
}

// NotFound creates a 404 Not Found response.
func NotFound(message string) *ErrorResponse {
	return NewErrorResponse(http.StatusNotFound, "NOT_FOUND", message)
}

// Conflict creates a 409 Conflict response with the given code.
func Conflict(code ingest.ErrorCode, message string) *ErrorResponse {
	return NewErrorResponse(http.StatusConflict, code, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ErrorResponse {
	return NewErrorResponse(http.StatusInternalServerError, ingest.CodeInternalError, message)
}
