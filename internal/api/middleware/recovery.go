// Package middleware provides HTTP middleware components for the orders batch API.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery creates a middleware that recovers from panics and logs them.
// The client receives a generic 500 error; the panic value and stack trace
// go to the log only.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func(ctx context.Context) {
				if err := recover(); err != nil {
					correlationID := GetCorrelationID(ctx)

					logger.Error("HTTP request panic recovered",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("correlation_id", correlationID),
						slog.Any("panic", err),
						slog.String("stack_trace", string(debug.Stack())),
					)

					message := "An unexpected error occurred while processing the request"
					if writeErr := writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", message); writeErr != nil {
						logger.Error("failed to write error response",
							slog.Any("error", writeErr),
							slog.String("correlation_id", correlationID),
						)
					}
				}
			}(r.Context())

			next.ServeHTTP(w, r)
		})
	}
}
