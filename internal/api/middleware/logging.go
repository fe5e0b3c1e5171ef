// Package middleware provides HTTP middleware components for the orders batch API.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestLogger logs one line per completed request. The correlation ID is
// included so an upload can be traced from the access log into the batch
// pipeline's own log entries.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.Info("HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int64("response_bytes", rec.bytes),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("correlation_id", GetCorrelationID(r.Context())),
			)
		})
	}
}

// statusRecorder captures the status code and body size for the access log.
// Handlers that never call WriteHeader implicitly respond 200.
type statusRecorder struct {
	http.ResponseWriter

	status int
	bytes  int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(p []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(p)
	rec.bytes += int64(n)

	return n, err
}
