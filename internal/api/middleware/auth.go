// Package middleware provides HTTP middleware components for the orders batch API.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/CodAressss/orders-batch-service/internal/auth"
)

// TokenVerifier validates bearer tokens presented by operators.
// *auth.TokenIssuer satisfies this interface; tests substitute fakes.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Operator identifies the authenticated caller of a request.
type Operator struct {
	Username string
	Role     string
}

// operatorKey is the context key for the authenticated operator.
type operatorKey struct{}

// GetOperator extracts the authenticated operator from the request context.
// Returns false for unauthenticated requests (public endpoints).
func GetOperator(ctx context.Context) (*Operator, bool) {
	operator, ok := ctx.Value(operatorKey{}).(*Operator)

	return operator, ok
}

// Public endpoint registry. Paths registered here bypass bearer
// authentication (health probes, sign-in).
var (
	publicEndpointsMu sync.RWMutex
	publicEndpoints   = make(map[string]struct{})
)

// RegisterPublicEndpoint marks a path as exempt from bearer authentication.
// Must be called during server setup, before requests are served.
func RegisterPublicEndpoint(path string) {
	publicEndpointsMu.Lock()
	defer publicEndpointsMu.Unlock()

	publicEndpoints[path] = struct{}{}
}

// isPublicEndpoint checks whether a path bypasses authentication.
func isPublicEndpoint(path string) bool {
	publicEndpointsMu.RLock()
	defer publicEndpointsMu.RUnlock()

	_, ok := publicEndpoints[path]

	return ok
}

// BearerAuth creates a middleware that authenticates requests with a JWT
// bearer token. Public endpoints registered via RegisterPublicEndpoint are
// passed through unauthenticated; every other request must carry a valid
// Authorization: Bearer header or receives 401.
//
// On success the operator identity is stored in the request context and can
// be retrieved with GetOperator.
func BearerAuth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)

				return
			}

			correlationID := GetCorrelationID(r.Context())

			token, err := extractBearerToken(r)
			if err != nil {
				logger.Warn("request rejected: missing or malformed bearer token",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("correlation_id", correlationID),
					slog.String("reason", err.Error()),
				)

				writeUnauthorized(w, r, logger, correlationID)

				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("request rejected: invalid bearer token",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("correlation_id", correlationID),
				)

				writeUnauthorized(w, r, logger, correlationID)

				return
			}

			operator := &Operator{
				Username: claims.Subject,
				Role:     claims.Role,
			}

			ctx := context.WithValue(r.Context(), operatorKey{}, operator)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authError describes why a bearer token could not be extracted.
type authError struct {
	reason string
}

func (e *authError) Error() string {
	return e.reason
}

// extractBearerToken pulls the token out of the Authorization header.
// Header values containing newlines are rejected outright to prevent
// header injection through logged values.
func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", &authError{reason: "missing Authorization header"}
	}

	if strings.ContainsAny(header, "\r\n") {
		return "", &authError{reason: "Authorization header contains line breaks"}
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", &authError{reason: "Authorization header is not a Bearer token"}
	}

	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", &authError{reason: "empty bearer token"}
	}

	return token, nil
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, correlationID string) {
	message := "Authentication required. Provide a valid bearer token."

	if err := writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", message); err != nil {
		logger.Error("failed to write error response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		http.Error(w, message, http.StatusUnauthorized)
	}
}
