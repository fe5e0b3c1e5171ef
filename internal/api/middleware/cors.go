// Package middleware provides HTTP middleware components for the orders batch API.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig is satisfied by the api package's server configuration,
// avoiding a dependency cycle between the two packages.
type CORSConfig interface {
	GetAllowedOrigins() []string
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
	GetMaxAge() int
}

// CORS answers preflight requests and stamps the Access-Control response
// headers on everything else. An origin outside the allowed list simply gets
// no Allow-Origin header; the browser enforces the rejection.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(config.GetAllowedMethods(), ", ")
	headers := strings.Join(config.GetAllowedHeaders(), ", ")
	maxAge := strconv.Itoa(config.GetMaxAge())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := resolveOrigin(r, config.GetAllowedOrigins()); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}

			if methods != "" {
				w.Header().Set("Access-Control-Allow-Methods", methods)
			}

			if headers != "" {
				w.Header().Set("Access-Control-Allow-Headers", headers)
			}

			if config.GetMaxAge() > 0 {
				w.Header().Set("Access-Control-Max-Age", maxAge)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// resolveOrigin returns the Allow-Origin value for the request, or empty when
// the request origin is not allowed.
func resolveOrigin(r *http.Request, allowed []string) string {
	if len(allowed) == 1 && allowed[0] == "*" {
		return "*"
	}

	origin := r.Header.Get("Origin")
	for _, candidate := range allowed {
		if origin == candidate {
			return origin
		}
	}

	return ""
}
