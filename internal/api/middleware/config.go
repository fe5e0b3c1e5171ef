// Package middleware provides HTTP middleware components for the orders batch API.
package middleware

import (
	"time"

	"github.com/CodAressss/orders-batch-service/internal/config"
)

// Config holds rate limiter configuration.
//
// Rate limits specify requests per second (RPS) for three tiers:
//   - Global: Applied to all requests
//   - Per-operator: Applied to authenticated requests
//   - Unauthenticated: Applied to requests without an operator identity
//
// Burst capacity allows temporary bursts above sustained rate.
// If burst fields are 0, they are computed automatically as 2 × rate.
type Config struct {
	// Rate limits (requests per second)
	GlobalRPS   int // Default: 100
	OperatorRPS int // Default: 50
	UnAuthRPS   int // Default: 10

	// Optional burst capacity overrides (0 = compute automatically as 2 × rate)
	GlobalBurst   int
	OperatorBurst int
	UnAuthBurst   int

	// Memory cleanup configuration
	CleanupInterval time.Duration // Default: 5 minutes
	IdleTimeout     time.Duration // Default: 1 hour
	MaxOperators    int           // Default: 10,000
}

// LoadConfig loads middleware config from environment variables with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		GlobalRPS:   config.GetEnvInt("ORDERS_GLOBAL_RPS", defaultGlobalRPS),
		OperatorRPS: config.GetEnvInt("ORDERS_OPERATOR_RPS", defaultOperatorRPS),
		UnAuthRPS:   config.GetEnvInt("ORDERS_UNAUTH_RPS", defaultUnAuthRPS),

		// Burst overrides (0 = auto-compute)
		GlobalBurst:   config.GetEnvInt("ORDERS_GLOBAL_BURST", 0),
		OperatorBurst: config.GetEnvInt("ORDERS_OPERATOR_BURST", 0),
		UnAuthBurst:   config.GetEnvInt("ORDERS_UNAUTH_BURST", 0),

		// Cleanup configuration
		CleanupInterval: config.GetEnvDuration(
			"ORDERS_RATE_LIMIT_CLEANUP_INTERVAL", rateLimiterCleanupInterval,
		),
		IdleTimeout:  config.GetEnvDuration("ORDERS_RATE_LIMIT_IDLE_TIMEOUT", rateLimiterIdleTimeout),
		MaxOperators: config.GetEnvInt("ORDERS_RATE_LIMIT_MAX_OPERATORS", maxOperators),
	}
}
