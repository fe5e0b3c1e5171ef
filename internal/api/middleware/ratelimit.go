// Package middleware provides HTTP middleware components for the orders batch API.
package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier    int     = 2
	maxOperators               int     = 10000
	defaultGlobalRPS           int     = 100
	defaultOperatorRPS         int     = 50
	defaultUnAuthRPS           int     = 10
	thresholdMultiplier        float64 = 0.8
	thresholdPercentage        int     = 80
	rateLimiterCleanupInterval         = 5 * time.Minute
	rateLimiterIdleTimeout             = 1 * time.Hour
)

type (
	// RateLimiter provides rate limiting for incoming requests.
	//
	// Implementations may use in-memory token buckets (single-node deployment)
	// or distributed stores like Redis (multi-node deployment). The interface
	// keeps the middleware independent of the backing store.
	RateLimiter interface {
		// Allow checks if a request should be allowed based on rate limits.
		// Returns true if allowed, false if rate limited.
		//
		// For authenticated requests, operatorID identifies the operator.
		// For unauthenticated requests, operatorID is empty string.
		Allow(operatorID string) bool
	}

	// InMemoryRateLimiter implements RateLimiter using golang.org/x/time/rate.
	//
	// Provides three-tier rate limiting:
	// 1. Global limit (applied to all requests)
	// 2. Per-operator limit (applied to authenticated requests)
	// 3. Unauthenticated limit (applied to requests without an operator)
	//
	// Uses token bucket algorithm with configurable burst capacity.
	// Memory cleanup runs periodically; operators idle longer than
	// IdleTimeout are removed.
	InMemoryRateLimiter struct {
		global          *rate.Limiter
		perOperator     map[string]*operatorLimiter
		unauthenticated *rate.Limiter
		mu              sync.RWMutex
		cleanupTicker   *time.Ticker
		done            chan struct{}

		// Configuration (stored for creating new operator limiters and cleanup)
		operatorRPS     int
		operatorBurst   int
		cleanupInterval time.Duration
		idleTimeout     time.Duration
		maxOperators    int
	}

	// operatorLimiter tracks rate limit state for a single operator.
	// Includes last access time for memory cleanup.
	operatorLimiter struct {
		limiter    *rate.Limiter
		lastAccess time.Time
		mu         sync.Mutex
	}
)

// NewInMemoryRateLimiter creates a new in-memory rate limiter with three-tier limits.
//
// Burst capacity is computed automatically as 2 × rate unless overridden in config.
// Cleanup runs periodically to prevent unbounded memory growth.
//
// Example:
//
//	rl := NewInMemoryRateLimiter(&Config{
//	    GlobalRPS:   100,
//	    OperatorRPS: 50,
//	    UnAuthRPS:   10,
//	})
//	defer rl.Close()
func NewInMemoryRateLimiter(config *Config) *InMemoryRateLimiter {
	globalBurst := computeBurstCapacity(config.GlobalRPS, config.GlobalBurst)
	operatorBurst := computeBurstCapacity(config.OperatorRPS, config.OperatorBurst)
	unauthBurst := computeBurstCapacity(config.UnAuthRPS, config.UnAuthBurst)

	rl := &InMemoryRateLimiter{
		global:          rate.NewLimiter(rate.Limit(config.GlobalRPS), globalBurst),
		perOperator:     make(map[string]*operatorLimiter),
		unauthenticated: rate.NewLimiter(rate.Limit(config.UnAuthRPS), unauthBurst),
		done:            make(chan struct{}),
		operatorRPS:     config.OperatorRPS,
		operatorBurst:   operatorBurst,
		cleanupInterval: config.CleanupInterval,
		idleTimeout:     config.IdleTimeout,
		maxOperators:    config.MaxOperators,
	}

	rl.startCleanup()

	return rl
}

// computeBurstCapacity computes the burst capacity based on the rate and
// optional override. A zero override means burst = 2 × rate.
func computeBurstCapacity(rate, burstOverride int) int {
	if burstOverride > 0 {
		return burstOverride
	}

	return rate * burstCapacityMultiplier
}

// Allow checks if a request should be allowed based on rate limits.
// Implements the RateLimiter interface.
//
// Rate limiting is enforced in two steps:
// 1. Global limit (all requests)
// 2. Per-operator limit (authenticated) OR unauthenticated limit
func (rl *InMemoryRateLimiter) Allow(operatorID string) bool {
	// Check global limit first (fail fast)
	if !rl.global.Allow() {
		return false
	}

	if operatorID == "" {
		return rl.unauthenticated.Allow()
	}

	rl.mu.RLock()
	ol, ok := rl.perOperator[operatorID]
	rl.mu.RUnlock()

	if !ok {
		// Lazy initialization: create limiter for this operator
		rl.mu.Lock()
		// Double-check after acquiring write lock (avoid race)
		if ol, ok = rl.perOperator[operatorID]; !ok {
			ol = &operatorLimiter{
				limiter:    rate.NewLimiter(rate.Limit(rl.operatorRPS), rl.operatorBurst),
				lastAccess: time.Now(),
			}

			rl.perOperator[operatorID] = ol

			// Warn when approaching the max operators limit so operators
			// can spot credential proliferation before hitting hard limits.
			currentCount := len(rl.perOperator)
			threshold := int(float64(rl.maxOperators) * thresholdMultiplier)

			if currentCount >= threshold {
				slog.Warn("rate limiter approaching max operators limit",
					"current_operators", currentCount,
					"max_operators", rl.maxOperators,
					"threshold_percent", thresholdPercentage,
				)
			}
		}

		rl.mu.Unlock()
	}

	// Update last access time (for cleanup)
	ol.mu.Lock()
	ol.lastAccess = time.Now()
	ol.mu.Unlock()

	return ol.limiter.Allow()
}

// Close stops the cleanup goroutine and releases resources.
//
// Close is not part of the RateLimiter interface so that implementations
// without cleanup (a Redis-backed limiter with pooled connections) can
// satisfy it too. Use type assertion if cleanup is needed:
//
//	if closer, ok := limiter.(io.Closer); ok {
//	    closer.Close()
//	}
func (rl *InMemoryRateLimiter) Close() error {
	if rl.cleanupTicker != nil {
		rl.cleanupTicker.Stop()
	}

	close(rl.done)

	return nil
}

// startCleanup starts a background goroutine that periodically removes
// stale operator limiters to prevent memory leaks.
func (rl *InMemoryRateLimiter) startCleanup() {
	cleanupInterval := rl.cleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = rateLimiterCleanupInterval
	}

	rl.cleanupTicker = time.NewTicker(cleanupInterval)

	go func() {
		for {
			select {
			case <-rl.cleanupTicker.C:
				rl.cleanup()
			case <-rl.done:
				return
			}
		}
	}()
}

// cleanup removes operator limiters that haven't been accessed recently.
func (rl *InMemoryRateLimiter) cleanup() {
	idleTimeout := rl.idleTimeout
	if idleTimeout == 0 {
		idleTimeout = rateLimiterIdleTimeout
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for operatorID, ol := range rl.perOperator {
		ol.mu.Lock()
		lastAccess := ol.lastAccess
		ol.mu.Unlock()

		if now.Sub(lastAccess) > idleTimeout {
			delete(rl.perOperator, operatorID)
		}
	}
}

// RateLimit returns a middleware that enforces rate limits on incoming requests.
//
// The middleware must be placed after authentication middleware in the chain
// so that authenticated requests are limited per operator rather than through
// the shared unauthenticated bucket.
//
// When a request exceeds the rate limit, the middleware returns 429 with the
// service's JSON error envelope.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operatorID := ""
			if operator, ok := GetOperator(r.Context()); ok {
				operatorID = operator.Username
			}

			if !limiter.Allow(operatorID) {
				correlationID := GetCorrelationID(r.Context())

				message := "Rate limit exceeded. Please retry after some time."
				if err := writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", message); err != nil {
					logger.Error("failed to write error response",
						slog.String("correlation_id", correlationID),
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)

					http.Error(w, message, http.StatusTooManyRequests)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
