package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestRateLimiter(t *testing.T, config *Config) *InMemoryRateLimiter {
	t.Helper()

	rl := NewInMemoryRateLimiter(config)
	t.Cleanup(func() { rl.Close() })

	return rl
}

func TestInMemoryRateLimiter_GlobalLimit(t *testing.T) {
	rl := newTestRateLimiter(t, &Config{
		GlobalRPS:   1,
		GlobalBurst: 2,
		OperatorRPS: 100,
		UnAuthRPS:   100,
	})

	if !rl.Allow("op-1") {
		t.Fatal("first request denied")
	}

	if !rl.Allow("op-2") {
		t.Fatal("second request denied within burst")
	}

	// Burst of 2 exhausted, global tier must reject regardless of operator.
	if rl.Allow("op-3") {
		t.Error("request allowed past global burst capacity")
	}
}

func TestInMemoryRateLimiter_PerOperatorIsolation(t *testing.T) {
	rl := newTestRateLimiter(t, &Config{
		GlobalRPS:     1000,
		OperatorRPS:   1,
		OperatorBurst: 1,
		UnAuthRPS:     100,
	})

	if !rl.Allow("op-a") {
		t.Fatal("first request for op-a denied")
	}

	if rl.Allow("op-a") {
		t.Error("second request for op-a allowed past its burst")
	}

	// A different operator has its own bucket.
	if !rl.Allow("op-b") {
		t.Error("request for op-b denied by op-a's exhausted bucket")
	}
}

func TestInMemoryRateLimiter_UnauthenticatedTier(t *testing.T) {
	rl := newTestRateLimiter(t, &Config{
		GlobalRPS:   1000,
		OperatorRPS: 100,
		UnAuthRPS:   1,
		UnAuthBurst: 1,
	})

	if !rl.Allow("") {
		t.Fatal("first unauthenticated request denied")
	}

	if rl.Allow("") {
		t.Error("second unauthenticated request allowed past burst")
	}

	// Authenticated traffic is unaffected.
	if !rl.Allow("op-a") {
		t.Error("authenticated request denied by unauthenticated bucket")
	}
}

func TestInMemoryRateLimiter_CleanupRemovesIdleOperators(t *testing.T) {
	rl := newTestRateLimiter(t, &Config{
		GlobalRPS:   1000,
		OperatorRPS: 100,
		UnAuthRPS:   10,
		IdleTimeout: time.Millisecond,
	})

	rl.Allow("op-idle")

	time.Sleep(5 * time.Millisecond)
	rl.cleanup()

	rl.mu.RLock()
	_, ok := rl.perOperator["op-idle"]
	rl.mu.RUnlock()

	if ok {
		t.Error("idle operator limiter survived cleanup")
	}
}

func TestComputeBurstCapacity(t *testing.T) {
	if got := computeBurstCapacity(100, 0); got != 200 {
		t.Errorf("computeBurstCapacity(100, 0) = %d, want 200", got)
	}

	if got := computeBurstCapacity(100, 500); got != 500 {
		t.Errorf("computeBurstCapacity(100, 500) = %d, want 500", got)
	}
}

// denyAllLimiter rejects every request.
type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

func TestRateLimit_Returns429(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached despite rate limit")
	})

	handler := RateLimit(denyAllLimiter{}, slog.Default())(inner)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/load", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}

	if body["code"] != "RATE_LIMITED" {
		t.Errorf("code = %v, want RATE_LIMITED", body["code"])
	}
}

func TestRateLimit_UsesOperatorIdentity(t *testing.T) {
	var seen []string

	limiter := allowRecorder{seen: &seen}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := RateLimit(limiter, slog.Default())(inner)

	// Unauthenticated request.
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	// Authenticated request.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), operatorKey{}, &Operator{Username: "admin", Role: "ADMIN"})
	handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	if len(seen) != 2 || seen[0] != "" || seen[1] != "admin" {
		t.Errorf("limiter keys = %v, want [\"\" admin]", seen)
	}
}

// allowRecorder records the operator IDs passed to Allow.
type allowRecorder struct {
	seen *[]string
}

func (a allowRecorder) Allow(operatorID string) bool {
	*a.seen = append(*a.seen, operatorID)

	return true
}
