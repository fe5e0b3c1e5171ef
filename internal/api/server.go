// Package api provides the HTTP server for the orders batch service.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/CodAressss/orders-batch-service/internal/api/middleware"
	"github.com/CodAressss/orders-batch-service/internal/auth"
	"github.com/CodAressss/orders-batch-service/internal/events"
	"github.com/CodAressss/orders-batch-service/internal/ingest"
	"github.com/CodAressss/orders-batch-service/internal/storage"
)

type (
	// BatchProcessor runs one upload end to end. *ingest.Processor is the
	// production implementation; tests substitute fakes.
	BatchProcessor interface {
		Process(ctx context.Context, key, digest string, rows []ingest.Row) (*ingest.BatchResult, error)
	}

	// OrderReader queries persisted orders.
	OrderReader interface {
		FindByNumber(ctx context.Context, orderNumber string) (*storage.Order, error)
		ListOrders(ctx context.Context, filter storage.OrderFilter) ([]*storage.Order, error)
	}

	// BatchReader queries persisted batch loads.
	BatchReader interface {
		FindByID(ctx context.Context, id uuid.UUID) (*ingest.BatchLoad, error)
	}

	// UserReader looks up operator accounts for sign-in.
	UserReader interface {
		FindByUsername(ctx context.Context, username string) (*storage.User, error)
	}

	// HealthChecker verifies the storage backend is reachable.
	// *storage.Connection is the production implementation.
	HealthChecker interface {
		HealthCheck(ctx context.Context) error
	}

	// Dependencies bundles the collaborators the server routes requests to.
	// Nil-able fields degrade gracefully: a nil Tokens disables authentication,
	// a nil RateLimiter disables rate limiting, a nil Publisher disables events.
	Dependencies struct {
		Health      HealthChecker
		Processor   BatchProcessor
		Orders      OrderReader
		Batches     BatchReader
		Users       UserReader
		Tokens      *auth.TokenIssuer
		Publisher   *events.Publisher
		RateLimiter middleware.RateLimiter
	}

	// Server represents the HTTP API server.
	Server struct {
		httpServer  *http.Server
		logger      *slog.Logger
		config      *ServerConfig
		startTime   time.Time
		health      HealthChecker
		processor   BatchProcessor
		orders      OrderReader
		batches     BatchReader
		users       UserReader
		tokens      *auth.TokenIssuer
		publisher   *events.Publisher
		rateLimiter middleware.RateLimiter
	}
)

// NewServer creates a new HTTP server instance with structured logging and
// middleware stack.
//
// Configuration (what) is separated from dependencies (how): cfg carries
// ports, timeouts and CORS settings while deps carries the storage and
// domain collaborators.
func NewServer(cfg *ServerConfig, deps Dependencies) *Server {
	// Create structured logger with configured log level
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	mux := http.NewServeMux()

	server := &Server{
		logger:      logger,
		config:      cfg,
		health:      deps.Health,
		processor:   deps.Processor,
		orders:      deps.Orders,
		batches:     deps.Batches,
		users:       deps.Users,
		tokens:      deps.Tokens,
		publisher:   deps.Publisher,
		rateLimiter: deps.RateLimiter,
	}

	server.setupRoutes(mux)

	// A typed nil must not become a non-nil interface value, so the
	// verifier is only assigned when the issuer is configured.
	var verifier middleware.TokenVerifier
	if deps.Tokens != nil {
		verifier = deps.Tokens

		logger.Info("Bearer authentication middleware enabled")
	} else {
		logger.Warn("Token issuer not configured - bearer authentication middleware disabled")
	}

	if deps.RateLimiter != nil {
		logger.Info("Rate limiting middleware enabled")
	} else {
		logger.Warn("RateLimiter not configured - rate limiting middleware disabled")
	}

	// Apply middleware chain using functional options pattern.
	// Middleware executes in the order listed (top-to-bottom):
	//   1. CorrelationID - generate correlation ID for all responses
	//   2. Recovery - catch panics in all downstream middleware
	//   3. BearerAuth - identify the operator and set identity context (optional)
	//   4. RateLimit - block requests before expensive operations (optional)
	//   5. RequestLogger - log only legitimate requests (not rate-limited spam)
	//   6. CORS - lightweight header manipulation
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithBearerAuth(verifier, logger),
		middleware.WithRateLimit(deps.RateLimiter, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	// Record server start time for uptime calculation
	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting orders batch API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("Received shutdown signal",
			slog.String("signal", sig.String()),
		)

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server and its collaborators.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown",
		slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
	)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Flush pending Kafka messages before the process exits.
	if s.publisher.Enabled() {
		s.logger.Info("Closing event publisher")

		if err := s.publisher.Close(); err != nil {
			s.logger.Error("Failed to close event publisher", slog.String("error", err.Error()))
		}
	}

	// Stop the rate limiter's background cleanup goroutine.
	if s.rateLimiter != nil {
		s.logger.Info("Closing rate limiter")

		if limiter, ok := s.rateLimiter.(io.Closer); ok {
			if err := limiter.Close(); err != nil {
				s.logger.Error("Failed to close rate limiter", slog.String("error", err.Error()))
			}
		}
	}

	// Release database connections last, after all in-flight requests drained.
	if closer, ok := s.health.(io.Closer); ok {
		s.logger.Info("Closing storage connection")

		if err := closer.Close(); err != nil {
			s.logger.Error("Failed to close storage connection", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("Server shutdown completed successfully")

	return nil
}
