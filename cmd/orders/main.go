// Package main provides the orders batch ingestion service.
//
// The service accepts CSV order uploads, validates them row by row against
// the client and zone catalogs, and persists the accepted subset under an
// idempotency reservation so repeated uploads are detected, not duplicated.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/CodAressss/orders-batch-service/internal/api"
	"github.com/CodAressss/orders-batch-service/internal/api/middleware"
	"github.com/CodAressss/orders-batch-service/internal/auth"
	"github.com/CodAressss/orders-batch-service/internal/config"
	"github.com/CodAressss/orders-batch-service/internal/events"
	"github.com/CodAressss/orders-batch-service/internal/ingest"
	"github.com/CodAressss/orders-batch-service/internal/storage"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "orders-batch-service"
)

// seedTimeout bounds the startup admin account seeding.
const seedTimeout = 10 * time.Second

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("Starting orders batch service",
		slog.String("service", name),
		slog.String("version", version),
	)

	logger.Info("Loaded server configuration",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.Duration("read_timeout", serverConfig.ReadTimeout),
		slog.Duration("write_timeout", serverConfig.WriteTimeout),
		slog.Duration("shutdown_timeout", serverConfig.ShutdownTimeout),
		slog.String("log_level", serverConfig.LogLevel.String()),
	)

	// Rate limiter (graceful shutdown handled by server.shutdown())
	middlewareConfig := middleware.LoadConfig()
	rateLimiter := middleware.NewInMemoryRateLimiter(middlewareConfig)

	logger.Info("Rate limiter initialized",
		slog.Int("global_rps", middlewareConfig.GlobalRPS),
		slog.Int("operator_rps", middlewareConfig.OperatorRPS),
		slog.Int("unauth_rps", middlewareConfig.UnAuthRPS),
	)

	// Database connection pool
	storageConfig := storage.LoadConfig()

	dbConn, err := storage.NewConnection(storageConfig)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Database connection established",
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
		slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
		slog.Int("database_max_idle_conns", storageConfig.MaxIdleConns),
	)

	// Stores
	batchStore := storage.NewBatchStore(dbConn, logger)
	catalogStore := storage.NewCatalogStore(dbConn)
	orderStore := storage.NewOrderStore(dbConn)
	userStore := storage.NewUserStore(dbConn)

	// Validation policy (optional .orders.yaml, defaults otherwise)
	policy, err := ingest.LoadPolicyFromEnv()
	if err != nil {
		logger.Error("Failed to load validation policy", slog.String("error", err.Error()))
		exit(dbConn)
	}

	validator, err := ingest.NewValidator(policy)
	if err != nil {
		logger.Error("Failed to build validator", slog.String("error", err.Error()))
		exit(dbConn)
	}

	logger.Info("Validation policy loaded",
		slog.Bool("strict_order_numbers", policy.StrictOrderNumbers),
		slog.String("business_timezone", policy.BusinessTimezone),
	)

	processor := ingest.NewProcessor(batchStore, catalogStore, orderStore, dbConn, validator, logger)

	// Bearer token issuer. Without a secret the API runs unauthenticated,
	// which is only acceptable on trusted networks.
	var tokenIssuer *auth.TokenIssuer

	if secret := config.GetEnvStr("ORDERS_JWT_SECRET", ""); secret != "" {
		tokenIssuer, err = auth.NewTokenIssuer(
			[]byte(secret),
			config.GetEnvStr("ORDERS_JWT_ISSUER", name),
			config.GetEnvDuration("ORDERS_JWT_TTL", auth.DefaultTokenTTL),
		)
		if err != nil {
			logger.Error("Failed to build token issuer", slog.String("error", err.Error()))
			exit(dbConn)
		}

		logger.Info("Bearer authentication enabled",
			slog.Duration("token_ttl", tokenIssuer.TTL()),
		)

		if err := seedAdminAccount(userStore, logger); err != nil {
			logger.Error("Failed to seed admin account", slog.String("error", err.Error()))
			exit(dbConn)
		}
	} else {
		logger.Warn("Bearer authentication disabled",
			slog.String("security", "Only use in trusted networks (localhost, VPN, internal)"),
			slog.String("note", "Set ORDERS_JWT_SECRET (>= 32 bytes) to enable authentication"),
		)
	}

	// Optional Kafka publisher for batch completion events.
	brokers := config.ParseCommaSeparatedList(config.GetEnvStr("ORDERS_KAFKA_BROKERS", ""))
	topic := config.GetEnvStr("ORDERS_KAFKA_TOPIC", events.DefaultTopic)

	publisher := events.NewPublisher(brokers, topic, logger)
	if publisher.Enabled() {
		logger.Info("Batch event publishing enabled",
			slog.Any("brokers", brokers),
			slog.String("topic", topic),
		)
	} else {
		logger.Info("Batch event publishing disabled",
			slog.String("note", "Set ORDERS_KAFKA_BROKERS to enable"),
		)
	}

	server := api.NewServer(serverConfig, api.Dependencies{
		Health:      dbConn,
		Processor:   processor,
		Orders:      orderStore,
		Batches:     batchStore,
		Users:       userStore,
		Tokens:      tokenIssuer,
		Publisher:   publisher,
		RateLimiter: rateLimiter,
	})

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start",
			slog.String("error", err.Error()),
		)
		exit(dbConn)
	}

	logger.Info("Orders batch service stopped")
}

// seedAdminAccount creates the initial operator account from the environment
// if it does not already exist. An existing account is never modified, so
// rotating the env password requires a manual update.
func seedAdminAccount(users *storage.UserStore, logger *slog.Logger) error {
	username := config.GetEnvStr("ORDERS_ADMIN_USERNAME", "")
	password := config.GetEnvStr("ORDERS_ADMIN_PASSWORD", "")

	if username == "" || password == "" {
		logger.Warn("Admin account seeding skipped",
			slog.String("note", "Set ORDERS_ADMIN_USERNAME and ORDERS_ADMIN_PASSWORD to seed an operator"),
		)

		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	created, err := users.EnsureUser(ctx, username, hash, "ADMIN")
	if err != nil {
		return err
	}

	if created {
		logger.Info("Admin account seeded", slog.String("username", username))
	} else {
		logger.Info("Admin account already present", slog.String("username", username))
	}

	return nil
}

// exit closes the database connection before exiting; deferred closes do not
// run through os.Exit.
func exit(dbConn *storage.Connection) {
	_ = dbConn.Close()
	os.Exit(1)
}
