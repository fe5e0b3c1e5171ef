package main

import (
	"errors"
	"fmt"

	"github.com/CodAressss/orders-batch-service/internal/config"
	"github.com/CodAressss/orders-batch-service/internal/storage"
)

// ErrDatabaseURLRequired is returned when DATABASE_URL is not set.
var ErrDatabaseURLRequired = errors.New("DATABASE_URL cannot be empty")

// Config holds the migrator configuration.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string

	// MigrationTable is the name of the table golang-migrate uses to track
	// applied versions.
	MigrationTable string
}

// LoadConfig loads migrator configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    config.GetEnvStr("DATABASE_URL", ""),
		MigrationTable: config.GetEnvStr("MIGRATION_TABLE", "schema_migrations"),
	}

	if cfg.DatabaseURL == "" {
		return nil, ErrDatabaseURLRequired
	}

	return cfg, nil
}

// String returns a representation safe for logging: the password portion of
// the database URL is masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{DatabaseURL: %s, MigrationTable: %s}",
		storage.MaskDatabaseURL(c.DatabaseURL), c.MigrationTable)
}
