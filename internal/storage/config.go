package storage

import (
	"errors"
	"strings"
	"time"

	"github.com/CodAressss/orders-batch-service/internal/config"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute
)

// ErrDatabaseURLEmpty is returned when the database url is an empty string.
var ErrDatabaseURLEmpty = errors.New("database URL cannot be empty")

// Config holds PostgreSQL connection configuration with production-ready defaults.
type Config struct {
	databaseURL     string
	MaxOpenConns    int           // Maximum number of open connections
	MaxIdleConns    int           // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of connections
	ConnMaxIdleTime time.Duration // Maximum idle time for connections
}

// LoadConfig loads PostgreSQL configuration from environment variables with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		databaseURL:     config.GetEnvStr("DATABASE_URL", ""), // databaseURL stays private: it carries credentials.
		MaxOpenConns:    config.GetEnvInt("DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
		MaxIdleConns:    config.GetEnvInt("DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns),
		ConnMaxLifetime: config.GetEnvDuration("DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
		ConnMaxIdleTime: config.GetEnvDuration("DATABASE_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime),
	}
}

// Validate checks if the PostgreSQL configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.databaseURL) == "" {
		return ErrDatabaseURLEmpty
	}

	return nil
}

// MaskDatabaseURL returns a masked databaseURL safe for logging.
func (c *Config) MaskDatabaseURL() string {
	return MaskDatabaseURL(c.databaseURL)
}

// MaskDatabaseURL replaces the password portion of a connection URL with ***.
// URLs without userinfo, or with an empty password, pass through unchanged.
func MaskDatabaseURL(url string) string {
	schemeEnd := strings.Index(url, "://")
	if schemeEnd == -1 {
		return url
	}

	afterScheme := url[schemeEnd+3:]

	// The last @ separates userinfo from host; passwords may contain @.
	atIndex := strings.LastIndex(afterScheme, "@")
	if atIndex == -1 {
		return url
	}

	userInfo := afterScheme[:atIndex]

	colonIndex := strings.Index(userInfo, ":")
	if colonIndex == -1 || colonIndex == len(userInfo)-1 {
		return url
	}

	return url[:schemeEnd+3] + userInfo[:colonIndex] + ":***" + afterScheme[atIndex:]
}
