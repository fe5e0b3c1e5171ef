package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// connectTimeout bounds the initial connectivity check in NewConnection.
const connectTimeout = 10 * time.Second

// Connection wraps the database/sql pool with transaction-aware query
// dispatch. Store methods go through the Connection so that code running
// inside WithTx transparently joins the transaction carried in the context.
type Connection struct {
	DB     *sql.DB
	config *Config
}

// querier is the subset of *sql.DB and *sql.Tx the stores need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// txContextKey keys the active *sql.Tx in a context. Unexported so only
// WithTx can install one.
type txContextKey struct{}

// NewConnection opens a PostgreSQL connection pool and verifies connectivity.
func NewConnection(config *Config) (*Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	db, err := sql.Open("postgres", config.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{DB: db, config: config}, nil
}

// WithTx runs fn inside one transaction. The transaction travels in the
// context: store methods invoked from fn issue their statements on it, so
// everything fn does commits or rolls back as a unit. A panic inside fn rolls
// the transaction back and re-panics.
func (c *Connection) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()

			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %w)", rbErr, err)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// querier returns the active transaction from the context, or the pool.
func (c *Connection) querier(ctx context.Context) querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}

	return c.DB
}

// txFromContext extracts the transaction installed by WithTx, if any.
func txFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*sql.Tx)

	return tx, ok
}

// ExecContext executes a statement on the active transaction or the pool.
func (c *Connection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.querier(ctx).ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the active transaction or the pool.
func (c *Connection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.querier(ctx).QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the active transaction or the pool.
func (c *Connection) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.querier(ctx).QueryRowContext(ctx, query, args...)
}

// HealthCheck verifies database connectivity for readiness probes.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close closes the connection pool. Safe to call multiple times.
func (c *Connection) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}

	return nil
}
