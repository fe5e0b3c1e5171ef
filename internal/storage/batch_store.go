package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/CodAressss/orders-batch-service/internal/ingest"
)

// pqUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pqUniqueViolation = "23505"

// BatchStore is the PostgreSQL idempotency ledger: one batch_loads row per
// (idempotency_key, file_hash) pair, with rejected rows as batch_load_errors
// children. The unique constraint on the pair is what makes reservations
// race-safe; there is no in-process locking.
type BatchStore struct {
	conn   *Connection
	logger *slog.Logger
}

// Compile-time interface compliance check.
var _ ingest.IdempotencyStore = (*BatchStore)(nil)

// NewBatchStore creates a batch load store backed by the given connection.
func NewBatchStore(conn *Connection, logger *slog.Logger) *BatchStore {
	return &BatchStore{conn: conn, logger: logger}
}

const batchLoadColumns = `
	id, idempotency_key, file_hash, status,
	total_processed, success_count, error_count,
	created_at, updated_at
`

// Lookup returns the batch load for (key, digest) without its error children,
// or ingest.ErrBatchNotFound.
func (s *BatchStore) Lookup(ctx context.Context, key, digest string) (*ingest.BatchLoad, error) {
	query := `
		SELECT ` + batchLoadColumns + `
		FROM batch_loads
		WHERE idempotency_key = $1 AND file_hash = $2
	`

	batch, err := scanBatchLoad(s.conn.QueryRowContext(ctx, query, key, digest))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ingest.ErrBatchNotFound
		}

		return nil, fmt.Errorf("failed to look up batch load: %w", err)
	}

	return batch, nil
}

// Reserve atomically claims (key, digest) by inserting a PROCESSING row.
//
// A previous FAILED run for the same pair is reclaimed in place: the conflict
// update resets its counters and flips it back to PROCESSING, and its stale
// error children are cleared. When the pair is held by a PROCESSING or
// COMPLETED row the conflict update matches nothing, no row comes back, and
// the caller observes ErrAlreadyReserved. Exactly one concurrent caller wins.
func (s *BatchStore) Reserve(ctx context.Context, key, digest string) (*ingest.BatchLoad, error) {
	query := `
		INSERT INTO batch_loads (
			id, idempotency_key, file_hash, status,
			total_processed, success_count, error_count
		)
		VALUES ($1, $2, $3, 'PROCESSING', 0, 0, 0)
		ON CONFLICT (idempotency_key, file_hash) DO UPDATE
		SET status = 'PROCESSING',
		    total_processed = 0,
		    success_count = 0,
		    error_count = 0,
		    updated_at = NOW()
		WHERE batch_loads.status = 'FAILED'
		RETURNING ` + batchLoadColumns

	batch, err := scanBatchLoad(s.conn.QueryRowContext(ctx, query, uuid.New(), key, digest))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ingest.ErrAlreadyReserved
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return nil, ingest.ErrAlreadyReserved
		}

		return nil, fmt.Errorf("failed to reserve batch load: %w", err)
	}

	// Reclaimed FAILED runs may carry children from the failed attempt.
	// A no-op for fresh reservations.
	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM batch_load_errors WHERE batch_load_id = $1`, batch.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to clear stale batch load errors: %w", err)
	}

	return batch, nil
}

// Finalize transitions a PROCESSING batch load to COMPLETED, records the
// counters and inserts the error children. The status predicate makes
// finalization of a terminal batch a no-op that surfaces as
// ingest.ErrBatchFinalized. Runs on the caller's transaction when invoked
// inside Connection.WithTx.
func (s *BatchStore) Finalize(
	ctx context.Context,
	id uuid.UUID,
	totalProcessed, successCount int,
	rowErrors []ingest.RowError,
) (*ingest.BatchLoad, error) {
	query := `
		UPDATE batch_loads
		SET status = 'COMPLETED',
		    total_processed = $2,
		    success_count = $3,
		    error_count = $4,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'PROCESSING'
		RETURNING ` + batchLoadColumns

	batch, err := scanBatchLoad(s.conn.QueryRowContext(
		ctx, query, id, totalProcessed, successCount, len(rowErrors),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.terminalOrMissing(ctx, id)
		}

		return nil, fmt.Errorf("failed to finalize batch load: %w", err)
	}

	if err := s.insertRowErrors(ctx, id, rowErrors); err != nil {
		return nil, err
	}

	batch.Errors = rowErrors

	return batch, nil
}

// Fail transitions a PROCESSING batch load to FAILED, leaving counters and
// children untouched. Terminal batches surface as ingest.ErrBatchFinalized.
func (s *BatchStore) Fail(ctx context.Context, id uuid.UUID) (*ingest.BatchLoad, error) {
	query := `
		UPDATE batch_loads
		SET status = 'FAILED', updated_at = NOW()
		WHERE id = $1 AND status = 'PROCESSING'
		RETURNING ` + batchLoadColumns

	batch, err := scanBatchLoad(s.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.terminalOrMissing(ctx, id)
		}

		return nil, fmt.Errorf("failed to mark batch load failed: %w", err)
	}

	return batch, nil
}

// FindByID returns a batch load with its error children, or
// ingest.ErrBatchNotFound.
func (s *BatchStore) FindByID(ctx context.Context, id uuid.UUID) (*ingest.BatchLoad, error) {
	query := `
		SELECT ` + batchLoadColumns + `
		FROM batch_loads
		WHERE id = $1
	`

	batch, err := scanBatchLoad(s.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ingest.ErrBatchNotFound
		}

		return nil, fmt.Errorf("failed to find batch load: %w", err)
	}

	rowErrors, err := s.loadRowErrors(ctx, id)
	if err != nil {
		return nil, err
	}

	batch.Errors = rowErrors

	return batch, nil
}

// terminalOrMissing disambiguates the zero-row outcome of a status-guarded
// update: the row either does not exist or has already reached a terminal state.
func (s *BatchStore) terminalOrMissing(ctx context.Context, id uuid.UUID) error {
	var status string

	err := s.conn.QueryRowContext(ctx,
		`SELECT status FROM batch_loads WHERE id = $1`, id,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ingest.ErrBatchNotFound
		}

		return fmt.Errorf("failed to inspect batch load status: %w", err)
	}

	return fmt.Errorf("%w: batch load %s is %s", ingest.ErrBatchFinalized, id, status)
}

// insertRowErrors bulk-inserts the error children in one multi-row statement.
func (s *BatchStore) insertRowErrors(ctx context.Context, id uuid.UUID, rowErrors []ingest.RowError) error {
	if len(rowErrors) == 0 {
		return nil
	}

	var (
		placeholders = make([]string, 0, len(rowErrors))
		args         = make([]any, 0, len(rowErrors)*4)
	)

	for i, rowErr := range rowErrors {
		base := i * 4
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4,
		))
		args = append(args, id, rowErr.LineNumber, string(rowErr.Code), rowErr.Message)
	}

	query := `
		INSERT INTO batch_load_errors (batch_load_id, line_number, error_code, error_message)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert batch load errors: %w", err)
	}

	return nil
}

// loadRowErrors reads the error children in line order.
func (s *BatchStore) loadRowErrors(ctx context.Context, id uuid.UUID) ([]ingest.RowError, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT line_number, error_code, error_message
		FROM batch_load_errors
		WHERE batch_load_id = $1
		ORDER BY line_number
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch load errors: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var rowErrors []ingest.RowError

	for rows.Next() {
		var (
			rowErr ingest.RowError
			code   string
		)

		if err := rows.Scan(&rowErr.LineNumber, &code, &rowErr.Message); err != nil {
			return nil, fmt.Errorf("failed to scan batch load error: %w", err)
		}

		rowErr.Code = ingest.ErrorCode(code)
		rowErrors = append(rowErrors, rowErr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batch load errors: %w", err)
	}

	return rowErrors, nil
}

// scanBatchLoad scans one batch_loads row in batchLoadColumns order.
func scanBatchLoad(row *sql.Row) (*ingest.BatchLoad, error) {
	var (
		batch  ingest.BatchLoad
		status string
	)

	err := row.Scan(
		&batch.ID,
		&batch.IdempotencyKey,
		&batch.FileDigest,
		&status,
		&batch.TotalProcessed,
		&batch.SuccessCount,
		&batch.ErrorCount,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	batch.Status = ingest.BatchStatus(status)

	return &batch, nil
}
