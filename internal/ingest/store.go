package ingest

import (
	"context"

	"github.com/google/uuid"
)

// The domain package defines the interfaces it needs for persistence without
// depending on concrete implementations; the PostgreSQL implementations live
// in internal/storage. This keeps the orchestrator testable against fakes and
// follows the Dependency Inversion Principle.
type (
	// CatalogSnapshotReader produces the immutable reference-data snapshot a
	// batch validates against. The three underlying reads are issued once per
	// batch; the result is held in memory for the batch's duration.
	CatalogSnapshotReader interface {
		// LoadSnapshot captures active clients, zones with their refrigeration
		// capability, and existing order numbers in one point-in-time view.
		LoadSnapshot(ctx context.Context) (*CatalogSnapshot, error)
	}

	// IdempotencyStore persists and looks up batch-load records keyed by the
	// (idempotency key, file digest) pair.
	IdempotencyStore interface {
		// Lookup returns the batch load for (key, digest), or ErrBatchNotFound.
		Lookup(ctx context.Context, key, digest string) (*BatchLoad, error)

		// Reserve atomically creates a PROCESSING batch load for (key, digest).
		// The uniqueness guarantee comes from the database constraint, not
		// in-process locking: across concurrent requests exactly one
		// reservation succeeds and the rest observe ErrAlreadyReserved.
		//
		// A previous FAILED run for the same pair is reclaimed in place
		// (counters reset, status back to PROCESSING), permitting exactly one
		// retry of a failed run.
		Reserve(ctx context.Context, key, digest string) (*BatchLoad, error)

		// Finalize transitions a PROCESSING batch load to COMPLETED, setting
		// counters and attaching the row errors as owned children. Terminal
		// batch loads are immutable; finalizing one returns ErrBatchFinalized.
		Finalize(
			ctx context.Context,
			id uuid.UUID,
			totalProcessed, successCount int,
			rowErrors []RowError,
		) (*BatchLoad, error)

		// Fail transitions a PROCESSING batch load to FAILED without touching
		// counters or children. Used when an infrastructural error aborts the
		// run after reservation, so the reserved row is not lost.
		Fail(ctx context.Context, id uuid.UUID) (*BatchLoad, error)

		// FindByID returns a batch load with its error children by primary
		// key, or ErrBatchNotFound.
		FindByID(ctx context.Context, id uuid.UUID) (*BatchLoad, error)
	}

	// OrderWriter bulk-inserts the validated subset of a batch.
	OrderWriter interface {
		// CreateOrders inserts all orders in one bulk operation. A unique
		// violation on order_number (a concurrent batch won the race between
		// snapshot and commit) fails the call, and with it the whole batch.
		CreateOrders(ctx context.Context, orders []ValidatedOrder) error
	}

	// TxRunner scopes a function to one database transaction. Store methods
	// invoked inside the function join the transaction through the context, so
	// the bulk insert and the finalize commit or roll back together.
	TxRunner interface {
		WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	}
)
