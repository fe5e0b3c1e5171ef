package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Processor orchestrates one batch run end to end:
//
//  1. idempotency lookup (replay detection)
//  2. reservation (atomic PROCESSING row)
//  3. catalog snapshot
//  4. per-row validation
//  5. bulk insert of the validated subset
//  6. finalization (counters + error children, COMPLETED)
//
// Steps 5 and 6 share one database transaction so an insert failure rolls the
// finalize back with it; there is no partial commit. Snapshot reads run
// outside the write transaction to keep lock duration short.
type Processor struct {
	idempotency IdempotencyStore
	catalog     CatalogSnapshotReader
	orders      OrderWriter
	tx          TxRunner
	validator   *Validator
	logger      *slog.Logger
}

// NewProcessor wires the orchestrator from its collaborators.
func NewProcessor(
	idempotency IdempotencyStore,
	catalog CatalogSnapshotReader,
	orders OrderWriter,
	tx TxRunner,
	validator *Validator,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		idempotency: idempotency,
		catalog:     catalog,
		orders:      orders,
		tx:          tx,
		validator:   validator,
		logger:      logger,
	}
}

// Process runs a batch under the (key, digest) idempotency pair.
//
// Replays return ErrAlreadyProcessed (completed run) or ErrBeingProcessed
// (run still in flight); a previous FAILED run for the same pair is reclaimed
// and retried. Row-level validation failures are collected into the result,
// never returned as errors. Infrastructural failures after reservation mark
// the batch FAILED and surface unchanged, except a finalize failure, which
// surfaces with the batch left in PROCESSING for the caller to observe.
func (p *Processor) Process(
	ctx context.Context,
	key, digest string,
	rows []Row,
) (*BatchResult, error) {
	p.logger.Info("starting batch processing",
		slog.String("idempotency_key", key),
		slog.String("file_digest", digest),
		slog.Int("rows", len(rows)),
	)

	// Phase 1: replay detection.
	if err := p.checkReplay(ctx, key, digest); err != nil {
		return nil, err
	}

	// Phase 2: atomic reservation. A racing request may have reserved between
	// the lookup and here; the unique constraint decides the winner.
	batch, err := p.idempotency.Reserve(ctx, key, digest)
	if err != nil {
		if errors.Is(err, ErrAlreadyReserved) {
			return nil, fmt.Errorf("%w: %w", ErrAlreadyProcessed, err)
		}

		return nil, fmt.Errorf("failed to reserve batch load: %w", err)
	}

	// Phase 3: point-in-time catalog snapshot.
	snapshot, err := p.catalog.LoadSnapshot(ctx)
	if err != nil {
		p.fail(ctx, batch)

		return nil, fmt.Errorf("failed to load catalog snapshot: %w", err)
	}

	// Phase 4: pure per-row validation.
	validOrders, rowErrors := p.validator.ProcessRows(rows, snapshot)

	// Phases 5 and 6 share one transaction: no orders are committed unless the
	// batch load is finalized in the same stroke, and vice versa.
	var (
		finalized    *BatchLoad
		insertFailed bool
	)

	txErr := p.tx.WithTx(ctx, func(ctx context.Context) error {
		if len(validOrders) > 0 {
			if err := p.orders.CreateOrders(ctx, validOrders); err != nil {
				insertFailed = true

				return fmt.Errorf("failed to insert orders: %w", err)
			}
		}

		finalized, err = p.idempotency.Finalize(ctx, batch.ID, len(rows), len(validOrders), rowErrors)
		if err != nil {
			return fmt.Errorf("failed to finalize batch load: %w", err)
		}

		return nil
	})

	if txErr != nil {
		if insertFailed {
			p.fail(ctx, batch)
		}
		// A finalize failure leaves the batch in PROCESSING; the reserved row
		// is still there and the caller sees the run as unfinalized.
		return nil, txErr
	}

	p.logger.Info("batch processing completed",
		slog.String("batch_load_id", finalized.ID.String()),
		slog.Int("total_processed", len(rows)),
		slog.Int("stored", len(validOrders)),
		slog.Int("errors", len(rowErrors)),
	)

	return &BatchResult{
		BatchID:        finalized.ID,
		TotalProcessed: len(rows),
		StoredCount:    len(validOrders),
		Errors:         rowErrors,
	}, nil
}

// checkReplay maps an existing batch load for (key, digest) to the replay
// sentinels. A FAILED run is treated as not-present: the reservation phase
// reclaims it.
func (p *Processor) checkReplay(ctx context.Context, key, digest string) error {
	existing, err := p.idempotency.Lookup(ctx, key, digest)
	if err != nil {
		if errors.Is(err, ErrBatchNotFound) {
			return nil
		}

		return fmt.Errorf("idempotency lookup failed: %w", err)
	}

	switch existing.Status {
	case BatchCompleted:
		p.logger.Info("replay of completed batch rejected",
			slog.String("batch_load_id", existing.ID.String()),
			slog.String("idempotency_key", key),
		)

		return ErrAlreadyProcessed
	case BatchProcessing:
		return ErrBeingProcessed
	case BatchFailed:
		// Reserve reclaims the failed row atomically.
		return nil
	}

	return nil
}

// fail marks the reserved batch FAILED so the reservation is not lost.
// The original error is what the caller sees; a failure to fail is only logged.
func (p *Processor) fail(ctx context.Context, batch *BatchLoad) {
	if _, err := p.idempotency.Fail(ctx, batch.ID); err != nil {
		p.logger.Error("failed to mark batch load as failed",
			slog.String("batch_load_id", batch.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
