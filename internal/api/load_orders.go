// Package api provides the HTTP server for the orders batch service.
package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CodAressss/orders-batch-service/internal/api/middleware"
	"github.com/CodAressss/orders-batch-service/internal/events"
	"github.com/CodAressss/orders-batch-service/internal/ingest"
)

// uploadFieldName is the multipart form field carrying the CSV file.
const uploadFieldName = "file"

// maxIdempotencyKeyLength matches the batch_loads.idempotency_key column.
const maxIdempotencyKeyLength = 50

// eventPublishTimeout bounds the best-effort Kafka publish after a batch
// completes. The upload response never waits on broker availability longer
// than this.
const eventPublishTimeout = 5 * time.Second

// handleLoadOrders accepts a CSV upload and runs it through the batch
// pipeline.
//
// The request must carry an Idempotency-Key header and a multipart "file"
// field. Structural problems (missing key, bad header, malformed rows)
// return 400 before anything is persisted. Replays of a completed or
// in-flight batch return 409. Otherwise the batch always completes:
// 201 when at least one row was stored, 422 when every row was rejected,
// both with the same result body.
func (s *Server) handleLoadOrders(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSize)

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		WriteErrorResponse(w, r, s.logger,
			BadRequest(ingest.CodeFieldRequired, "Idempotency-Key header is required"))

		return
	}

	// The ledger column is varchar(50); reject oversized keys before
	// reserving instead of surfacing a constraint violation as a 500.
	if len(key) > maxIdempotencyKeyLength {
		WriteErrorResponse(w, r, s.logger,
			BadRequest(ingest.CodeFormatInvalid, "Idempotency-Key must be at most 50 characters"))

		return
	}

	file, _, err := r.FormFile(uploadFieldName)
	if err != nil {
		WriteErrorResponse(w, r, s.logger,
			BadRequest(ingest.CodeFieldRequired, `multipart field "file" is required`))

		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("Failed to read uploaded file",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger,
			BadRequest(ingest.CodeFormatInvalid, "failed to read uploaded file"))

		return
	}

	if len(bytes.TrimSpace(data)) == 0 {
		WriteErrorResponse(w, r, s.logger,
			BadRequest(ingest.CodeFormatInvalid, "uploaded file is empty"))

		return
	}

	// The digest covers the raw bytes, not the parsed rows: the same key with
	// different file content is a distinct batch.
	digest := ingest.Digest(data)

	rows, err := ingest.ParseOrders(data)
	if err != nil {
		var structural *ingest.StructuralError
		if errors.As(err, &structural) {
			WriteErrorResponse(w, r, s.logger,
				BadRequest(structural.Code, structural.Message))

			return
		}

		WriteErrorResponse(w, r, s.logger,
			BadRequest(ingest.CodeFormatInvalid, "failed to parse uploaded file"))

		return
	}

	result, err := s.processor.Process(r.Context(), key, digest, rows)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrAlreadyProcessed):
			WriteErrorResponse(w, r, s.logger,
				Conflict(ingest.CodeAlreadyProcessed,
					"this file was already processed under the given idempotency key"))
		case errors.Is(err, ingest.ErrBeingProcessed):
			WriteErrorResponse(w, r, s.logger,
				Conflict(ingest.CodeBeingProcessed,
					"this file is currently being processed"))
		default:
			s.logger.Error("Batch processing failed",
				slog.String("correlation_id", correlationID),
				slog.String("idempotency_key", key),
				slog.String("error", err.Error()),
			)

			WriteErrorResponse(w, r, s.logger,
				InternalServerError("An unexpected error occurred while processing the batch"))
		}

		return
	}

	s.publishBatchCompleted(key, digest, result)

	status := http.StatusCreated
	if result.StoredCount == 0 {
		status = http.StatusUnprocessableEntity
	}

	s.writeJSON(w, r, status, newBatchLoadResponse(result))
}

// publishBatchCompleted emits the completion event when a publisher is
// configured. Delivery is best effort: a broker failure is logged and the
// upload response is unaffected.
func (s *Server) publishBatchCompleted(key, digest string, result *ingest.BatchResult) {
	if !s.publisher.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
	defer cancel()

	event := events.BatchCompleted{
		BatchLoadID:    result.BatchID.String(),
		IdempotencyKey: key,
		FileDigest:     digest,
		TotalProcessed: result.TotalProcessed,
		StoredCount:    result.StoredCount,
		ErrorCount:     result.ErrorCount(),
		CompletedAt:    time.Now().UTC(),
	}

	if err := s.publisher.PublishBatchCompleted(ctx, event); err != nil {
		s.logger.Warn("Failed to publish batch completed event",
			slog.String("batch_load_id", event.BatchLoadID),
			slog.String("error", err.Error()),
		)
	}
}
