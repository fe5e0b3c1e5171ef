// Package api provides the HTTP server for the orders batch service.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/CodAressss/orders-batch-service/internal/api/middleware"
	"github.com/CodAressss/orders-batch-service/internal/ingest"
)

// handleGetBatchLoad returns the audit record of one batch load, including
// its persisted row errors.
func (s *Server) handleGetBatchLoad(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger,
			BadRequest(ingest.CodeFormatInvalid, "batch load id must be a UUID"))

		return
	}

	batch, err := s.batches.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ingest.ErrBatchNotFound) {
			WriteErrorResponse(w, r, s.logger, NotFound("batch load not found"))

			return
		}

		s.logger.Error("Batch load lookup failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("batch_load_id", id.String()),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger,
			InternalServerError("An unexpected error occurred while fetching the batch load"))

		return
	}

	s.writeJSON(w, r, http.StatusOK, newBatchLoadDetail(batch))
}
