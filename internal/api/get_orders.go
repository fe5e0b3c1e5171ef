// Package api provides the HTTP server for the orders batch service.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/CodAressss/orders-batch-service/internal/api/middleware"
	"github.com/CodAressss/orders-batch-service/internal/ingest"
	"github.com/CodAressss/orders-batch-service/internal/storage"
)

// handleListOrders returns persisted orders, newest first.
// Supports optional clientId, status, zoneId, deliveryDate, limit and offset
// query parameters.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := storage.OrderFilter{
		ClientID: query.Get("clientId"),
		Status:   query.Get("status"),
		ZoneID:   query.Get("zoneId"),
	}

	var err error

	if raw := query.Get("deliveryDate"); raw != "" {
		filter.DeliveryDate, err = time.Parse(dateLayout, raw)
		if err != nil {
			WriteErrorResponse(w, r, s.logger,
				BadRequest(ingest.CodeFormatInvalid, "deliveryDate must be a YYYY-MM-DD date"))

			return
		}
	}

	filter.Limit, err = parseIntParam(query.Get("limit"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger,
			BadRequest(ingest.CodeFormatInvalid, "limit must be a non-negative integer"))

		return
	}

	filter.Offset, err = parseIntParam(query.Get("offset"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger,
			BadRequest(ingest.CodeFormatInvalid, "offset must be a non-negative integer"))

		return
	}

	orders, err := s.orders.ListOrders(r.Context(), filter)
	if err != nil {
		s.logger.Error("Order listing failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger,
			InternalServerError("An unexpected error occurred while listing orders"))

		return
	}

	resources := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		resources = append(resources, newOrderResponse(order))
	}

	s.writeJSON(w, r, http.StatusOK, OrderListResponse{
		Orders: resources,
		Count:  len(resources),
	})
}

// handleGetOrder returns a single order by its business order number.
func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := r.PathValue("orderNumber")

	order, err := s.orders.FindByNumber(r.Context(), orderNumber)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			WriteErrorResponse(w, r, s.logger, NotFound("order not found"))

			return
		}

		s.logger.Error("Order lookup failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("order_number", orderNumber),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger,
			InternalServerError("An unexpected error occurred while fetching the order"))

		return
	}

	s.writeJSON(w, r, http.StatusOK, newOrderResponse(order))
}

// parseIntParam parses an optional non-negative integer query parameter.
// An empty value is zero.
func parseIntParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New("invalid integer parameter")
	}

	return value, nil
}
