// Package api provides the HTTP server for the orders batch service.
package api

import (
	"time"

	"github.com/CodAressss/orders-batch-service/internal/ingest"
	"github.com/CodAressss/orders-batch-service/internal/storage"
)

// dateLayout is the wire format for delivery dates.
const dateLayout = "2006-01-02"

type (
	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName"`
		Version     string `json:"version"`
		Uptime      string `json:"uptime,omitempty"`
	}

	// BatchLoadResponse is the upload result returned by the load endpoint.
	// It is returned for both outcomes: 201 when at least one row was stored,
	// 422 when every row was rejected.
	BatchLoadResponse struct {
		BatchLoadID    string            `json:"batchLoadId"`
		TotalProcessed int               `json:"totalProcessed"`
		StoredCount    int               `json:"storedCount"`
		ErrorCount     int               `json:"errorCount"`
		ErrorsByCode   map[string]int    `json:"errorsByCode"`
		ErrorDetails   []ingest.RowError `json:"errorDetails"`
	}

	// BatchLoadDetail is the audit view of one batch load returned by the
	// batch load lookup endpoint.
	BatchLoadDetail struct {
		BatchLoadID    string            `json:"batchLoadId"`
		IdempotencyKey string            `json:"idempotencyKey"`
		FileDigest     string            `json:"fileDigest"`
		Status         string            `json:"status"`
		TotalProcessed int               `json:"totalProcessed"`
		SuccessCount   int               `json:"successCount"`
		ErrorCount     int               `json:"errorCount"`
		Errors         []ingest.RowError `json:"errors"`
		CreatedAt      time.Time         `json:"createdAt"`
		UpdatedAt      time.Time         `json:"updatedAt"`
	}

	// OrderResponse is the read model for a single persisted order.
	OrderResponse struct {
		ID                    string    `json:"id"`
		OrderNumber           string    `json:"orderNumber"`
		ClientID              string    `json:"clientId"`
		DeliveryDate          string    `json:"deliveryDate"`
		Status                string    `json:"status"`
		ZoneID                string    `json:"zoneId"`
		RequiresRefrigeration bool      `json:"requiresRefrigeration"`
		CreatedAt             time.Time `json:"createdAt"`
	}

	// OrderListResponse wraps a page of orders.
	OrderListResponse struct {
		Orders []OrderResponse `json:"orders"`
		Count  int             `json:"count"`
	}

	// SignInRequest carries operator credentials.
	SignInRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	// SignInResponse carries the issued bearer token.
	SignInResponse struct {
		Token     string `json:"token"`
		TokenType string `json:"tokenType"`
		ExpiresIn int64  `json:"expiresIn"`
	}
)

// newBatchLoadResponse converts an orchestrator result into the wire shape.
// ErrorDetails is never null in JSON, even for clean batches.
func newBatchLoadResponse(result *ingest.BatchResult) *BatchLoadResponse {
	byCode := make(map[string]int, len(result.Errors))
	for code, count := range result.ErrorsByCode() {
		byCode[string(code)] = count
	}

	details := result.Errors
	if details == nil {
		details = []ingest.RowError{}
	}

	return &BatchLoadResponse{
		BatchLoadID:    result.BatchID.String(),
		TotalProcessed: result.TotalProcessed,
		StoredCount:    result.StoredCount,
		ErrorCount:     result.ErrorCount(),
		ErrorsByCode:   byCode,
		ErrorDetails:   details,
	}
}

// newBatchLoadDetail converts a persisted batch load into the wire shape.
func newBatchLoadDetail(batch *ingest.BatchLoad) *BatchLoadDetail {
	rowErrors := batch.Errors
	if rowErrors == nil {
		rowErrors = []ingest.RowError{}
	}

	return &BatchLoadDetail{
		BatchLoadID:    batch.ID.String(),
		IdempotencyKey: batch.IdempotencyKey,
		FileDigest:     batch.FileDigest,
		Status:         string(batch.Status),
		TotalProcessed: batch.TotalProcessed,
		SuccessCount:   batch.SuccessCount,
		ErrorCount:     batch.ErrorCount,
		Errors:         rowErrors,
		CreatedAt:      batch.CreatedAt,
		UpdatedAt:      batch.UpdatedAt,
	}
}

// newOrderResponse converts a persisted order into the wire shape.
func newOrderResponse(order *storage.Order) OrderResponse {
	return OrderResponse{
		ID:                    order.ID.String(),
		OrderNumber:           order.OrderNumber,
		ClientID:              order.ClientID,
		DeliveryDate:          order.DeliveryDate.Format(dateLayout),
		Status:                order.Status,
		ZoneID:                order.ZoneID,
		RequiresRefrigeration: order.RequiresRefrigeration,
		CreatedAt:             order.CreatedAt,
	}
}
