// Package ingest provides the batch ingestion domain: CSV row models, the
// per-row validation rules, and the orchestrator that composes idempotency
// reservation, catalog snapshots, and transactional persistence.
package ingest

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrorCode identifies a validation or processing failure.
// Codes are stable and machine-readable; they travel verbatim in API responses
// and in the persisted batch_load_errors rows.
type ErrorCode string

// Structural codes abort the whole batch before any reservation happens.
const (
	CodeFormatInvalid ErrorCode = "FORMAT_INVALID"
	CodeFieldRequired ErrorCode = "FIELD_REQUIRED"
)

// Replay codes abort the batch after the idempotency lookup.
const (
	CodeAlreadyProcessed ErrorCode = "ALREADY_PROCESSED"
	CodeBeingProcessed   ErrorCode = "BEING_PROCESSED"
)

// Row-level codes are collected per row; they never abort the batch.
const (
	CodeOrderNumberInvalid   ErrorCode = "ORDER_NUMBER_INVALID"
	CodeOrderDuplicate       ErrorCode = "ORDER_DUPLICATE"
	CodeClientNotFound       ErrorCode = "CLIENT_NOT_FOUND"
	CodeZoneNotFound         ErrorCode = "ZONE_NOT_FOUND"
	CodeColdChainUnsupported ErrorCode = "COLD_CHAIN_UNSUPPORTED"
	CodeDeliveryDatePast     ErrorCode = "DELIVERY_DATE_PAST"
	CodeStatusInvalid        ErrorCode = "STATUS_INVALID"
)

// Remaining codes cover authentication and infrastructure failures.
const (
	CodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	CodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// Sentinel errors for batch processing failures.
var (
	// ErrAlreadyProcessed is returned when the (key, digest) pair belongs to a
	// completed batch. Replays are rejected, never silently deduplicated.
	ErrAlreadyProcessed = errors.New("batch already processed")

	// ErrBeingProcessed is returned when the (key, digest) pair belongs to a
	// batch still in PROCESSING state.
	ErrBeingProcessed = errors.New("batch is being processed")

	// ErrAlreadyReserved is returned by the idempotency store when a concurrent
	// request won the reservation race on (key, digest).
	ErrAlreadyReserved = errors.New("batch load already reserved")

	// ErrBatchNotFound is returned when a batch load lookup by ID finds nothing.
	ErrBatchNotFound = errors.New("batch load not found")

	// ErrBatchFinalized is returned on attempts to mutate a batch load that has
	// already reached a terminal state (COMPLETED or FAILED).
	ErrBatchFinalized = errors.New("batch load already finalized")
)

type (
	// Row is a single parsed data line of the upload. All fields are raw,
	// trimmed strings except RequiresRefrigeration; validation happens later.
	// Rows are immutable after parsing.
	Row struct {
		// LineNumber is 1-based counting the header: the first data row is 2.
		LineNumber            int
		OrderNumber           string
		ClientID              string
		DeliveryDate          string
		Status                string
		ZoneID                string
		RequiresRefrigeration bool
	}

	// OrderStatus is the lifecycle state of an order carried in the upload.
	OrderStatus string

	// ValidatedOrder is an order that passed every validation rule.
	// It is produced only by Validator.ValidateRow and is safe to persist.
	ValidatedOrder struct {
		OrderNumber           string
		ClientID              string
		DeliveryDate          time.Time
		Status                OrderStatus
		ZoneID                string
		RequiresRefrigeration bool
	}

	// RowError describes a single rejected row. Exactly one error is reported
	// per failed row: the first rule that failed, in rule order.
	RowError struct {
		LineNumber int       `json:"lineNumber"`
		Code       ErrorCode `json:"code"`
		Message    string    `json:"message"`
	}

	// CatalogSnapshot is a point-in-time, immutable view of the referential
	// data a batch validates against. It is captured once per batch and never
	// refreshed mid-batch; the unique constraint on orders.order_number catches
	// the race with concurrent writers at commit time.
	CatalogSnapshot struct {
		// ActiveClients holds the IDs of clients with active = TRUE.
		ActiveClients map[string]struct{}

		// Zones maps zone ID to its refrigeration capability.
		Zones map[string]bool

		// ExistingOrderNumbers holds every order number already persisted.
		ExistingOrderNumbers map[string]struct{}
	}

	// BatchStatus is the lifecycle state of a BatchLoad.
	BatchStatus string

	// BatchLoad is the persisted audit record of one upload attempt, keyed by
	// (IdempotencyKey, FileDigest). COMPLETED describes the run, not its
	// outcome: a batch where every row failed still completes.
	BatchLoad struct {
		ID             uuid.UUID
		IdempotencyKey string
		FileDigest     string
		Status         BatchStatus
		TotalProcessed int
		SuccessCount   int
		ErrorCount     int
		Errors         []RowError
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	// BatchResult is the orchestrator's summary of a completed run.
	BatchResult struct {
		BatchID        uuid.UUID
		TotalProcessed int
		StoredCount    int
		Errors         []RowError
	}

	// StructuralError aborts the whole batch before reservation. The parser
	// raises it for header and format problems; the HTTP layer maps it to 400.
	StructuralError struct {
		Code    ErrorCode
		Message string
	}
)

// Order statuses accepted by the upload, parsed case-insensitively.
const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusDelivered OrderStatus = "DELIVERED"
)

// Batch load lifecycle states. PROCESSING is the only non-terminal state.
const (
	BatchProcessing BatchStatus = "PROCESSING"
	BatchCompleted  BatchStatus = "COMPLETED"
	BatchFailed     BatchStatus = "FAILED"
)

// ParseOrderStatus parses a raw status field case-insensitively.
// Returns ("", false) when the value is not a known status.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	switch OrderStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusConfirmed:
		return StatusConfirmed, true
	case StatusDelivered:
		return StatusDelivered, true
	}

	return "", false
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewStructuralError creates a StructuralError with the given code and message.
func NewStructuralError(code ErrorCode, message string) *StructuralError {
	return &StructuralError{Code: code, Message: message}
}

// ErrorCount returns the number of rejected rows.
func (r *BatchResult) ErrorCount() int {
	return len(r.Errors)
}

// ErrorsByCode aggregates the row errors into code → occurrence counts.
func (r *BatchResult) ErrorsByCode() map[ErrorCode]int {
	counts := make(map[ErrorCode]int, len(r.Errors))
	for _, e := range r.Errors {
		counts[e.Code]++
	}

	return counts
}

// Terminal reports whether the batch load reached a state that forbids
// further counter or children mutation.
func (b *BatchLoad) Terminal() bool {
	return b.Status == BatchCompleted || b.Status == BatchFailed
}
