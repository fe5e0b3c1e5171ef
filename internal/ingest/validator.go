package ingest

import (
	"fmt"
	"regexp"
	"time"
)

// deliveryDateLayout is the only accepted delivery date format.
const deliveryDateLayout = "2006-01-02"

// Order-number shapes, pre-compiled at package initialization.
//
// The liberal pattern is the wire contract; the strict pattern is the
// documented recommendation, enforced only when the policy opts in.
var (
	liberalOrderNumberPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	strictOrderNumberPattern  = regexp.MustCompile(`^[A-Z][0-9]{3}$`)
)

type (
	// Validator applies the business rules to parsed rows. It is a pure
	// function over (row, snapshot, seen-set); all reference data is
	// pre-loaded, so validation never touches the database.
	//
	// Rules are applied in a fixed order and the first failure determines the
	// reported code:
	//
	//  1. order number present and well-formed   ORDER_NUMBER_INVALID
	//  2. order number not already taken         ORDER_DUPLICATE
	//  3. client known and active                CLIENT_NOT_FOUND
	//  4. status is PENDING|CONFIRMED|DELIVERED  STATUS_INVALID
	//  5. zone known                             ZONE_NOT_FOUND
	//  6. refrigeration supported by the zone    COLD_CHAIN_UNSUPPORTED
	//  7. delivery date parses as YYYY-MM-DD     DELIVERY_DATE_PAST
	//  8. delivery date not before today         DELIVERY_DATE_PAST
	Validator struct {
		orderNumberPattern *regexp.Regexp
		location           *time.Location
		now                func() time.Time
	}

	// ValidatorOption configures optional Validator behavior.
	ValidatorOption func(*Validator)
)

// WithClock overrides the time source used to compute "today".
// Intended for tests; production code uses time.Now.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.now = now
	}
}

// NewValidator creates a Validator from the given policy.
// Returns an error if the configured business timezone cannot be resolved.
func NewValidator(policy *Policy, opts ...ValidatorOption) (*Validator, error) {
	location, err := policy.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve business timezone: %w", err)
	}

	pattern := liberalOrderNumberPattern
	if policy.StrictOrderNumbers {
		pattern = strictOrderNumberPattern
	}

	validator := &Validator{
		orderNumberPattern: pattern,
		location:           location,
		now:                time.Now,
	}

	for _, opt := range opts {
		opt(validator)
	}

	return validator, nil
}

// ValidateRow validates a single row against the snapshot and the mutable
// seen-set. On success it returns the validated order and records the order
// number in seen, so a second copy of the same number within one upload is
// rejected as ORDER_DUPLICATE. On failure it returns a RowError for the first
// rule that failed; a row produces either an order or an error, never both.
func (v *Validator) ValidateRow(
	row Row,
	snapshot *CatalogSnapshot,
	seen map[string]struct{},
) (ValidatedOrder, *RowError) {
	// Rule 1: order number present and well-formed.
	if row.OrderNumber == "" {
		return ValidatedOrder{}, rowError(row, CodeOrderNumberInvalid, "order number is required")
	}

	if !v.orderNumberPattern.MatchString(row.OrderNumber) {
		return ValidatedOrder{}, rowError(row, CodeOrderNumberInvalid,
			"order number must be alphanumeric: "+row.OrderNumber)
	}

	// Rule 2: not persisted already and not accepted earlier in this batch.
	if _, taken := seen[row.OrderNumber]; taken {
		return ValidatedOrder{}, rowError(row, CodeOrderDuplicate,
			"an order already exists with number: "+row.OrderNumber)
	}

	// Rule 3: client known and active.
	if row.ClientID == "" {
		return ValidatedOrder{}, rowError(row, CodeClientNotFound, "client ID is required")
	}

	if _, active := snapshot.ActiveClients[row.ClientID]; !active {
		return ValidatedOrder{}, rowError(row, CodeClientNotFound,
			"client not found or inactive: "+row.ClientID)
	}

	// Rule 4: status is one of the accepted values.
	status, ok := ParseOrderStatus(row.Status)
	if !ok {
		return ValidatedOrder{}, rowError(row, CodeStatusInvalid, fmt.Sprintf(
			"invalid status: %s (valid: %s, %s, %s)",
			row.Status, StatusPending, StatusConfirmed, StatusDelivered,
		))
	}

	// Rule 5: zone known.
	if row.ZoneID == "" {
		return ValidatedOrder{}, rowError(row, CodeZoneNotFound, "zone ID is required")
	}

	refrigerationCapable, known := snapshot.Zones[row.ZoneID]
	if !known {
		return ValidatedOrder{}, rowError(row, CodeZoneNotFound, "zone not found: "+row.ZoneID)
	}

	// Rule 6: cold chain supported when requested.
	if row.RequiresRefrigeration && !refrigerationCapable {
		return ValidatedOrder{}, rowError(row, CodeColdChainUnsupported,
			"zone "+row.ZoneID+" does not support cold chain")
	}

	// Rule 7: delivery date parses as YYYY-MM-DD.
	if row.DeliveryDate == "" {
		return ValidatedOrder{}, rowError(row, CodeDeliveryDatePast, "delivery date is required")
	}

	deliveryDate, err := time.ParseInLocation(deliveryDateLayout, row.DeliveryDate, v.location)
	if err != nil {
		return ValidatedOrder{}, rowError(row, CodeDeliveryDatePast,
			"invalid date format: "+row.DeliveryDate+" (use YYYY-MM-DD)")
	}

	// Rule 8: delivery date is not in the past. "Today" is computed in the
	// business timezone; a delivery date equal to today is allowed.
	if deliveryDate.Before(v.today()) {
		return ValidatedOrder{}, rowError(row, CodeDeliveryDatePast,
			"delivery date cannot be in the past: "+row.DeliveryDate)
	}

	seen[row.OrderNumber] = struct{}{}

	return ValidatedOrder{
		OrderNumber:           row.OrderNumber,
		ClientID:              row.ClientID,
		DeliveryDate:          deliveryDate,
		Status:                status,
		ZoneID:                row.ZoneID,
		RequiresRefrigeration: row.RequiresRefrigeration,
	}, nil
}

// ProcessRows validates every row in input order, accumulating validated
// orders and row errors. The seen-set is seeded from the snapshot's existing
// order numbers, so the first copy of a duplicated number in the upload wins
// and later copies are rejected. Error output order equals input row order.
func (v *Validator) ProcessRows(
	rows []Row,
	snapshot *CatalogSnapshot,
) ([]ValidatedOrder, []RowError) {
	seen := make(map[string]struct{}, len(snapshot.ExistingOrderNumbers)+len(rows))
	for number := range snapshot.ExistingOrderNumbers {
		seen[number] = struct{}{}
	}

	validOrders := make([]ValidatedOrder, 0, len(rows))
	rowErrors := make([]RowError, 0)

	for _, row := range rows {
		order, rowErr := v.ValidateRow(row, snapshot, seen)
		if rowErr != nil {
			rowErrors = append(rowErrors, *rowErr)

			continue
		}

		validOrders = append(validOrders, order)
	}

	return validOrders, rowErrors
}

// today returns midnight of the current day in the business timezone,
// expressed in the same location the delivery dates are parsed in, so the
// Before comparison is a pure date comparison.
func (v *Validator) today() time.Time {
	now := v.now().In(v.location)

	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, v.location)
}

func rowError(row Row, code ErrorCode, message string) *RowError {
	return &RowError{
		LineNumber: row.LineNumber,
		Code:       code,
		Message:    message,
	}
}
