package ingest

import (
	"strings"
	"testing"
	"time"
)

// fixedClock pins "now" to 2026-03-10 15:04:05 in the business timezone so
// date-boundary tests are deterministic.
func fixedClock(t *testing.T) func() time.Time {
	t.Helper()

	lima, err := time.LoadLocation("America/Lima")
	if err != nil {
		t.Fatalf("failed to load America/Lima: %v", err)
	}

	instant := time.Date(2026, time.March, 10, 15, 4, 5, 0, lima)

	return func() time.Time { return instant }
}

func newTestValidator(t *testing.T, policy *Policy) *Validator {
	t.Helper()

	if policy == nil {
		policy = &Policy{BusinessTimezone: "America/Lima"}
	}

	validator, err := NewValidator(policy, WithClock(fixedClock(t)))
	if err != nil {
		t.Fatalf("NewValidator() failed: %v", err)
	}

	return validator
}

func testSnapshot() *CatalogSnapshot {
	return &CatalogSnapshot{
		ActiveClients: map[string]struct{}{
			"CLI-1": {},
			"CLI-2": {},
		},
		Zones: map[string]bool{
			"ZONA1": true,  // cold chain capable
			"ZONA2": false, // ambient only
		},
		ExistingOrderNumbers: map[string]struct{}{
			"EXISTING-1": {},
		},
	}
}

func validRow() Row {
	return Row{
		LineNumber:            2,
		OrderNumber:           "P001",
		ClientID:              "CLI-1",
		DeliveryDate:          "2026-03-11",
		Status:                "PENDING",
		ZoneID:                "ZONA1",
		RequiresRefrigeration: true,
	}
}

func TestValidateRow_Valid(t *testing.T) {
	validator := newTestValidator(t, nil)
	seen := map[string]struct{}{}

	order, rowErr := validator.ValidateRow(validRow(), testSnapshot(), seen)
	if rowErr != nil {
		t.Fatalf("ValidateRow() rejected a valid row: %+v", rowErr)
	}

	if order.OrderNumber != "P001" || order.Status != StatusPending {
		t.Errorf("validated order incorrect: %+v", order)
	}

	if order.DeliveryDate.Format("2006-01-02") != "2026-03-11" {
		t.Errorf("delivery date = %v, want 2026-03-11", order.DeliveryDate)
	}

	if _, recorded := seen["P001"]; !recorded {
		t.Errorf("accepted order number not recorded in the seen set")
	}
}

func TestValidateRow_RuleFailures(t *testing.T) {
	cases := []struct {
		name        string
		mutate      func(*Row)
		wantCode    ErrorCode
		wantMessage string
	}{
		{
			name:        "missing order number",
			mutate:      func(r *Row) { r.OrderNumber = "" },
			wantCode:    CodeOrderNumberInvalid,
			wantMessage: "order number is required",
		},
		{
			name:        "malformed order number",
			mutate:      func(r *Row) { r.OrderNumber = "P 001!" },
			wantCode:    CodeOrderNumberInvalid,
			wantMessage: "order number must be alphanumeric",
		},
		{
			name:        "persisted duplicate",
			mutate:      func(r *Row) { r.OrderNumber = "EXISTING-1" },
			wantCode:    CodeOrderDuplicate,
			wantMessage: "an order already exists with number: EXISTING-1",
		},
		{
			name:        "missing client",
			mutate:      func(r *Row) { r.ClientID = "" },
			wantCode:    CodeClientNotFound,
			wantMessage: "client ID is required",
		},
		{
			name:        "unknown client",
			mutate:      func(r *Row) { r.ClientID = "CLI-404" },
			wantCode:    CodeClientNotFound,
			wantMessage: "client not found or inactive: CLI-404",
		},
		{
			name:        "invalid status",
			mutate:      func(r *Row) { r.Status = "SHIPPED" },
			wantCode:    CodeStatusInvalid,
			wantMessage: "invalid status: SHIPPED",
		},
		{
			name:        "missing zone",
			mutate:      func(r *Row) { r.ZoneID = "" },
			wantCode:    CodeZoneNotFound,
			wantMessage: "zone ID is required",
		},
		{
			name:        "unknown zone",
			mutate:      func(r *Row) { r.ZoneID = "ZONA9" },
			wantCode:    CodeZoneNotFound,
			wantMessage: "zone not found: ZONA9",
		},
		{
			name:        "cold chain unsupported",
			mutate:      func(r *Row) { r.ZoneID = "ZONA2" },
			wantCode:    CodeColdChainUnsupported,
			wantMessage: "zone ZONA2 does not support cold chain",
		},
		{
			name:        "missing delivery date",
			mutate:      func(r *Row) { r.DeliveryDate = "" },
			wantCode:    CodeDeliveryDatePast,
			wantMessage: "delivery date is required",
		},
		{
			name:        "malformed delivery date",
			mutate:      func(r *Row) { r.DeliveryDate = "11/03/2026" },
			wantCode:    CodeDeliveryDatePast,
			wantMessage: "invalid date format: 11/03/2026 (use YYYY-MM-DD)",
		},
		{
			name:        "past delivery date",
			mutate:      func(r *Row) { r.DeliveryDate = "2026-03-09" },
			wantCode:    CodeDeliveryDatePast,
			wantMessage: "delivery date cannot be in the past: 2026-03-09",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validator := newTestValidator(t, nil)
			row := validRow()
			tc.mutate(&row)

			_, rowErr := validator.ValidateRow(row, testSnapshot(), map[string]struct{}{})
			if rowErr == nil {
				t.Fatalf("ValidateRow() accepted the row, want %s", tc.wantCode)
			}

			if rowErr.Code != tc.wantCode {
				t.Errorf("code = %s, want %s", rowErr.Code, tc.wantCode)
			}

			if !strings.Contains(rowErr.Message, tc.wantMessage) {
				t.Errorf("message = %q, want it to contain %q", rowErr.Message, tc.wantMessage)
			}

			if rowErr.LineNumber != row.LineNumber {
				t.Errorf("line number = %d, want %d", rowErr.LineNumber, row.LineNumber)
			}
		})
	}
}

// A row that violates several rules reports only the first one in rule order.
func TestValidateRow_FirstFailureWins(t *testing.T) {
	validator := newTestValidator(t, nil)

	row := validRow()
	row.ClientID = "CLI-404"  // rule 3
	row.Status = "SHIPPED"    // rule 4
	row.ZoneID = "ZONA9"      // rule 5
	row.DeliveryDate = "2020" // rules 7 and 8

	_, rowErr := validator.ValidateRow(row, testSnapshot(), map[string]struct{}{})
	if rowErr == nil {
		t.Fatal("ValidateRow() accepted a multiply-invalid row")
	}

	if rowErr.Code != CodeClientNotFound {
		t.Errorf("code = %s, want %s (earliest failing rule)", rowErr.Code, CodeClientNotFound)
	}
}

func TestValidateRow_DateBoundaries(t *testing.T) {
	validator := newTestValidator(t, nil)

	cases := []struct {
		date string
		ok   bool
	}{
		{"2026-03-09", false}, // yesterday
		{"2026-03-10", true},  // today is allowed
		{"2026-03-11", true},  // tomorrow
	}

	for _, tc := range cases {
		row := validRow()
		row.DeliveryDate = tc.date

		_, rowErr := validator.ValidateRow(row, testSnapshot(), map[string]struct{}{})
		if (rowErr == nil) != tc.ok {
			t.Errorf("delivery date %s: accepted=%v, want %v", tc.date, rowErr == nil, tc.ok)
		}
	}
}

func TestValidateRow_StatusCaseInsensitive(t *testing.T) {
	validator := newTestValidator(t, nil)

	for _, raw := range []string{"pending", "Pending", "CONFIRMED", "delivered"} {
		row := validRow()
		row.Status = raw

		order, rowErr := validator.ValidateRow(row, testSnapshot(), map[string]struct{}{})
		if rowErr != nil {
			t.Errorf("status %q rejected: %+v", raw, rowErr)

			continue
		}

		if order.Status != OrderStatus(strings.ToUpper(raw)) {
			t.Errorf("status %q normalized to %s", raw, order.Status)
		}
	}
}

func TestValidateRow_StrictOrderNumbers(t *testing.T) {
	validator := newTestValidator(t, &Policy{
		StrictOrderNumbers: true,
		BusinessTimezone:   "America/Lima",
	})

	accepted := validRow()
	accepted.OrderNumber = "P001"

	if _, rowErr := validator.ValidateRow(accepted, testSnapshot(), map[string]struct{}{}); rowErr != nil {
		t.Errorf("strict pattern rejected P001: %+v", rowErr)
	}

	for _, number := range []string{"p001", "P0001", "PX01", "ORDER-1"} {
		row := validRow()
		row.OrderNumber = number

		_, rowErr := validator.ValidateRow(row, testSnapshot(), map[string]struct{}{})
		if rowErr == nil || rowErr.Code != CodeOrderNumberInvalid {
			t.Errorf("strict pattern accepted %q", number)
		}
	}
}

func TestProcessRows_IntraBatchDuplicate(t *testing.T) {
	validator := newTestValidator(t, nil)

	first := validRow()
	second := validRow()
	second.LineNumber = 3 // same order number as first

	orders, rowErrors := validator.ProcessRows([]Row{first, second}, testSnapshot())

	if len(orders) != 1 {
		t.Fatalf("stored %d orders, want 1 (first copy wins)", len(orders))
	}

	if len(rowErrors) != 1 {
		t.Fatalf("got %d row errors, want 1", len(rowErrors))
	}

	if rowErrors[0].LineNumber != 3 || rowErrors[0].Code != CodeOrderDuplicate {
		t.Errorf("duplicate not reported on line 3: %+v", rowErrors[0])
	}
}

func TestProcessRows_PartialSuccessPreservesOrder(t *testing.T) {
	validator := newTestValidator(t, nil)

	rows := []Row{
		{LineNumber: 2, OrderNumber: "P001", ClientID: "CLI-1", DeliveryDate: "2026-03-11", Status: "PENDING", ZoneID: "ZONA1"},
		{LineNumber: 3, OrderNumber: "P002", ClientID: "CLI-404", DeliveryDate: "2026-03-11", Status: "PENDING", ZoneID: "ZONA1"},
		{LineNumber: 4, OrderNumber: "P003", ClientID: "CLI-2", DeliveryDate: "2026-03-11", Status: "PENDING", ZoneID: "ZONA2"},
		{LineNumber: 5, OrderNumber: "", ClientID: "CLI-1", DeliveryDate: "2026-03-11", Status: "PENDING", ZoneID: "ZONA1"},
	}

	orders, rowErrors := validator.ProcessRows(rows, testSnapshot())

	if len(orders) != 2 {
		t.Fatalf("stored %d orders, want 2", len(orders))
	}

	if orders[0].OrderNumber != "P001" || orders[1].OrderNumber != "P003" {
		t.Errorf("valid orders out of input order: %+v", orders)
	}

	if len(rowErrors) != 2 {
		t.Fatalf("got %d row errors, want 2", len(rowErrors))
	}

	if rowErrors[0].LineNumber != 3 || rowErrors[1].LineNumber != 5 {
		t.Errorf("errors out of input order: %+v", rowErrors)
	}
}

func TestProcessRows_AllRowsInvalid(t *testing.T) {
	validator := newTestValidator(t, nil)

	rows := []Row{
		{LineNumber: 2, OrderNumber: "P001", ClientID: "CLI-404", DeliveryDate: "2026-03-11", Status: "PENDING", ZoneID: "ZONA1"},
		{LineNumber: 3, OrderNumber: "P002", ClientID: "CLI-404", DeliveryDate: "2026-03-11", Status: "PENDING", ZoneID: "ZONA1"},
	}

	orders, rowErrors := validator.ProcessRows(rows, testSnapshot())

	if len(orders) != 0 || len(rowErrors) != 2 {
		t.Errorf("got %d orders and %d errors, want 0 and 2", len(orders), len(rowErrors))
	}
}
