package ingest

import (
	"fmt"
	"strings"
)

// expectedColumnCount is the fixed width of the upload format.
const expectedColumnCount = 6

// expectedHeader is the required header row, in order. The format is fixed;
// there is no column discovery.
var expectedHeader = [expectedColumnCount]string{
	"orderNumber",
	"clientId",
	"deliveryDate",
	"status",
	"zoneId",
	"requiresRefrigeration",
}

// ParseOrders decodes an uploaded tabular blob into its ordered row sequence.
//
// The format is UTF-8, comma-separated, CRLF or LF line endings, one header
// row followed by data rows. Fields are trimmed; quoting is not part of the
// format. The header is line 1, so the first data row carries line number 2.
//
// Structural problems (missing header, wrong column names or count, no data
// rows) abort the whole batch with a *StructuralError carrying
// CodeFormatInvalid; no idempotency reservation happens for structural
// failures. Data rows with fewer than six fields are right-padded with empty
// strings so validation can report a proper per-row error instead of
// aborting. Blank lines are skipped silently.
func ParseOrders(data []byte) ([]Row, error) {
	lines := splitLines(string(data))

	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, NewStructuralError(CodeFormatInvalid, "file is empty")
	}

	if err := validateHeader(lines[0]); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(lines)-1)

	for i, line := range lines[1:] {
		lineNumber := i + 2 // header is line 1

		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := splitFields(line)

		rows = append(rows, Row{
			LineNumber:            lineNumber,
			OrderNumber:           fields[0],
			ClientID:              fields[1],
			DeliveryDate:          fields[2],
			Status:                fields[3],
			ZoneID:                fields[4],
			RequiresRefrigeration: ParseLiberalBool(fields[5]),
		})
	}

	if len(rows) == 0 {
		return nil, NewStructuralError(CodeFormatInvalid, "file contains no data rows")
	}

	return rows, nil
}

// ParseLiberalBool parses the refrigeration flag liberally: "true", "1", "si"
// and "sí" (case-insensitive) are true, everything else is false. The accepted
// set is part of the wire contract; "yes", "y" and "on" deliberately stay
// false.
func ParseLiberalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "si", "sí":
		return true
	}

	return false
}

// validateHeader checks the header row: exactly six columns with the expected
// names, matched after trimming.
func validateHeader(line string) error {
	fields := strings.Split(line, ",")
	if len(fields) != expectedColumnCount {
		return NewStructuralError(CodeFormatInvalid, fmt.Sprintf(
			"expected %d header columns, found %d", expectedColumnCount, len(fields),
		))
	}

	for i, field := range fields {
		if strings.TrimSpace(field) != expectedHeader[i] {
			return NewStructuralError(CodeFormatInvalid, fmt.Sprintf(
				"header column %d must be %q, found %q",
				i+1, expectedHeader[i], strings.TrimSpace(field),
			))
		}
	}

	return nil
}

// splitLines splits the blob on LF, dropping a trailing CR from each line so
// both CRLF and LF uploads parse identically.
func splitLines(data string) []string {
	lines := strings.Split(data, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	// A trailing newline produces one empty trailing element; drop it so it
	// does not count as a data line.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	return lines
}

// splitFields splits a data line on commas, trims each field, and right-pads
// short lines to the expected width. Extra columns beyond the sixth are
// ignored; the header already pinned the format to six.
func splitFields(line string) [expectedColumnCount]string {
	var fields [expectedColumnCount]string

	for i, field := range strings.Split(line, ",") {
		if i >= expectedColumnCount {
			break
		}

		fields[i] = strings.TrimSpace(field)
	}

	return fields
}
