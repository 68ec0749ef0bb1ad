// Package csvx turns rows plus column definitions into escaped CSV text.
// Text generation is pure; writing the bytes anywhere is the caller's
// problem (HTTP response, export sink, ...).
package csvx

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BOM is prepended to CSV output so spreadsheet tools detect UTF-8.
const BOM = "\uFEFF"

// DefaultDelimiter separates cells unless the caller overrides it.
const DefaultDelimiter = ','

// Column maps a row to one cell. Value may return a string, any integer
// or float type, or nil for an empty cell.
type Column[T any] struct {
	Header string
	Value  func(row T, index int) any
}

// CellString renders a single cell value. nil renders as an empty cell.
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// escape quotes a cell iff it contains the delimiter, a double quote, or a
// newline; embedded quotes are doubled.
func escape(s string, delim rune) string {
	if !strings.ContainsAny(s, string(delim)+"\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Row renders one CSV line from already-extracted cell values.
func Row(fields []any, delim rune) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = escape(CellString(f), delim)
	}
	return strings.Join(parts, string(delim))
}

// Document renders the full CSV text: header row then one line per input
// row, joined by \n. No BOM; see WithBOM.
func Document[T any](rows []T, columns []Column[T], delim rune) string {
	if delim == 0 {
		delim = DefaultDelimiter
	}

	headers := make([]any, len(columns))
	for i, c := range columns {
		headers[i] = c.Header
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, Row(headers, delim))
	for i, r := range rows {
		fields := make([]any, len(columns))
		for j, c := range columns {
			fields[j] = c.Value(r, i)
		}
		lines = append(lines, Row(fields, delim))
	}
	return strings.Join(lines, "\n")
}

// WithBOM prefixes the UTF-8 byte-order-mark for download output.
func WithBOM(csv string) string {
	return BOM + csv
}

// Filename builds a timestamped export filename, e.g.
// items_2025-01-02030405.csv.
func Filename(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s.csv", prefix, t.Format("2006-01-02150405"))
}
