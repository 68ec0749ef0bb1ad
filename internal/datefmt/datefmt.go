// Package datefmt converts the backend's ISO timestamps for display and
// for CSV. The two conversions are deliberately different: display
// converts to WIB (Asia/Jakarta), CSV keeps local wall-clock time.
package datefmt

import (
	"sync"
	"time"
)

// Placeholder rendered for absent or unparsable timestamps.
const Placeholder = "—"

var (
	jakartaOnce sync.Once
	jakarta     *time.Location
)

func wib() *time.Location {
	jakartaOnce.Do(func() {
		loc, err := time.LoadLocation("Asia/Jakarta")
		if err != nil {
			// UTC+7, no DST
			loc = time.FixedZone("WIB", 7*60*60)
		}
		jakarta = loc
	})
	return jakarta
}

// layouts the backend is known to emit, most specific first.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse parses an ISO-8601-ish timestamp string. ok is false for empty or
// unparsable input.
func Parse(ts string) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// WIB formats a timestamp for on-screen display in Asia/Jakarta with a
// 24-hour clock. Absent or unparsable input renders as the placeholder.
func WIB(ts string) string {
	t, ok := Parse(ts)
	if !ok {
		return Placeholder
	}
	return t.In(wib()).Format("02/01/2006 15.04.05")
}

// CSV formats a timestamp as "YYYY-MM-DD HH:mm:ss" in local wall-clock
// time for CSV cells. No timezone conversion is applied beyond the local
// clock; absent or unparsable input renders as an empty cell.
func CSV(ts string) string {
	t, ok := Parse(ts)
	if !ok {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// UnixMilli returns the instant as epoch milliseconds for sorting, zero
// for absent/unparsable input.
func UnixMilli(ts string) float64 {
	t, ok := Parse(ts)
	if !ok {
		return 0
	}
	return float64(t.UnixMilli())
}
