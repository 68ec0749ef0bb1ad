package datefmt

import (
	"testing"
	"time"
)

func TestWIBConvertsTimezone(t *testing.T) {
	// 2025-01-02 10:00:00 UTC is 17:00:00 in Jakarta (UTC+7)
	got := WIB("2025-01-02T10:00:00Z")
	want := "02/01/2025 17.00.00"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestWIBPlaceholder(t *testing.T) {
	cases := []string{"", "not-a-date", "2025-13-45T99:00:00Z"}
	for _, in := range cases {
		if got := WIB(in); got != Placeholder {
			t.Errorf("WIB(%q): expected placeholder, got %q", in, got)
		}
	}
}

func TestCSVLocalWallClock(t *testing.T) {
	// CSV formatting uses the local clock, not Jakarta
	in := "2025-01-02T10:30:45Z"
	parsed, ok := Parse(in)
	if !ok {
		t.Fatal("Parse failed")
	}
	want := parsed.Local().Format("2006-01-02 15:04:05")
	if got := CSV(in); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestCSVEmptyForAbsent(t *testing.T) {
	if got := CSV(""); got != "" {
		t.Errorf("Expected empty cell, got %q", got)
	}
	if got := CSV("garbage"); got != "" {
		t.Errorf("Expected empty cell for unparsable input, got %q", got)
	}
}

func TestDisplayAndCSVDiverge(t *testing.T) {
	// The display conversion applies the WIB offset, the CSV one does not;
	// on any host not running in UTC+7 the two strings must differ.
	if time.Local.String() == "Asia/Jakarta" {
		t.Skip("local zone is Jakarta, conversions coincide")
	}
	in := "2025-06-15T08:00:00Z"
	if WIB(in) == CSV(in) {
		t.Error("Expected display and CSV renderings to differ")
	}
}

func TestParseLayouts(t *testing.T) {
	cases := []string{
		"2025-01-02T10:00:00Z",
		"2025-01-02T10:00:00.123Z",
		"2025-01-02T10:00:00+07:00",
		"2025-01-02T10:00:00",
		"2025-01-02 10:00:00",
		"2025-01-02",
	}
	for _, in := range cases {
		if _, ok := Parse(in); !ok {
			t.Errorf("Parse(%q) failed", in)
		}
	}
}

func TestUnixMilli(t *testing.T) {
	if UnixMilli("") != 0 {
		t.Error("Expected zero for absent input")
	}
	a := UnixMilli("2025-01-02T10:00:00Z")
	b := UnixMilli("2025-01-02T11:00:00Z")
	if a >= b {
		t.Errorf("Expected increasing instants, got %v >= %v", a, b)
	}
}
