package csvx

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"
)

type item struct {
	ID   int64
	Name string
}

func TestEscapeScenario(t *testing.T) {
	// a cell containing `a,"b"\nc` must be escaped as `"a,""b""\nc"`
	got := Row([]any{`a,"b"` + "\nc"}, ',')
	want := `"a,""b""` + "\nc\""
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestExportQuotedName(t *testing.T) {
	rows := []item{{ID: 1, Name: `Item, "X"`}}
	cols := []Column[item]{
		{Header: "ID", Value: func(r item, _ int) any { return r.ID }},
		{Header: "Nama Item", Value: func(r item, _ int) any { return r.Name }},
	}

	doc := Document(rows, cols, ',')
	lines := strings.Split(doc, "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "ID,Nama Item" {
		t.Errorf("Unexpected header: %q", lines[0])
	}
	if lines[1] != `1,"Item, ""X"""` {
		t.Errorf("Unexpected row: %q", lines[1])
	}
}

func TestPlainCellsNotQuoted(t *testing.T) {
	got := Row([]any{"plain", 12, 3.5, nil}, ',')
	if got != "plain,12,3.5," {
		t.Errorf("Unexpected row: %q", got)
	}
}

func TestDelimiterAwareQuoting(t *testing.T) {
	// With a semicolon delimiter a comma needs no quoting, a semicolon does
	if got := Row([]any{"a,b"}, ';'); got != "a,b" {
		t.Errorf("Expected unquoted comma cell, got %q", got)
	}
	if got := Row([]any{"a;b"}, ';'); got != `"a;b"` {
		t.Errorf("Expected quoted semicolon cell, got %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	rows := []item{
		{1, "plain"},
		{2, "with, comma"},
		{3, `with "quotes"`},
		{4, "with\nnewline"},
		{5, `mix, "of"` + "\r\nall"},
		{6, ""},
	}
	cols := []Column[item]{
		{Header: "ID", Value: func(r item, _ int) any { return r.ID }},
		{Header: "Name", Value: func(r item, _ int) any { return r.Name }},
	}

	doc := Document(rows, cols, ',')

	rd := csv.NewReader(strings.NewReader(doc))
	records, err := rd.ReadAll()
	if err != nil {
		t.Fatalf("Generated CSV failed to parse: %v", err)
	}
	if len(records) != len(rows)+1 {
		t.Fatalf("Expected %d records, got %d", len(rows)+1, len(records))
	}
	for i, r := range rows {
		rec := records[i+1]
		if rec[0] != CellString(r.ID) {
			t.Errorf("row %d: id %q != %q", i, rec[0], CellString(r.ID))
		}
		// encoding/csv normalizes \r\n inside quoted cells to \n
		want := strings.ReplaceAll(r.Name, "\r\n", "\n")
		if rec[1] != want {
			t.Errorf("row %d: name %q != %q", i, rec[1], want)
		}
	}
}

func TestEmptyRowSet(t *testing.T) {
	cols := []Column[item]{
		{Header: "ID", Value: func(r item, _ int) any { return r.ID }},
	}
	doc := Document(nil, cols, ',')
	if doc != "ID" {
		t.Errorf("Expected header only, got %q", doc)
	}
}

func TestWithBOM(t *testing.T) {
	out := WithBOM("a,b")
	if !strings.HasPrefix(out, "\ufeff") {
		t.Error("Expected BOM prefix")
	}
	if strings.TrimPrefix(out, "\ufeff") != "a,b" {
		t.Error("BOM must not alter the document body")
	}
}

func TestFilename(t *testing.T) {
	ts := time.Date(2025, 8, 31, 12, 34, 56, 0, time.UTC)
	got := Filename("items", ts)
	if got != "items_2025-08-31123456.csv" {
		t.Errorf("Unexpected filename: %q", got)
	}
}
