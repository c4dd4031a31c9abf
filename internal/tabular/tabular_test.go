package tabular

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	input := "\ufeff Folio ,Fecha,Importe\nSRV-001,2026-03-15,1200.00\nSRV-002,2026-03-16,450.00\n"

	grid, err := Parse([]byte(input), KindCSV)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	wantHeaders := []string{"Folio", "Fecha", "Importe"}
	if len(grid.Headers) != len(wantHeaders) {
		t.Fatalf("headers = %v, want %v", grid.Headers, wantHeaders)
	}
	for i, h := range wantHeaders {
		if grid.Headers[i] != h {
			t.Errorf("header[%d] = %q, want %q (must be BOM-free and trimmed)", i, grid.Headers[i], h)
		}
	}

	if len(grid.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(grid.Rows))
	}
	if grid.Rows[0][0] != "SRV-001" {
		t.Errorf("row[0][0] = %q, want SRV-001", grid.Rows[0][0])
	}
}

func TestParseCSVShortRowPadded(t *testing.T) {
	input := "a,b,c\n1,2\n"

	grid, err := Parse([]byte(input), KindCSV)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(grid.Rows) != 1 || len(grid.Rows[0]) != 3 {
		t.Fatalf("rows = %v, want one 3-wide row", grid.Rows)
	}
	if grid.Rows[0][2] != "" {
		t.Errorf("missing cell = %q, want empty string", grid.Rows[0][2])
	}
}

func TestParseCSVSkipsEmptyRows(t *testing.T) {
	input := "\n\na,b\n1,2\n,\n3,4\n"

	grid, err := Parse([]byte(input), KindCSV)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(grid.Rows) != 2 {
		t.Errorf("rows = %d, want 2 (blank lines skipped)", len(grid.Rows))
	}
}

func TestParseCSVWrongDelimiter(t *testing.T) {
	// Semicolon-delimited content reads as a one-column file.
	input := "Folio;Fecha;Importe\nSRV-001;2026-03-15;1200\nSRV-002;2026-03-16;450\n"

	_, err := Parse([]byte(input), KindCSV)
	if !errors.Is(err, ErrMalformedFile) {
		t.Fatalf("Parse() error = %v, want ErrMalformedFile", err)
	}
}

func TestParseCSVEmptyFile(t *testing.T) {
	_, err := Parse([]byte("  \n \n"), KindCSV)
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("Parse() error = %v, want ErrEmptyFile", err)
	}
}

func TestParseCSVInvalidUTF8Cell(t *testing.T) {
	// A legacy-encoded byte inside a cell must not abort the parse.
	input := []byte("a,b\nval\xff1,2\n")

	grid, err := Parse(input, KindCSV)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(grid.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(grid.Rows))
	}
	if !strings.Contains(grid.Rows[0][0], "�") {
		t.Errorf("cell = %q, want replacement rune inside", grid.Rows[0][0])
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Folio", "Fecha", "Importe"}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow(sheet, "A2", &[]any{"SRV-001", "3/15/2026", 1200.5}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	grid, err := Parse(buf.Bytes(), KindXLSX)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(grid.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(grid.Rows))
	}
	if grid.Rows[0][1] != "2026-03-15" {
		t.Errorf("date cell = %q, want normalized 2026-03-15", grid.Rows[0][1])
	}
	if grid.Rows[0][2] != "1200.5" {
		t.Errorf("numeric cell = %q, want 1200.5 untouched", grid.Rows[0][2])
	}
}

func TestParseXLSXGarbage(t *testing.T) {
	_, err := Parse([]byte("this is not a zip archive"), KindXLSX)
	if !errors.Is(err, ErrMalformedFile) {
		t.Fatalf("Parse() error = %v, want ErrMalformedFile", err)
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"orders.csv", KindCSV},
		{"orders.XLSX", KindXLSX},
		{"orders.xlsm", KindXLSX},
		{"orders.txt", KindCSV},
		{"orders", KindCSV},
	}
	for _, tt := range tests {
		if got := DetectKind(tt.name); got != tt.want {
			t.Errorf("DetectKind(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
