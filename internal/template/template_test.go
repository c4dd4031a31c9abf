package template

import (
	"testing"

	"github.com/mkarlsen/opsimport/internal/schema"
	"github.com/mkarlsen/opsimport/internal/tabular"
)

// Templates must round-trip: generate, parse, normalize, zero header errors.

func TestCSVRoundTrip(t *testing.T) {
	data, err := CSV()
	if err != nil {
		t.Fatalf("CSV() error = %v", err)
	}

	grid, err := tabular.Parse(data, tabular.KindCSV)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if missing := schema.MissingRequired(grid.Headers); len(missing) != 0 {
		t.Errorf("generated CSV template fails header validation: missing %v", missing)
	}
	if len(grid.Rows) != 1 {
		t.Errorf("rows = %d, want 1 sample row", len(grid.Rows))
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	data, err := XLSX()
	if err != nil {
		t.Fatalf("XLSX() error = %v", err)
	}

	grid, err := tabular.Parse(data, tabular.KindXLSX)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if missing := schema.MissingRequired(grid.Headers); len(missing) != 0 {
		t.Errorf("generated XLSX template fails header validation: missing %v", missing)
	}
	if len(grid.Rows) != 1 {
		t.Errorf("rows = %d, want 1 sample row", len(grid.Rows))
	}
}
