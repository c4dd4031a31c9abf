// Package template emits blank import templates whose header row matches
// the canonical header table exactly, so a filled-in template always passes
// header validation on the way back in.
package template

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mkarlsen/opsimport/internal/schema"
)

// sampleRow is one illustrative record shipped with every template.
var sampleRow = []string{
	"SRV-001", "2026-03-15", "TAL980305XY1", "ECO-102", "EMP-31",
	"Mantenimiento", "1250.50", "Afinacion mayor motor",
}

// CSV renders the delimited-text template.
func CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(schema.TemplateHeaders()); err != nil {
		return nil, fmt.Errorf("write template header: %w", err)
	}
	if err := w.Write(sampleRow); err != nil {
		return nil, fmt.Errorf("write template sample row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush template: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSX renders the spreadsheet template.
func XLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	headers := schema.TemplateHeaders()
	headerCells := make([]any, len(headers))
	for i, h := range headers {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerCells); err != nil {
		return nil, fmt.Errorf("write template header: %w", err)
	}

	sampleCells := make([]any, len(sampleRow))
	for i, v := range sampleRow {
		sampleCells[i] = v
	}
	if err := f.SetSheetRow(sheet, "A2", &sampleCells); err != nil {
		return nil, fmt.Errorf("write template sample row: %w", err)
	}

	// Widen columns so the sample is readable when opened.
	last, err := excelize.ColumnNumberToName(len(headers))
	if err == nil {
		_ = f.SetColWidth(sheet, "A", last, 22)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render spreadsheet template: %w", err)
	}
	return buf.Bytes(), nil
}
