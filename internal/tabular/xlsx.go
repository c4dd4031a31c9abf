package tabular

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mkarlsen/opsimport/internal/schema"
)

// parseXLSX reads the first sheet of a spreadsheet into a Grid. Cell values
// arrive from excelize already formatted per the workbook's number formats;
// anything that reads as a date is re-normalized to YYYY-MM-DD so the rest
// of the pipeline never has to care which locale authored the file.
func parseXLSX(data []byte) (*Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrMalformedFile, sheets[0], err)
	}

	headerAt := -1
	for i, rec := range records {
		if !isEmptyRow(rec) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, ErrEmptyFile
	}

	headers := make([]string, len(records[headerAt]))
	for i, h := range records[headerAt] {
		headers[i] = schema.CleanCell(h)
	}

	var rows [][]string
	for _, rec := range records[headerAt+1:] {
		if isEmptyRow(rec) {
			continue
		}
		rec = padRow(rec, len(headers))
		for i, cell := range rec {
			rec[i] = normalizeCell(cell)
		}
		rows = append(rows, rec)
	}

	return &Grid{Headers: headers, Rows: rows}, nil
}

// normalizeCell coerces spreadsheet cell text to pipeline-neutral form.
// Date-shaped values are rewritten as YYYY-MM-DD; everything else is passed
// through trimmed.
func normalizeCell(s string) string {
	s = schema.CleanCell(s)
	if s == "" {
		return s
	}

	// Only values with a date separator are candidates; plain numbers like
	// "1250.50" must not be reinterpreted.
	if strings.ContainsAny(s, "/-") {
		if t, ok := schema.ParseDate(s); ok {
			return t.Format(schema.DateLayout)
		}
	}

	return s
}
