package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"

	"github.com/mkarlsen/opsimport/internal/schema"
)

// parseCSV reads comma-separated UTF-8 text (optional byte-order mark) into
// a Grid. The first non-empty record is the header; header names are
// whitespace-trimmed. A structurally inconsistent body (most rows not
// matching the header width, which is what a wrong delimiter looks like)
// aborts the whole parse.
func parseCSV(data []byte) (*Grid, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}

	// First non-empty record is the header.
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
	if len(headers) < 2 {
		// A single-column header over a multi-row body almost always means
		// the file uses a different delimiter.
		if len(records) > headerAt+1 {
			return nil, fmt.Errorf("%w: only one column detected, wrong delimiter?", ErrMalformedFile)
		}
	}

	var rows [][]string
	ragged := 0
	for _, rec := range records[headerAt+1:] {
		if isEmptyRow(rec) {
			continue
		}
		if len(rec) != len(headers) {
			ragged++
		}
		rows = append(rows, padRow(rec, len(headers)))
	}

	if len(rows) > 0 && ragged*2 > len(rows) {
		return nil, fmt.Errorf("%w: %d of %d rows do not match the %d-column header",
			ErrMalformedFile, ragged, len(rows), len(headers))
	}

	return &Grid{Headers: headers, Rows: rows}, nil
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune so
// encoding/csv never chokes on stray legacy-encoded bytes.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
