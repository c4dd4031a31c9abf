// Package tabular turns delimited-text and spreadsheet bytes into a flat
// grid of header + data rows. It is deliberately format-agnostic upward:
// spreadsheet numerics and dates are coerced to normalized strings here so
// later stages only ever see text.
package tabular

import (
	"errors"
	"path/filepath"
	"strings"
)

// Kind identifies the declared input format.
type Kind string

const (
	KindCSV  Kind = "csv"
	KindXLSX Kind = "xlsx"
)

// MaxFileSize is the maximum accepted input size (bytes). Overridable from
// configuration at startup.
var MaxFileSize int64 = 20 * 1024 * 1024

// ErrMalformedFile indicates structurally unreadable input: nothing was or
// will be parsed from it.
var ErrMalformedFile = errors.New("malformed input file")

// ErrEmptyFile indicates the input contained no header row.
var ErrEmptyFile = errors.New("empty input file")

// Grid is the parsed form of a tabular input: one trimmed header row and the
// data rows below it, in file order. Rows are padded to the header width;
// a malformed individual cell is an empty string, never a parse failure.
type Grid struct {
	Headers []string
	Rows    [][]string
}

// DetectKind guesses the input kind from a file name. Defaults to CSV.
func DetectKind(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls":
		return KindXLSX
	default:
		return KindCSV
	}
}

// Parse parses raw file bytes of the declared kind into a Grid.
// Structural failures return ErrMalformedFile (wrapped); there are no
// partial grids on error.
func Parse(data []byte, kind Kind) (*Grid, error) {
	if int64(len(data)) > MaxFileSize {
		return nil, errors.New("file exceeds maximum size")
	}

	switch kind {
	case KindXLSX:
		return parseXLSX(data)
	default:
		return parseCSV(data)
	}
}

// padRow brings a short row up to the header width. Cells the file did not
// supply read as empty strings downstream.
func padRow(row []string, width int) []string {
	for len(row) < width {
		row = append(row, "")
	}
	return row[:width]
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
