package schema

// convert.go handles the messy reality of user-authored input values:
// multiple date formats, currency symbols and thousand separators, Excel
// formula prefixes, and punctuation inside tax IDs and unit codes.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the unambiguous form all dates are normalized to.
const DateLayout = "2006-01-02"

// numericRegex validates a numeric string after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// keyStripRegex removes everything that is not a letter or digit, so
// "ABC-010203-XY9" and "abc 010203 xy9" normalize to the same key.
var keyStripRegex = regexp.MustCompile(`[^A-Za-z0-9]+`)

// TwoDigitYearPivot defines how 2-digit years are interpreted. Years that
// would land more than this many years in the future are pushed back a
// century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		DateLayout, "2006-01-02T15:04:05", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
	// Day-first layouts cover Spanish-locale exports. Tried only after the
	// month-first layouts fail, so ambiguous dates resolve month-first,
	// deterministically.
	dayFirstLayouts = []string{
		"2/1/2006", "02/01/2006", "2-1-2006", "2.1.2006",
	}
)

// CleanCell removes common artifacts from a cell value:
// whitespace, Excel formula prefix (="..."), and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// ParseDate parses a date in any of the accepted layouts.
// Returns ok=false for empty or unrecognized input.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// RFC 3339 timestamps show up in electronic-invoice documents.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// ParseAmount parses a monetary amount. Handles currency symbols, thousand
// separators, and accounting format (parentheses for negative).
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// NormalizeKey canonicalizes a natural key or reference code for matching:
// punctuation and spacing stripped, uppercased. "srv-001 a" == "SRV001A".
func NormalizeKey(s string) string {
	return strings.ToUpper(keyStripRegex.ReplaceAllString(s, ""))
}
