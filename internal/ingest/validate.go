package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mkarlsen/opsimport/internal/catalog"
	"github.com/mkarlsen/opsimport/internal/schema"
	"github.com/mkarlsen/opsimport/internal/tabular"
)

// ErrMissingHeaders is returned when required canonical fields are absent
// from the mapped header set. Nothing row-level runs after this.
var ErrMissingHeaders = errors.New("required columns missing")

// HeaderError carries the header-level issues alongside ErrMissingHeaders so
// callers can present them the same way as row issues.
type HeaderError struct {
	Missing []string
	Issues  []Issue
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("required columns missing: %s", strings.Join(e.Missing, ", "))
}

func (e *HeaderError) Unwrap() error { return ErrMissingHeaders }

// Validator runs one validation pass over normalized rows against a catalog
// snapshot. A Validator is cheap; build one per pass.
type Validator struct {
	Catalog  *catalog.Catalog
	Default  catalog.DefaultPolicy // nil means catalog.FirstEntry
	Progress ProgressFunc
}

// ValidateGrid normalizes a tabular grid's headers and validates its rows.
// Returns a *HeaderError (wrapping ErrMissingHeaders) before any row-level
// work when required columns are absent.
func (v *Validator) ValidateGrid(grid *tabular.Grid) (*ValidationResult, error) {
	if err := CheckHeaders(grid.Headers); err != nil {
		return nil, err
	}
	return v.ValidateRows(CanonicalRows(grid)), nil
}

// CheckHeaders maps a raw header row onto canonical fields and reports
// missing required fields as a *HeaderError, or nil when the set is
// complete. This is the only stage that can fail a batch before row-level
// work begins.
func CheckHeaders(headers []string) error {
	missing := schema.MissingRequired(headers)
	if len(missing) == 0 {
		return nil
	}

	he := &HeaderError{Missing: missing}
	for _, field := range missing {
		he.Issues = append(he.Issues, Issue{
			Row:      HeaderRow,
			Field:    field,
			Message:  "required column is missing from the file header",
			Severity: SeverityError,
		})
	}
	return he
}

// CanonicalRows converts a grid's positional rows into canonical-keyed maps
// using the header synonym table.
func CanonicalRows(grid *tabular.Grid) []map[string]string {
	canonical := make([]string, len(grid.Headers))
	for i, h := range grid.Headers {
		canonical[i] = schema.Normalize(h)
	}

	rows := make([]map[string]string, len(grid.Rows))
	for i, rec := range grid.Rows {
		row := make(map[string]string, len(canonical))
		for j, field := range canonical {
			if j < len(rec) {
				row[field] = schema.CleanCell(rec[j])
			}
		}
		rows[i] = row
	}
	return rows
}

// ValidateRows validates canonical-keyed rows in input order and assembles
// the session-level result. The pass is a pure accumulation: the same rows
// and catalog snapshot always produce an identical result.
func (v *Validator) ValidateRows(rows []map[string]string) *ValidationResult {
	res := &ValidationResult{TotalRows: len(rows)}
	seen := make(map[string]bool) // normalized keys accepted this pass

	for i, row := range rows {
		v.validateRow(res, seen, i, row)
		report(v.Progress, StageValidating, i+1, len(rows))
	}

	return res
}

func (v *Validator) validateRow(res *ValidationResult, seen map[string]bool, idx int, row map[string]string) {
	docNum := row[schema.FieldDocumentNumber]
	if docNum == "" {
		res.addError(idx, schema.FieldDocumentNumber, "", "document number is required")
		return
	}

	// Duplicate checks come first: against records already in the store,
	// then against rows accepted earlier in this pass.
	key := schema.NormalizeKey(docNum)
	if v.Catalog.KeyUsed(docNum) {
		res.addError(idx, schema.FieldDocumentNumber, docNum, fmt.Sprintf("document %q already exists", docNum))
		return
	}
	if seen[key] {
		res.addError(idx, schema.FieldDocumentNumber, docNum, fmt.Sprintf("document %q appears more than once in this file", docNum))
		return
	}

	rec := Resolved{DocumentNumber: docNum, Description: row[schema.FieldDescription]}

	// Required references short-circuit the row: one unresolved reference
	// means we do not partially resolve the rest.
	required := []struct {
		field   string
		kind    string
		entries []catalog.Entry
		assign  func(catalog.Entry)
	}{
		{schema.FieldCounterpartyTaxID, "counterparty", v.Catalog.Counterparties, func(e catalog.Entry) { rec.CounterpartyID = e.ID }},
		{schema.FieldUnitCode, "equipment unit", v.Catalog.Units, func(e catalog.Entry) { rec.UnitID = e.ID }},
		{schema.FieldPersonnelCode, "personnel", v.Catalog.Personnel, func(e catalog.Entry) { rec.PersonnelID = e.ID }},
	}
	for _, ref := range required {
		value := row[ref.field]
		if value == "" {
			res.addError(idx, ref.field, "", fmt.Sprintf("%s reference is required", ref.kind))
			return
		}
		entry, ok := catalog.Match(ref.entries, value)
		if !ok {
			res.addError(idx, ref.field, value, fmt.Sprintf("no %s matches %q", ref.kind, value))
			return
		}
		ref.assign(entry)
	}

	// Business rules.
	rawDate := row[schema.FieldRequestDate]
	date, ok := schema.ParseDate(rawDate)
	if !ok {
		res.addError(idx, schema.FieldRequestDate, rawDate, "request date is missing or not a recognizable date")
		return
	}
	rec.RequestDate = date

	rawAmount := row[schema.FieldAmount]
	amount, ok := schema.ParseAmount(rawAmount)
	if !ok {
		res.addError(idx, schema.FieldAmount, rawAmount, "amount is missing or not a number")
		return
	}
	if amount <= 0 {
		res.addError(idx, schema.FieldAmount, rawAmount, "amount must be positive")
		return
	}
	rec.Amount = amount

	// Category is optional: absent or unmatched falls back to the default
	// policy and warns, never errors.
	rawCategory := row[schema.FieldCategory]
	if entry, ok := catalog.Match(v.Catalog.Categories, rawCategory); ok {
		rec.CategoryID = entry.ID
	} else {
		policy := v.Default
		if policy == nil {
			policy = catalog.FirstEntry
		}
		fallback, ok := policy(v.Catalog.Categories)
		if ok {
			rec.CategoryID = fallback.ID
		}
		msg := fmt.Sprintf("category %q not found; using %q", rawCategory, fallback.DisplayName)
		switch {
		case !ok && rawCategory == "":
			msg = "no category given and the catalog has none to default to"
		case !ok:
			msg = fmt.Sprintf("category %q not found and the catalog has none to default to", rawCategory)
		case rawCategory == "":
			msg = fmt.Sprintf("no category given; using %q", fallback.DisplayName)
		}
		res.Issues = append(res.Issues, Issue{
			Row: idx, Field: schema.FieldCategory, Value: rawCategory,
			Message: msg, Severity: SeverityWarning,
		})
		res.WarningCount++
	}

	seen[key] = true
	res.ValidRows = append(res.ValidRows, rec)
	res.ValidCount++
}

func (r *ValidationResult) addError(row int, field, value, msg string) {
	r.Issues = append(r.Issues, Issue{
		Row: row, Field: field, Value: value, Message: msg, Severity: SeverityError,
	})
	r.ErrorCount++
}
