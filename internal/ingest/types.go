// Package ingest orchestrates the import pipeline: parsed rows are
// normalized, resolved against the reference catalog, validated into a
// ValidationResult, and — after the caller confirms — committed in batches
// to the record store. This package has no transport dependencies and can be
// driven by the HTTP surface, the CLI, or tests alike.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity classifies a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// HeaderRow marks an Issue that applies to the header set rather than to
// any data row.
const HeaderRow = -1

// Issue is one validation finding against a row or the header set.
// Issues are append-only; the validator never mutates one after emitting it.
type Issue struct {
	Row      int      `json:"row"` // 0-based input row index, or HeaderRow
	Field    string   `json:"field,omitempty"`
	Value    string   `json:"value,omitempty"` // Offending raw value
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Resolved is a row whose references have all been converted to internal
// identifiers, ready to persist. CategoryID may be unset (uuid.Nil) when the
// catalog has no categories at all.
type Resolved struct {
	DocumentNumber string
	RequestDate    time.Time
	CounterpartyID uuid.UUID
	UnitID         uuid.UUID
	PersonnelID    uuid.UUID
	CategoryID     uuid.UUID
	Amount         float64
	Description    string
}

// ValidationResult is the session-level outcome of one validation pass.
type ValidationResult struct {
	TotalRows    int        `json:"totalRows"`
	ValidCount   int        `json:"validCount"`
	ErrorCount   int        `json:"errorCount"`
	WarningCount int        `json:"warningCount"`
	Issues       []Issue    `json:"issues"`
	ValidRows    []Resolved `json:"-"`
}

// IsValid reports whether the batch is importable. Warnings alone do not
// block an import.
func (r *ValidationResult) IsValid() bool {
	return r.ErrorCount == 0
}

// UploadResult is the outcome of one commit pass.
type UploadResult struct {
	Success      bool     `json:"success"` // True iff no row failed to persist
	Processed    int      `json:"processed"`
	Failed       int      `json:"failed"`
	Message      string   `json:"message"`
	InsertedKeys []string `json:"insertedKeys"`
}

// Stage identifies which pipeline phase a progress report belongs to.
type Stage string

const (
	StageParsing    Stage = "parsing"
	StageValidating Stage = "validating"
	StageCommitting Stage = "committing"
)

// Progress is one progress report. Percentage is 0-100 over rows, not bytes.
type Progress struct {
	Stage      Stage `json:"stage"`
	Processed  int   `json:"processed"`
	Total      int   `json:"total"`
	Percentage int   `json:"percentage"`
}

// ProgressFunc receives progress reports: once at parse completion, per
// validated row, and per committed row. May be nil.
type ProgressFunc func(Progress)

func report(fn ProgressFunc, stage Stage, processed, total int) {
	if fn == nil {
		return
	}
	pct := 100
	if total > 0 {
		pct = processed * 100 / total
	}
	fn(Progress{Stage: stage, Processed: processed, Total: total, Percentage: pct})
}

// RecordStore persists resolved records. Each call is independent; there is
// no transaction coupling between rows, and a failed row must not poison
// later calls.
type RecordStore interface {
	CreateRecord(ctx context.Context, tenantID uuid.UUID, rec Resolved) (uuid.UUID, error)
}
