package ingest

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/opsimport/internal/catalog"
	"github.com/mkarlsen/opsimport/internal/schema"
	"github.com/mkarlsen/opsimport/internal/tabular"
)

var (
	cpTalleres = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	cpGasera   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	unitEco102 = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	unitEco105 = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	perEmp31   = uuid.MustParse("55555555-5555-5555-5555-555555555555")
	catMant    = uuid.MustParse("66666666-6666-6666-6666-666666666666")
	catComb    = uuid.MustParse("77777777-7777-7777-7777-777777777777")
)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Counterparties: []catalog.Entry{
			{ID: cpTalleres, NaturalKey: "TAL980305XY1", DisplayName: "Talleres del Norte SA"},
			{ID: cpGasera, NaturalKey: "GAS010101BB2", DisplayName: "Gasolinera La Central"},
		},
		Units: []catalog.Entry{
			{ID: unitEco102, NaturalKey: "ECO-102", DisplayName: "Kenworth T680"},
			{ID: unitEco105, NaturalKey: "ECO-105", DisplayName: "Freightliner Cascadia"},
		},
		Personnel: []catalog.Entry{
			{ID: perEmp31, NaturalKey: "EMP-31", DisplayName: "J. Ramirez"},
		},
		Categories: []catalog.Entry{
			{ID: catMant, NaturalKey: "MANT", DisplayName: "Mantenimiento"},
			{ID: catComb, NaturalKey: "COMB", DisplayName: "Combustible"},
		},
		UsedKeys: map[string]bool{"B7": true},
	}
}

func row(doc, date, rfc, unit, emp, cat, amount string) map[string]string {
	return map[string]string{
		schema.FieldDocumentNumber:    doc,
		schema.FieldRequestDate:       date,
		schema.FieldCounterpartyTaxID: rfc,
		schema.FieldUnitCode:          unit,
		schema.FieldPersonnelCode:     emp,
		schema.FieldCategory:          cat,
		schema.FieldAmount:            amount,
	}
}

func TestValidateEndToEnd(t *testing.T) {
	// Row 1 resolves cleanly with unique key A-1, row 2 repeats A-1, row 3
	// carries an unresolvable unit code.
	rows := []map[string]string{
		row("A-1", "2026-03-15", "TAL980305XY1", "ECO-102", "EMP-31", "Mantenimiento", "1200"),
		row("A-1", "2026-03-16", "GAS010101BB2", "ECO-105", "EMP-31", "Combustible", "500"),
		row("A-2", "2026-03-17", "TAL980305XY1", "ZZZ", "EMP-31", "Mantenimiento", "800"),
	}

	v := &Validator{Catalog: testCatalog()}
	res := v.ValidateRows(rows)

	assert.Equal(t, 3, res.TotalRows)
	assert.Equal(t, 1, res.ValidCount)
	assert.Equal(t, 2, res.ErrorCount)
	assert.Equal(t, 0, res.WarningCount)
	assert.False(t, res.IsValid())

	require.Len(t, res.ValidRows, 1)
	rec := res.ValidRows[0]
	assert.Equal(t, "A-1", rec.DocumentNumber)
	assert.Equal(t, cpTalleres, rec.CounterpartyID)
	assert.Equal(t, unitEco102, rec.UnitID)
	assert.Equal(t, perEmp31, rec.PersonnelID)
	assert.Equal(t, catMant, rec.CategoryID)
	assert.Equal(t, 1200.0, rec.Amount)

	require.Len(t, res.Issues, 2)
	assert.Equal(t, 1, res.Issues[0].Row)
	assert.Contains(t, res.Issues[0].Message, "more than once")
	assert.Equal(t, 2, res.Issues[1].Row)
	assert.Equal(t, schema.FieldUnitCode, res.Issues[1].Field)
	assert.Equal(t, "ZZZ", res.Issues[1].Value)
}

func TestValidateDeterminism(t *testing.T) {
	rows := []map[string]string{
		row("A-1", "2026-03-15", "TAL980305XY1", "ECO-102", "EMP-31", "", "1200"),
		row("A-1", "2026-03-16", "GAS010101BB2", "ECO-105", "EMP-31", "Combustible", "500"),
		row("A-2", "2026-03-17", "talleres", "cascadia", "EMP-31", "nope", "800"),
		row("", "2026-03-18", "TAL980305XY1", "ECO-102", "EMP-31", "", "100"),
	}

	cat := testCatalog()
	first := (&Validator{Catalog: cat}).ValidateRows(rows)
	second := (&Validator{Catalog: cat}).ValidateRows(rows)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("validation passes differ (-first +second):\n%s", diff)
	}
}

func TestValidateExistingKeyExcluded(t *testing.T) {
	// "B-7" collides with the store's used key "B7" regardless of position.
	rows := []map[string]string{
		row("A-1", "2026-03-15", "TAL980305XY1", "ECO-102", "EMP-31", "MANT", "10"),
		row("B-7", "2026-03-15", "TAL980305XY1", "ECO-102", "EMP-31", "MANT", "10"),
	}

	res := (&Validator{Catalog: testCatalog()}).ValidateRows(rows)

	assert.Equal(t, 1, res.ValidCount)
	require.Equal(t, 1, res.ErrorCount)
	assert.Contains(t, res.Issues[0].Message, "already exists")
}

func TestValidateOptionalCategoryDefaults(t *testing.T) {
	tests := []struct {
		name     string
		category string
	}{
		{name: "absent category", category: ""},
		{name: "unknown category", category: "Vulcanizado"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := []map[string]string{
				row("A-1", "2026-03-15", "TAL980305XY1", "ECO-102", "EMP-31", tt.category, "10"),
			}

			res := (&Validator{Catalog: testCatalog()}).ValidateRows(rows)

			assert.Equal(t, 1, res.ValidCount, "defaulted category must not block the row")
			assert.Equal(t, 0, res.ErrorCount)
			assert.Equal(t, 1, res.WarningCount)
			require.Len(t, res.ValidRows, 1)
			assert.Equal(t, catMant, res.ValidRows[0].CategoryID, "first catalog entry is the default")
		})
	}
}

func TestValidateNoCategoriesInCatalog(t *testing.T) {
	cat := testCatalog()
	cat.Categories = nil

	tests := []struct {
		name     string
		category string
		want     string
	}{
		{
			name:     "absent category",
			category: "",
			want:     "no category given and the catalog has none to default to",
		},
		{
			name:     "supplied category",
			category: "Vulcanizado",
			want:     `category "Vulcanizado" not found and the catalog has none to default to`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := []map[string]string{
				row("A-1", "2026-03-15", "TAL980305XY1", "ECO-102", "EMP-31", tt.category, "10"),
			}

			res := (&Validator{Catalog: cat}).ValidateRows(rows)

			assert.Equal(t, 1, res.ValidCount)
			assert.Equal(t, 1, res.WarningCount)
			require.Len(t, res.Issues, 1)
			assert.Equal(t, tt.want, res.Issues[0].Message)
			assert.Equal(t, uuid.Nil, res.ValidRows[0].CategoryID)
		})
	}
}

func TestValidateRequiredRefShortCircuit(t *testing.T) {
	// Counterparty fails to resolve; the row must contribute exactly one
	// issue, with unit and personnel left unattempted.
	rows := []map[string]string{
		row("A-1", "2026-03-15", "XXX000000XX0", "ZZZ", "ZZZ", "", "10"),
	}

	res := (&Validator{Catalog: testCatalog()}).ValidateRows(rows)

	require.Len(t, res.Issues, 1)
	assert.Equal(t, schema.FieldCounterpartyTaxID, res.Issues[0].Field)
	assert.Equal(t, "XXX000000XX0", res.Issues[0].Value)
}

func TestValidateBusinessRules(t *testing.T) {
	tests := []struct {
		name      string
		row       map[string]string
		wantField string
	}{
		{
			name:      "missing document number",
			row:       row("", "2026-03-15", "TAL980305XY1", "ECO-102", "EMP-31", "MANT", "10"),
			wantField: schema.FieldDocumentNumber,
		},
		{
			name:      "unparsable date",
			row:       row("A-1", "soon", "TAL980305XY1", "ECO-102", "EMP-31", "MANT", "10"),
			wantField: schema.FieldRequestDate,
		},
		{
			name:      "non-positive amount",
			row:       row("A-1", "2026-03-15", "TAL980305XY1", "ECO-102", "EMP-31", "MANT", "(25)"),
			wantField: schema.FieldAmount,
		},
		{
			name:      "missing amount",
			row:       row("A-1", "2026-03-15", "TAL980305XY1", "ECO-102", "EMP-31", "MANT", ""),
			wantField: schema.FieldAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := (&Validator{Catalog: testCatalog()}).ValidateRows([]map[string]string{tt.row})

			assert.Equal(t, 0, res.ValidCount)
			require.Equal(t, 1, res.ErrorCount)
			assert.Equal(t, tt.wantField, res.Issues[0].Field)
		})
	}
}

func TestValidateSubstringResolution(t *testing.T) {
	// Display-name substrings are the second matching tier.
	rows := []map[string]string{
		row("A-1", "2026-03-15", "gasolinera", "cascadia", "ramirez", "comb", "10"),
	}

	res := (&Validator{Catalog: testCatalog()}).ValidateRows(rows)

	require.Equal(t, 1, res.ValidCount)
	rec := res.ValidRows[0]
	assert.Equal(t, cpGasera, rec.CounterpartyID)
	assert.Equal(t, unitEco105, rec.UnitID)
	assert.Equal(t, catComb, rec.CategoryID)
}

func TestValidateGridHeaderError(t *testing.T) {
	grid := &tabular.Grid{
		Headers: []string{"Folio", "Fecha", "RFC"},
		Rows:    [][]string{{"A-1", "2026-03-15", "TAL980305XY1"}},
	}

	_, err := (&Validator{Catalog: testCatalog()}).ValidateGrid(grid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingHeaders))

	var he *HeaderError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, []string{schema.FieldUnitCode, schema.FieldPersonnelCode, schema.FieldAmount}, he.Missing)
	for _, issue := range he.Issues {
		assert.Equal(t, HeaderRow, issue.Row)
		assert.Equal(t, SeverityError, issue.Severity)
	}
}

func TestValidateGridWithSynonymHeaders(t *testing.T) {
	grid := &tabular.Grid{
		Headers: []string{"Folio", "Fecha", "RFC", "Placa", "Empleado", "Categoria", "Importe"},
		Rows: [][]string{
			{"A-1", "15/03/2026", "TAL980305XY1", "ECO-102", "EMP-31", "MANT", "$1,200.00"},
		},
	}

	res, err := (&Validator{Catalog: testCatalog()}).ValidateGrid(grid)
	require.NoError(t, err)
	require.Equal(t, 1, res.ValidCount)
	assert.Equal(t, 1200.0, res.ValidRows[0].Amount)
	assert.Equal(t, "2026-03-15", res.ValidRows[0].RequestDate.Format(schema.DateLayout))
}

func TestValidateProgressPerRow(t *testing.T) {
	rows := []map[string]string{
		row("A-1", "2026-03-15", "TAL980305XY1", "ECO-102", "EMP-31", "MANT", "10"),
		row("A-2", "2026-03-15", "TAL980305XY1", "ECO-102", "EMP-31", "MANT", "10"),
		row("A-3", "2026-03-15", "TAL980305XY1", "ECO-102", "EMP-31", "MANT", "10"),
	}

	var reports []Progress
	v := &Validator{Catalog: testCatalog(), Progress: func(p Progress) { reports = append(reports, p) }}
	v.ValidateRows(rows)

	require.Len(t, reports, 3)
	last := 0
	for _, p := range reports {
		assert.Equal(t, StageValidating, p.Stage)
		assert.GreaterOrEqual(t, p.Percentage, last, "progress must be monotonic")
		last = p.Percentage
	}
	assert.Equal(t, 100, reports[len(reports)-1].Percentage)
}
