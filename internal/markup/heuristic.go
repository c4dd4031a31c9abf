package markup

import (
	"maps"
	"slices"
	"strings"

	"github.com/mkarlsen/opsimport/internal/schema"
)

// heuristic.go is the fallback detector for documents matching no known
// schema: find the repeating record element under the root, then infer
// field roles from substring matches on descendant tag names.

// commonItemTags are tried in order when locating the record element.
var commonItemTags = []string{"Order", "Orden", "Item", "Row", "Record", "Registro", "Entry"}

// roleKeywords maps canonical fields to tag-name fragments, most specific
// field first. A tag claims the first role whose fragment it contains.
var roleKeywords = []struct {
	field    string
	keywords []string
}{
	{schema.FieldCounterpartyTaxID, []string{"rfc", "taxid", "tax_id", "fiscal"}},
	{schema.FieldUnitCode, []string{"placa", "unidad", "unit", "vehic", "economico"}},
	{schema.FieldPersonnelCode, []string{"empleado", "employee", "operador", "tecnico", "personnel"}},
	{schema.FieldCategory, []string{"categoria", "category", "tipo"}},
	{schema.FieldRequestDate, []string{"fecha", "date"}},
	{schema.FieldAmount, []string{"importe", "monto", "total", "amount", "costo", "cost"}},
	{schema.FieldDescription, []string{"desc", "concepto", "detalle", "obser", "note"}},
	{schema.FieldDocumentNumber, []string{"folio", "number", "numero", "num", "id"}},
}

// extractHeuristic extracts rows from an unclassified document. Returns
// ok=false when no repeating record structure exists.
func extractHeuristic(root *Node) ([]map[string]string, bool) {
	items := findItems(root)
	if len(items) == 0 {
		return nil, false
	}

	var rows []map[string]string
	for _, item := range items {
		row := make(map[string]string)
		inferFields(row, item)
		rows = append(rows, row)
	}
	return rows, true
}

// findItems locates the repeating record elements: first a common item tag
// with at least one occurrence among the root's children, else the tag of
// the root's first child element.
func findItems(root *Node) []*Node {
	for _, tag := range commonItemTags {
		if items := root.childrenByTag(tag); len(items) > 0 {
			return items
		}
	}
	if len(root.Children) > 0 {
		return root.childrenByTag(root.Children[0].Tag)
	}
	return nil
}

// inferFields walks an item's descendants depth-first, assigning each
// attribute and text leaf to the first unclaimed role its name suggests.
// Attributes are visited in sorted name order so extraction stays
// deterministic for identical input.
func inferFields(row map[string]string, n *Node) {
	for _, attr := range slices.Sorted(maps.Keys(n.Attrs)) {
		claimRole(row, attr, n.Attrs[attr])
	}
	for _, c := range n.Children {
		if len(c.Children) == 0 && c.Text != "" {
			claimRole(row, c.Tag, c.Text)
		}
		inferFields(row, c)
	}
}

func claimRole(row map[string]string, tag, value string) {
	lower := strings.ToLower(tag)
	for _, role := range roleKeywords {
		if row[role.field] != "" {
			continue
		}
		for _, kw := range role.keywords {
			if strings.Contains(lower, kw) {
				fm := FieldMap{Field: role.field, Type: roleType(role.field)}
				row[role.field] = coerce(value, fm.Type)
				return
			}
		}
	}
}

func roleType(field string) schema.FieldType {
	switch field {
	case schema.FieldRequestDate:
		return schema.FieldDate
	case schema.FieldAmount:
		return schema.FieldNumeric
	default:
		return schema.FieldText
	}
}
