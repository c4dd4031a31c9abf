package markup

import (
	"strconv"
	"strings"

	"github.com/mkarlsen/opsimport/internal/schema"
)

// Result is the extracted form of a markup document: flat rows keyed by
// canonical field name, plus the name of the schema that produced them.
type Result struct {
	Schema string
	Rows   []map[string]string
}

// Parse decodes document bytes and extracts rows in one step.
func Parse(data []byte, cats *CategoryMatcher) (*Result, error) {
	root, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Extract(root, cats)
}

// Extract classifies the document and extracts one row per record element.
// Extraction never fails per-row: rows missing required fields or carrying
// unparsable values are returned as-is and left for validation to reject.
// Only a document with no recognizable record structure at all is an error.
func Extract(root *Node, cats *CategoryMatcher) (*Result, error) {
	if ds := classify(root); ds != nil {
		res := &Result{Schema: ds.Name}
		for _, item := range ds.items(root) {
			row := make(map[string]string)
			applyFields(row, root, ds.DocFields)
			applyFields(row, item, ds.Fields)
			categorize(row, cats)
			res.Rows = append(res.Rows, row)
		}
		return res, nil
	}

	rows, ok := extractHeuristic(root)
	if !ok {
		return nil, ErrUnknownStructure
	}
	for _, row := range rows {
		categorize(row, cats)
	}
	return &Result{Schema: "heuristic", Rows: rows}, nil
}

// items returns the record elements for this schema, in document order.
func (ds *DocSchema) items(root *Node) []*Node {
	if ds.ItemPath == "" {
		return []*Node{root}
	}

	parent := root
	segs := strings.Split(ds.ItemPath, "/")
	for _, seg := range segs[:len(segs)-1] {
		parent = parent.Child(seg)
		if parent == nil {
			return nil
		}
	}
	return parent.childrenByTag(segs[len(segs)-1])
}

func applyFields(row map[string]string, n *Node, fields []FieldMap) {
	for _, fm := range fields {
		raw, ok := n.lookup(fm.Path)
		if !ok {
			continue
		}
		row[fm.Field] = coerce(raw, fm.Type)
	}
}

// coerce normalizes an extracted value per its declared type. Values that
// do not parse are kept raw so the validator can report them with the
// offending text intact.
func coerce(raw string, t schema.FieldType) string {
	raw = schema.CleanCell(raw)
	switch t {
	case schema.FieldDate:
		if d, ok := schema.ParseDate(raw); ok {
			return d.Format(schema.DateLayout)
		}
	case schema.FieldNumeric:
		if v, ok := schema.ParseAmount(raw); ok {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return raw
}

// categorize fills in the category field from description keywords when the
// document did not supply one.
func categorize(row map[string]string, cats *CategoryMatcher) {
	if cats == nil || row[schema.FieldCategory] != "" {
		return
	}
	if name, ok := cats.Match(row[schema.FieldDescription]); ok {
		row[schema.FieldCategory] = name
	}
}
