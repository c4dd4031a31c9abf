package markup

import "github.com/mkarlsen/opsimport/internal/schema"

// FieldMap binds one document path to a canonical field.
type FieldMap struct {
	Path     string
	Field    string
	Type     schema.FieldType
	Required bool
}

// DocSchema describes one known document shape. Match is a cheap
// discriminator over the decoded root; schemas are tried in table order and
// the first match wins.
type DocSchema struct {
	Name  string
	Match func(root *Node) bool

	// ItemPath locates the repeating record element under the root. Empty
	// means the document itself is a single record.
	ItemPath string

	// DocFields are resolved once against the root and copied into every
	// row; Fields are resolved against each item element.
	DocFields []FieldMap
	Fields    []FieldMap
}

// KnownSchemas is the ordered classification table. The heuristic detector
// in heuristic.go is the fallback when nothing here matches.
var KnownSchemas = []DocSchema{
	{
		// Electronic invoice (CFDI-style). The whole document is one record;
		// fleet addenda carry the unit and operator codes when present.
		Name: "electronic-invoice",
		Match: func(root *Node) bool {
			return root.Tag == "Comprobante" && root.Child("Emisor") != nil
		},
		DocFields: []FieldMap{
			{Path: "@Folio", Field: schema.FieldDocumentNumber, Type: schema.FieldText, Required: true},
			{Path: "@Fecha", Field: schema.FieldRequestDate, Type: schema.FieldDate, Required: true},
			{Path: "@Total", Field: schema.FieldAmount, Type: schema.FieldNumeric, Required: true},
			{Path: "Emisor@Rfc", Field: schema.FieldCounterpartyTaxID, Type: schema.FieldText, Required: true},
			{Path: "Conceptos/Concepto@Descripcion", Field: schema.FieldDescription, Type: schema.FieldText},
			{Path: "Addenda/Unidad", Field: schema.FieldUnitCode, Type: schema.FieldText},
			{Path: "Addenda/Empleado", Field: schema.FieldPersonnelCode, Type: schema.FieldText},
		},
	},
	{
		Name: "service-orders",
		Match: func(root *Node) bool {
			return root.Child("Order") != nil
		},
		ItemPath: "Order",
		Fields: []FieldMap{
			{Path: "Number", Field: schema.FieldDocumentNumber, Type: schema.FieldText, Required: true},
			{Path: "Date", Field: schema.FieldRequestDate, Type: schema.FieldDate, Required: true},
			{Path: "TaxId", Field: schema.FieldCounterpartyTaxID, Type: schema.FieldText, Required: true},
			{Path: "Unit", Field: schema.FieldUnitCode, Type: schema.FieldText, Required: true},
			{Path: "Employee", Field: schema.FieldPersonnelCode, Type: schema.FieldText, Required: true},
			{Path: "Category", Field: schema.FieldCategory, Type: schema.FieldText},
			{Path: "Amount", Field: schema.FieldAmount, Type: schema.FieldNumeric, Required: true},
			{Path: "Description", Field: schema.FieldDescription, Type: schema.FieldText},
		},
	},
	{
		Name: "ordenes-servicio",
		Match: func(root *Node) bool {
			return root.Child("Orden") != nil
		},
		ItemPath: "Orden",
		Fields: []FieldMap{
			{Path: "Folio", Field: schema.FieldDocumentNumber, Type: schema.FieldText, Required: true},
			{Path: "Fecha", Field: schema.FieldRequestDate, Type: schema.FieldDate, Required: true},
			{Path: "Rfc", Field: schema.FieldCounterpartyTaxID, Type: schema.FieldText, Required: true},
			{Path: "Unidad", Field: schema.FieldUnitCode, Type: schema.FieldText, Required: true},
			{Path: "Empleado", Field: schema.FieldPersonnelCode, Type: schema.FieldText, Required: true},
			{Path: "Categoria", Field: schema.FieldCategory, Type: schema.FieldText},
			{Path: "Importe", Field: schema.FieldAmount, Type: schema.FieldNumeric, Required: true},
			{Path: "Descripcion", Field: schema.FieldDescription, Type: schema.FieldText},
		},
	},
}

// classify returns the first matching known schema, or nil.
func classify(root *Node) *DocSchema {
	for i := range KnownSchemas {
		if KnownSchemas[i].Match(root) {
			return &KnownSchemas[i]
		}
	}
	return nil
}
