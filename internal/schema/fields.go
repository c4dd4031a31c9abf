// Package schema defines the canonical service-order fields and the mapping
// from external file headers onto them. Input files arrive with headers in
// English or Spanish, abbreviated, re-cased, or decorated; everything funnels
// through Normalize before the rest of the pipeline sees a field name.
package schema

import "strings"

// Canonical field names. All downstream stages key rows by these.
const (
	FieldDocumentNumber    = "documentNumber"
	FieldRequestDate       = "requestDate"
	FieldCounterpartyTaxID = "counterpartyTaxId"
	FieldUnitCode          = "unitCode"
	FieldPersonnelCode     = "personnelCode"
	FieldCategory          = "category"
	FieldAmount            = "amount"
	FieldDescription       = "description"
)

// FieldType represents the expected data type for a canonical field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldDate
	FieldNumeric
)

func (t FieldType) String() string {
	switch t {
	case FieldDate:
		return "date"
	case FieldNumeric:
		return "numeric"
	default:
		return "text"
	}
}

// FieldSpec describes one canonical field: its template header, type,
// whether the column must be present, and the external spellings we accept.
type FieldSpec struct {
	Name     string // Canonical field name
	Header   string // Header emitted by the template generator
	Type     FieldType
	Required bool
	Synonyms []string // Known external header spellings (lowercase)
}

// Fields is the canonical service-order schema, in template column order.
var Fields = []FieldSpec{
	{
		Name: FieldDocumentNumber, Header: "Document Number", Type: FieldText, Required: true,
		Synonyms: []string{"document number", "document no", "doc number", "folio", "no. documento", "numero de documento", "num documento", "order number", "order no"},
	},
	{
		Name: FieldRequestDate, Header: "Request Date", Type: FieldDate, Required: true,
		Synonyms: []string{"request date", "date", "fecha", "fecha de solicitud", "fecha solicitud", "service date", "fecha de servicio"},
	},
	{
		Name: FieldCounterpartyTaxID, Header: "Counterparty Tax ID", Type: FieldText, Required: true,
		Synonyms: []string{"counterparty tax id", "tax id", "taxid", "rfc", "rfc cliente", "client tax id", "id fiscal", "cliente"},
	},
	{
		Name: FieldUnitCode, Header: "Unit Code", Type: FieldText, Required: true,
		Synonyms: []string{"unit code", "unit", "unidad", "placa", "plate", "no. economico", "numero economico", "vehicle", "vehiculo"},
	},
	{
		Name: FieldPersonnelCode, Header: "Personnel Code", Type: FieldText, Required: true,
		Synonyms: []string{"personnel code", "employee", "employee code", "empleado", "no. empleado", "numero de empleado", "clave empleado", "operador", "tecnico"},
	},
	{
		Name: FieldCategory, Header: "Category", Type: FieldText, Required: false,
		Synonyms: []string{"category", "categoria", "tipo", "tipo de servicio", "service type"},
	},
	{
		Name: FieldAmount, Header: "Amount", Type: FieldNumeric, Required: true,
		Synonyms: []string{"amount", "importe", "monto", "total", "costo", "cost"},
	},
	{
		Name: FieldDescription, Header: "Description", Type: FieldText, Required: false,
		Synonyms: []string{"description", "descripcion", "concepto", "detalle", "observaciones", "notes"},
	},
}

// synonymIndex maps every known external spelling (lowercase) to its
// canonical field name. Built once at init from Fields.
var synonymIndex = func() map[string]string {
	idx := make(map[string]string)
	for _, f := range Fields {
		idx[strings.ToLower(f.Header)] = f.Name
		idx[strings.ToLower(f.Name)] = f.Name
		for _, s := range f.Synonyms {
			idx[s] = f.Name
		}
	}
	return idx
}()

// Normalize maps a raw file header to a canonical field name.
// Unknown headers fall back to a lowercase, no-space transliteration of the
// raw header; Normalize never fails.
func Normalize(raw string) string {
	key := strings.ToLower(CleanCell(raw))
	if canonical, ok := synonymIndex[key]; ok {
		return canonical
	}
	return strings.ReplaceAll(key, " ", "")
}

// RequiredFields returns the canonical names every input must provide.
func RequiredFields() []string {
	var req []string
	for _, f := range Fields {
		if f.Required {
			req = append(req, f.Name)
		}
	}
	return req
}

// MissingRequired normalizes a header row and reports which required
// canonical fields it does not cover, in schema order.
func MissingRequired(headers []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[Normalize(h)] = true
	}

	var missing []string
	for _, f := range Fields {
		if f.Required && !present[f.Name] {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// TemplateHeaders returns the raw header row for generated templates,
// in canonical column order.
func TemplateHeaders() []string {
	headers := make([]string, len(Fields))
	for i, f := range Fields {
		headers[i] = f.Header
	}
	return headers
}
