package lpscrape

// FieldType is the value type of a schema field.
type FieldType string

// Supported field types.
const (
	FieldString     FieldType = "string"
	FieldStringList FieldType = "string_list"
	FieldStringMap  FieldType = "string_map"
	FieldObject     FieldType = "object"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldString, FieldStringList, FieldStringMap, FieldObject:
		return true
	}
	return false
}

// Field describes one named value the model is asked to extract.
type Field struct {
	Name        string    `json:"name" yaml:"name"`
	Type        FieldType `json:"type" yaml:"type"`
	Description string    `json:"description" yaml:"description"`

	// Fields holds the nested fields of an object field.
	Fields []Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Schema is the ordered set of fields an extraction must fill.
// A Schema must not be modified while an extraction uses it.
type Schema struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Validate returns an error if the schema has no fields, a field has no
// name or an unknown type, names repeat at one level, or an object field
// has no nested fields.
func (s *Schema) Validate() error {
	if s == nil || len(s.Fields) == 0 {
		return Errorf(EINVALID, "schema must define at least one field")
	}
	return validateFields(s.Fields, "")
}

func validateFields(fields []Field, prefix string) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return Errorf(EINVALID, "schema field name required")
		}
		path := prefix + f.Name
		if seen[f.Name] {
			return Errorf(EINVALID, "duplicate schema field %q", path)
		}
		seen[f.Name] = true
		if !f.Type.Valid() {
			return Errorf(EINVALID, "schema field %q has unknown type %q", path, f.Type)
		}
		if f.Type == FieldObject {
			if len(f.Fields) == 0 {
				return Errorf(EINVALID, "object field %q must define nested fields", path)
			}
			if err := validateFields(f.Fields, path+"."); err != nil {
				return err
			}
		}
	}
	return nil
}

// FieldNames returns the top-level field names in declaration order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the top-level field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// DefaultSchemaName names the built-in marketing schema.
const DefaultSchemaName = "marketing"

// DefaultSchema returns the marketing schema used when a request does not
// supply one. Each call returns a fresh copy.
func DefaultSchema() *Schema {
	return &Schema{
		Name: DefaultSchemaName,
		Fields: []Field{
			{Name: "product_name", Type: FieldString, Description: "The main product or service name"},
			{Name: "product_description", Type: FieldString, Description: "A concise description of what the product or service does"},
			{Name: "key_features", Type: FieldStringList, Description: "The main features or benefits of the product"},
			{Name: "price_info", Type: FieldString, Description: "Pricing information if available (price, discount, free trial, etc.)"},
			{Name: "brand_name", Type: FieldString, Description: "The company or brand name"},
			{Name: "category", Type: FieldString, Description: "Product category or industry"},
			{Name: "target_audience", Type: FieldString, Description: "Who the product is intended for"},
			{Name: "unique_selling_points", Type: FieldStringList, Description: "What makes this product different from competitors"},
			{Name: "call_to_action", Type: FieldString, Description: "The main call-to-action text such as 'Buy Now' or 'Sign Up'"},
			{Name: "availability", Type: FieldString, Description: "Stock status or availability information"},
			{Name: "specifications", Type: FieldStringMap, Description: "Technical specifications as attribute name to value"},
			{Name: "reviews_sentiment", Type: FieldString, Description: "Overall sentiment of customer reviews if present"},
		},
	}
}
