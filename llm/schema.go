package llm

// SchemaType is a JSON schema primitive type.
type SchemaType string

// Schema types.
const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeInteger SchemaType = "integer"
	TypeNumber  SchemaType = "number"
	TypeBoolean SchemaType = "boolean"
)

// Schema is a provider-neutral response schema. Providers translate it to
// their native form (Gemini ResponseSchema, OpenAI json_schema).
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Object returns an object schema.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

// ArrayOf returns an array schema of items.
func ArrayOf(items *Schema) *Schema {
	return &Schema{Type: TypeArray, Items: items}
}

// String returns a string schema.
func String(description string) *Schema {
	return &Schema{Type: TypeString, Description: description}
}

// Enum returns a string schema restricted to values.
func Enum(values ...string) *Schema {
	return &Schema{Type: TypeString, Enum: values}
}

// Integer returns an integer schema.
func Integer(description string) *Schema {
	return &Schema{Type: TypeInteger, Description: description}
}

// Number returns a number schema.
func Number(description string) *Schema {
	return &Schema{Type: TypeNumber, Description: description}
}

// Boolean returns a boolean schema.
func Boolean(description string) *Schema {
	return &Schema{Type: TypeBoolean, Description: description}
}
