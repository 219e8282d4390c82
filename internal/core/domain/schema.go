package domain

type SchemaType string

const (
	SchemaObject  SchemaType = "object"
	SchemaString  SchemaType = "string"
	SchemaNumber  SchemaType = "number"
	SchemaInteger SchemaType = "integer"
	SchemaBoolean SchemaType = "boolean"
	SchemaArray   SchemaType = "array"
)

// Schema is the backend-neutral description of a structured output.
// Adapters translate it to the provider's own schema format.
type Schema struct {
	Type        SchemaType
	Description string
	Nullable    bool
	Enum        []string
	Items       *Schema
	Properties  map[string]*Schema
	Required    []string
}

// GenerateOptions are per-call generation settings.
type GenerateOptions struct {
	Temperature     float64
	MaxOutputTokens int
	Schema          *Schema
}
