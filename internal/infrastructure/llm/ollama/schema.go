package ollama

import "github.com/kirillkom/legal-assistant/internal/core/domain"

// jsonSchema renders s as the JSON Schema object accepted by Ollama's format field.
func jsonSchema(s *domain.Schema) map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{}
	if s.Nullable && s.Type != "" {
		out["type"] = []string{string(s.Type), "null"}
	} else if s.Type != "" {
		out["type"] = string(s.Type)
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Items != nil {
		out["items"] = jsonSchema(s.Items)
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = jsonSchema(prop)
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}
