package gemini

import (
	"github.com/google/generative-ai-go/genai"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
)

func toGenaiSchema(s *domain.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        toGenaiType(s.Type),
		Description: s.Description,
		Nullable:    s.Nullable,
		Enum:        s.Enum,
		Items:       toGenaiSchema(s.Items),
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

func toGenaiType(t domain.SchemaType) genai.Type {
	switch t {
	case domain.SchemaObject:
		return genai.TypeObject
	case domain.SchemaString:
		return genai.TypeString
	case domain.SchemaNumber:
		return genai.TypeNumber
	case domain.SchemaInteger:
		return genai.TypeInteger
	case domain.SchemaBoolean:
		return genai.TypeBoolean
	case domain.SchemaArray:
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}
