package glossary

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
)

//go:embed glossary.yaml
var defaultTable []byte

type file struct {
	Terms []domain.GlossaryTerm `yaml:"terms"`
}

// Default returns the embedded term table.
func Default() ([]domain.GlossaryTerm, error) {
	return Parse(defaultTable)
}

// Load reads a term table from path, or the embedded table when path is empty.
func Load(path string) ([]domain.GlossaryTerm, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary %s: %w", path, err)
	}
	terms, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("glossary %s: %w", path, err)
	}
	return terms, nil
}

func Parse(raw []byte) ([]domain.GlossaryTerm, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode glossary yaml: %w", err)
	}
	if len(f.Terms) == 0 {
		return nil, fmt.Errorf("glossary has no terms")
	}

	seen := make(map[string]struct{}, len(f.Terms))
	out := make([]domain.GlossaryTerm, 0, len(f.Terms))
	for i, term := range f.Terms {
		term.CanonicalName = strings.ToLower(strings.TrimSpace(term.CanonicalName))
		if term.CanonicalName == "" {
			return nil, fmt.Errorf("glossary term %d: canonical_name is required", i)
		}
		if _, ok := seen[term.CanonicalName]; ok {
			return nil, fmt.Errorf("glossary term %q is duplicated", term.CanonicalName)
		}
		seen[term.CanonicalName] = struct{}{}
		if term.DifficultyLevel < 1 || term.DifficultyLevel > 4 {
			return nil, fmt.Errorf("glossary term %q: difficulty_level must be 1-4, got %d", term.CanonicalName, term.DifficultyLevel)
		}
		term.Category = strings.TrimSpace(term.Category)

		synonyms := make([]string, 0, len(term.Synonyms))
		for _, syn := range term.Synonyms {
			if syn = strings.ToLower(strings.TrimSpace(syn)); syn != "" {
				synonyms = append(synonyms, syn)
			}
		}
		term.Synonyms = synonyms
		out = append(out, term)
	}
	return out, nil
}
