package domain

type GlossaryTerm struct {
	CanonicalName   string   `json:"canonical_name" yaml:"canonical_name"`
	Category        string   `json:"category" yaml:"category"`
	Synonyms        []string `json:"synonyms" yaml:"synonyms"`
	DifficultyLevel int      `json:"difficulty_level" yaml:"difficulty_level"`
}

type GlossarySource string

const (
	GlossarySourceTable   GlossarySource = "glossary"
	GlossarySourceContext GlossarySource = "context"
)

// GlossaryRequest is a detected term-definition request.
type GlossaryRequest struct {
	Term       string         `json:"term"`
	Confidence float64        `json:"confidence"`
	Source     GlossarySource `json:"source"`
}

// Explanation is the cached, structured explanation of one term.
type Explanation struct {
	Term            string   `json:"term"`
	CanonicalTerm   string   `json:"canonical_term"`
	Category        string   `json:"category"`
	DifficultyLevel int      `json:"difficulty_level"`
	ExplanationText string   `json:"explanation"`
	SourceLawNames  []string `json:"source_law_names"`
}

type GlossaryStats struct {
	KnownTerms    int            `json:"known_terms"`
	Categories    map[string]int `json:"categories"`
	CachedEntries int            `json:"cached_entries"`
	CacheHits     int64          `json:"cache_hits"`
	CacheMisses   int64          `json:"cache_misses"`
}
