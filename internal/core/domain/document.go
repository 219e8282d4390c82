package domain

import "time"

// LawDocument is a statute loaded from a document source. Immutable once loaded.
type LawDocument struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FullText string `json:"-"`
}

// DisplayName is the law name shown to users and in generation context.
func (d LawDocument) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// Segment is one piece of chunker output before embedding.
type Segment struct {
	Text          string
	ArticleNumber *int
	ArticleTitle  *string
}

type Chunk struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	LawName       string    `json:"law_name"`
	SequenceIndex int       `json:"sequence_index"`
	Text          string    `json:"text"`
	Embedding     []float32 `json:"-"`
	ArticleNumber *int      `json:"article_number,omitempty"`
	ArticleTitle  *string   `json:"article_title,omitempty"`
}

type SearchResult struct {
	Chunk        Chunk   `json:"chunk"`
	Similarity   float64 `json:"similarity"`
	RankPosition int     `json:"rank_position"`
}

type IndexStats struct {
	Initialized    bool      `json:"initialized"`
	TotalChunks    int       `json:"total_chunks"`
	TotalDocuments int       `json:"total_documents"`
	EmptyDocuments []string  `json:"empty_documents,omitempty"`
	Dimension      int       `json:"dimension"`
	BuiltAt        time.Time `json:"built_at,omitempty"`
}
