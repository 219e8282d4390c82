package ports

import (
	"context"
	"time"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
)

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator is the text generation backend. With opts.Schema set the
// returned text is expected to be one JSON object of that schema.
type Generator interface {
	Generate(ctx context.Context, systemInstructions, userContent string, opts domain.GenerateOptions) (string, error)
}

// Chunker splits statute text into ordered segments.
type Chunker interface {
	Split(text string) []domain.Segment
}

// VectorIndex holds embedded chunks and answers similarity queries.
type VectorIndex interface {
	Build(ctx context.Context, documents []domain.LawDocument) (domain.IndexStats, error)
	Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
	Stats() domain.IndexStats
}

// DocumentSource loads the statute corpus.
type DocumentSource interface {
	Load(ctx context.Context) ([]domain.LawDocument, error)
}

// RebuildQueue publishes/consumes index rebuild requests.
type RebuildQueue interface {
	PublishRebuild(ctx context.Context, reason string) error
	SubscribeRebuild(ctx context.Context, handler func(context.Context, string) error) error
}

// BuildObserver receives index build outcomes.
type BuildObserver interface {
	ObserveBuild(duration time.Duration, stats domain.IndexStats, err error)
}
