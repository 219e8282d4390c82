package ports

import (
	"context"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
)

// LegalAssistant is the inbound contract used by the HTTP and MCP surfaces.
type LegalAssistant interface {
	Answer(ctx context.Context, req domain.AnswerRequest) (*domain.AnswerPayload, error)
	ExplainTerm(ctx context.Context, term string) (*domain.Explanation, error)
	IndexStats() domain.IndexStats
	GlossaryStats() domain.GlossaryStats
	ClearGlossaryCache()
}

// IndexBuilder is the inbound contract for (re)building the statute index.
type IndexBuilder interface {
	BuildIndex(ctx context.Context, documents []domain.LawDocument) (domain.IndexStats, error)
	Rebuild(ctx context.Context) (domain.IndexStats, error)
}
