package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
)

type generatorCall struct {
	system string
	user   string
	opts   domain.GenerateOptions
}

// generatorFake answers by system instructions, so one fake serves
// classification, fact extraction and answer generation.
type generatorFake struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []generatorCall
	started   chan struct{}
	release   chan struct{}
}

func newGeneratorFake() *generatorFake {
	return &generatorFake{
		responses: map[string]string{},
		errs:      map[string]error{},
	}
}

func (f *generatorFake) Generate(_ context.Context, system, user string, opts domain.GenerateOptions) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, generatorCall{system: system, user: user, opts: opts})
	resp, err := f.responses[system], f.errs[system]
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}
	return resp, err
}

func (f *generatorFake) callsFor(system string) []generatorCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []generatorCall
	for _, c := range f.calls {
		if c.system == system {
			out = append(out, c)
		}
	}
	return out
}

type searchCall struct {
	query string
	topK  int
}

type indexFake struct {
	mu      sync.Mutex
	results []domain.SearchResult
	err     error
	calls   []searchCall
	stats   domain.IndexStats
	docs    []domain.LawDocument
	build   error
}

func (f *indexFake) Build(_ context.Context, documents []domain.LawDocument) (domain.IndexStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = documents
	if f.build != nil {
		return domain.IndexStats{}, f.build
	}
	return domain.IndexStats{Initialized: true, TotalDocuments: len(documents), TotalChunks: 2 * len(documents)}, nil
}

func (f *indexFake) Search(_ context.Context, query string, topK int) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, searchCall{query: query, topK: topK})
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *indexFake) Stats() domain.IndexStats { return f.stats }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTerms() []domain.GlossaryTerm {
	return []domain.GlossaryTerm{
		{CanonicalName: "usucapião", Category: "direitos reais", Synonyms: []string{"prescrição aquisitiva"}, DifficultyLevel: 3},
		{CanonicalName: "comunhão de adquiridos", Category: "direito da família", Synonyms: []string{"comunhão parcial", "comunhão parcial de bens"}, DifficultyLevel: 2},
		{CanonicalName: "arrendamento", Category: "arrendamento urbano", Synonyms: []string{"locação", "contrato de arrendamento"}, DifficultyLevel: 1},
		{CanonicalName: "caução", Category: "arrendamento urbano", DifficultyLevel: 1},
		{CanonicalName: "usufruto", Category: "direitos reais", DifficultyLevel: 3},
		{CanonicalName: "penhora", Category: "processo civil", Synonyms: []string{"penhora de salário"}, DifficultyLevel: 2},
		{CanonicalName: "dolo", Category: "direito penal", DifficultyLevel: 4},
	}
}

func intPtr(v int) *int { return &v }

func searchResult(law, text string, article *int) domain.SearchResult {
	return domain.SearchResult{
		Chunk:      domain.Chunk{ID: law + text, DocumentID: law, LawName: law, Text: text, ArticleNumber: article},
		Similarity: 0.8,
	}
}
