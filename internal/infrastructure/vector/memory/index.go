package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
	"github.com/kirillkom/legal-assistant/internal/core/ports"
	"github.com/kirillkom/legal-assistant/internal/infrastructure/chunking"
)

const (
	defaultTopK          = 5
	articleCandidatePool = 10
	defaultConcurrency   = 4
	defaultBatchSize     = 32
)

type Options struct {
	// Concurrency bounds the number of documents chunked and embedded at once.
	Concurrency int
	// BatchSize is the number of chunk texts sent per embedding call.
	BatchSize int
	// Limiter throttles embedding calls during a build. Nil disables throttling.
	Limiter *rate.Limiter
	Logger  *slog.Logger
	Now     func() time.Time
}

// Index is a brute-force cosine index over immutable snapshots. Search cost
// is O(chunks) per query; a rebuild swaps the snapshot atomically.
type Index struct {
	embedder ports.Embedder
	chunker  ports.Chunker
	opts     Options

	buildMu sync.Mutex
	current atomic.Pointer[snapshot]
}

type snapshot struct {
	chunks []domain.Chunk
	norms  []float64
	stats  domain.IndexStats
}

type scored struct {
	pos int
	sim float64
}

func New(embedder ports.Embedder, chunker ports.Chunker, opts Options) *Index {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Index{
		embedder: embedder,
		chunker:  chunker,
		opts:     opts,
	}
}

// Build chunks and embeds every document and replaces the current snapshot.
// On failure the previous snapshot stays visible.
func (i *Index) Build(ctx context.Context, documents []domain.LawDocument) (domain.IndexStats, error) {
	i.buildMu.Lock()
	defer i.buildMu.Unlock()

	seen := make(map[string]struct{}, len(documents))
	for _, doc := range documents {
		if doc.ID == "" {
			return domain.IndexStats{}, domain.WrapError(domain.ErrInvalidInput, "build index", errors.New("document id is required"))
		}
		if _, ok := seen[doc.ID]; ok {
			return domain.IndexStats{}, domain.WrapError(domain.ErrInvalidInput, "build index", fmt.Errorf("duplicate document id %q", doc.ID))
		}
		seen[doc.ID] = struct{}{}
	}

	perDoc := make([][]domain.Chunk, len(documents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.Concurrency)
	for idx, doc := range documents {
		g.Go(func() error {
			chunks, err := i.indexDocument(gctx, doc)
			if err != nil {
				return err
			}
			perDoc[idx] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		i.opts.Logger.Error("index_build_failed", "documents", len(documents), "error", err)
		return domain.IndexStats{}, err
	}

	snap := &snapshot{}
	dimension := 0
	for idx, chunks := range perDoc {
		if len(chunks) == 0 {
			i.opts.Logger.Warn("index_document_empty",
				"document_id", documents[idx].ID,
				"warning", domain.ErrDocumentEmpty.Error(),
			)
			snap.stats.EmptyDocuments = append(snap.stats.EmptyDocuments, documents[idx].ID)
			continue
		}
		snap.stats.TotalDocuments++
		for _, chunk := range chunks {
			if dimension == 0 {
				dimension = len(chunk.Embedding)
			}
			if len(chunk.Embedding) != dimension {
				err := domain.WrapError(domain.ErrEmbeddingBackend, "build index", fmt.Errorf(
					"inconsistent embedding dimension: document %s has %d, expected %d",
					chunk.DocumentID, len(chunk.Embedding), dimension,
				))
				i.opts.Logger.Error("index_build_failed", "documents", len(documents), "error", err)
				return domain.IndexStats{}, err
			}
			snap.chunks = append(snap.chunks, chunk)
			snap.norms = append(snap.norms, squaredNorm(chunk.Embedding))
		}
	}

	snap.stats.Initialized = true
	snap.stats.TotalChunks = len(snap.chunks)
	snap.stats.Dimension = dimension
	snap.stats.BuiltAt = i.opts.Now().UTC()
	i.current.Store(snap)

	i.opts.Logger.Info("index_build_completed",
		"total_chunks", snap.stats.TotalChunks,
		"total_documents", snap.stats.TotalDocuments,
		"empty_documents", len(snap.stats.EmptyDocuments),
		"dimension", dimension,
	)
	return snap.Stats(), nil
}

func (i *Index) indexDocument(ctx context.Context, doc domain.LawDocument) ([]domain.Chunk, error) {
	segments := i.chunker.Split(doc.FullText)
	if len(segments) == 0 {
		return nil, nil
	}

	texts := make([]string, len(segments))
	for idx, seg := range segments {
		texts[idx] = seg.Text
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += i.opts.BatchSize {
		end := min(start+i.opts.BatchSize, len(texts))
		if i.opts.Limiter != nil {
			if err := i.opts.Limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("wait embed rate limit for %s: %w", doc.ID, err)
			}
		}
		batch, err := i.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, domain.WrapError(domain.ErrEmbeddingBackend, "embed document "+doc.ID, err)
		}
		if len(batch) != end-start {
			return nil, domain.WrapError(domain.ErrEmbeddingBackend, "embed document "+doc.ID,
				fmt.Errorf("embeddings/chunks mismatch: got %d, want %d", len(batch), end-start))
		}
		vectors = append(vectors, batch...)
	}

	lawName := doc.DisplayName()
	chunks := make([]domain.Chunk, 0, len(segments))
	for idx, seg := range segments {
		if len(vectors[idx]) == 0 {
			return nil, domain.WrapError(domain.ErrEmbeddingBackend, "embed document "+doc.ID, errors.New("empty embedding"))
		}
		chunks = append(chunks, domain.Chunk{
			ID:            uuid.NewString(),
			DocumentID:    doc.ID,
			LawName:       lawName,
			SequenceIndex: idx,
			Text:          seg.Text,
			Embedding:     vectors[idx],
			ArticleNumber: seg.ArticleNumber,
			ArticleTitle:  seg.ArticleTitle,
		})
	}
	return chunks, nil
}

// Search ranks all chunks by cosine similarity to the query. When the query
// names "artigo N", chunks of article N are moved ahead of the rest.
func (i *Index) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	snap := i.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("search index: %w", domain.ErrNotInitialized)
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if len(snap.chunks) == 0 {
		return []domain.SearchResult{}, nil
	}

	queryVector, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingBackend, "embed query", err)
	}
	if len(queryVector) != snap.stats.Dimension {
		return nil, domain.WrapError(domain.ErrEmbeddingBackend, "embed query", fmt.Errorf(
			"query dimension %d does not match index dimension %d", len(queryVector), snap.stats.Dimension,
		))
	}

	queryNorm := squaredNorm(queryVector)
	candidates := make([]scored, len(snap.chunks))
	for pos := range snap.chunks {
		candidates[pos] = scored{
			pos: pos,
			sim: cosine(dot(queryVector, snap.chunks[pos].Embedding), queryNorm, snap.norms[pos]),
		}
	}
	slices.SortStableFunc(candidates, func(a, b scored) int {
		switch {
		case a.sim > b.sim:
			return -1
		case a.sim < b.sim:
			return 1
		}
		return 0
	})

	if article, ok := chunking.ArticleReference(query); ok {
		candidates = boostArticle(snap.chunks, candidates, article, max(topK, articleCandidatePool))
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]domain.SearchResult, 0, len(candidates))
	for rank, c := range candidates {
		out = append(out, domain.SearchResult{
			Chunk:        snap.chunks[c.pos],
			Similarity:   c.sim,
			RankPosition: rank + 1,
		})
	}
	return out, nil
}

// boostArticle keeps the top pool candidates plus every chunk of the
// referenced article and orders matches first. Input must be sorted by
// similarity; the stable sort keeps that order within each group.
func boostArticle(chunks []domain.Chunk, ranked []scored, article, pool int) []scored {
	matches := func(c scored) bool {
		n := chunks[c.pos].ArticleNumber
		return n != nil && *n == article
	}

	out := make([]scored, 0, pool)
	for rank, c := range ranked {
		if rank < pool || matches(c) {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b scored) int {
		ma, mb := matches(a), matches(b)
		switch {
		case ma && !mb:
			return -1
		case !ma && mb:
			return 1
		}
		return 0
	})
	return out
}

func (i *Index) Stats() domain.IndexStats {
	snap := i.current.Load()
	if snap == nil {
		return domain.IndexStats{}
	}
	return snap.Stats()
}

func (s *snapshot) Stats() domain.IndexStats {
	stats := s.stats
	stats.EmptyDocuments = slices.Clone(s.stats.EmptyDocuments)
	return stats
}
