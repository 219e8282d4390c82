package usecase

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
	"github.com/kirillkom/legal-assistant/internal/core/ports"
)

const (
	glossaryTableConfidence   = 0.95
	glossaryContextConfidence = 0.85
	explainTemperature        = 0.3
	explainMaxTokens          = 1500
)

// Phrasings of a definition request, tried in order over the lower-cased question.
var glossaryRequestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|[\s,;:.!¡¿])(?:o\s+)?que\s+(?:é|e|significa|quer\s+dizer)\s+([^?!.]+)`),
	regexp.MustCompile(`qual\s+(?:é\s+)?o\s+(?:significado|sentido)\s+d[eoa]s?\s+([^?!.]+)`),
	regexp.MustCompile(`defini[çc][ãa]o\s+d[eoa]s?\s+([^?!.]+)`),
	regexp.MustCompile(`(?:^|\s)defin[ae]\s+([^?!.]+)`),
	regexp.MustCompile(`n[ãa]o\s+(?:percebo|entendo|compreendo|sei)\s+(?:bem\s+)?(?:o\s+que\s+(?:é|significa)\s+)?([^?!.]+)`),
	regexp.MustCompile(`expli(?:ca|que)(?:-me)?\s+(?:o\s+que\s+(?:é|significa)\s+)?([^?!.]+)`),
	regexp.MustCompile(`([^?!.,]+?)\s+(?:significa|quer\s+dizer)\s+o\s+qu[eê]`),
}

var (
	leadingFiller = regexp.MustCompile(`^(?:(?:o|a|os|as|um|uma)\s+)?(?:(?:termo|expressão|palavra|conceito)\s+)?(?:(?:de|do|da)\s+)?`)
	upperRun      = regexp.MustCompile(`\p{Lu}{3,}`)
)

// GlossaryResolver detects definition requests, normalizes terms against the
// canonical table and explains them through the generation backend. The table
// is read-only after construction; explanations are cached until ClearCache.
type GlossaryResolver struct {
	generator ports.Generator
	logger    *slog.Logger

	terms     []domain.GlossaryTerm
	canonical map[string]int
	synonyms  map[string]int

	mu     sync.RWMutex
	cache  map[string]domain.Explanation
	hits   atomic.Int64
	misses atomic.Int64
	group  singleflight.Group
}

func NewGlossaryResolver(generator ports.Generator, terms []domain.GlossaryTerm, logger *slog.Logger) *GlossaryResolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &GlossaryResolver{
		generator: generator,
		logger:    logger,
		terms:     slices.Clone(terms),
		canonical: make(map[string]int, len(terms)),
		synonyms:  make(map[string]int),
		cache:     make(map[string]domain.Explanation),
	}
	for i, term := range r.terms {
		name := strings.ToLower(strings.TrimSpace(term.CanonicalName))
		if _, ok := r.canonical[name]; ok {
			continue
		}
		r.canonical[name] = i
	}
	for i, term := range r.terms {
		for _, syn := range term.Synonyms {
			syn = strings.ToLower(strings.TrimSpace(syn))
			if syn == "" {
				continue
			}
			if _, ok := r.synonyms[syn]; ok {
				continue
			}
			r.synonyms[syn] = i
		}
	}
	return r
}

// DetectRequest returns the requested term when the question asks for a
// definition of a known term or of a technical term used in the previous turn.
func (r *GlossaryResolver) DetectRequest(question string, priorTerms []string) *domain.GlossaryRequest {
	lower := strings.ToLower(strings.TrimSpace(question))
	if lower == "" {
		return nil
	}

	var span string
	for _, pattern := range glossaryRequestPatterns {
		if m := pattern.FindStringSubmatch(lower); m != nil {
			span = cleanCandidate(m[1])
			break
		}
	}
	if span == "" || strings.HasPrefix(span, "que ") {
		return nil
	}

	if r.isKnown(span) {
		return &domain.GlossaryRequest{Term: span, Confidence: glossaryTableConfidence, Source: domain.GlossarySourceTable}
	}
	if slices.Contains(cleanList(priorTerms, true), span) {
		return &domain.GlossaryRequest{Term: span, Confidence: glossaryContextConfidence, Source: domain.GlossarySourceContext}
	}
	return nil
}

// Normalize maps a term to its canonical name: canonical names first, then
// synonyms, else the lower-cased input.
func (r *GlossaryResolver) Normalize(term string) string {
	key := strings.ToLower(strings.TrimSpace(term))
	if i, ok := r.canonical[key]; ok {
		return strings.ToLower(r.terms[i].CanonicalName)
	}
	if i, ok := r.synonyms[key]; ok {
		return strings.ToLower(r.terms[i].CanonicalName)
	}
	return key
}

// Lookup returns the table entry for term or one of its synonyms.
func (r *GlossaryResolver) Lookup(term string) (domain.GlossaryTerm, bool) {
	key := strings.ToLower(strings.TrimSpace(term))
	if i, ok := r.canonical[key]; ok {
		return r.terms[i], true
	}
	if i, ok := r.synonyms[key]; ok {
		return r.terms[i], true
	}
	return domain.GlossaryTerm{}, false
}

// Explain returns a cached explanation or generates one grounded on chunks.
// Concurrent misses for the same canonical term share one backend call.
func (r *GlossaryResolver) Explain(
	ctx context.Context,
	term string,
	chunks []domain.SearchResult,
	conversationContext string,
) (*domain.Explanation, error) {
	literal := strings.TrimSpace(term)
	key := strings.ToLower(literal)
	if key == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "explain term", errors.New("term is required"))
	}

	if cached, ok := r.cached(key); ok {
		r.hits.Add(1)
		return withTerm(cached, literal), nil
	}
	canonical := r.Normalize(key)
	if cached, ok := r.cached(canonical); ok {
		r.hits.Add(1)
		r.store(key, cached)
		return withTerm(cached, literal), nil
	}
	r.misses.Add(1)

	ch := r.group.DoChan(canonical, func() (any, error) {
		explanation, err := r.generate(context.WithoutCancel(ctx), canonical, chunks, conversationContext)
		if err != nil {
			return nil, err
		}
		r.store(canonical, explanation)
		return explanation, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		explanation := res.Val.(domain.Explanation)
		r.store(key, explanation)
		return withTerm(explanation, literal), nil
	}
}

func (r *GlossaryResolver) generate(
	ctx context.Context,
	canonical string,
	chunks []domain.SearchResult,
	conversationContext string,
) (domain.Explanation, error) {
	explanation := domain.Explanation{
		Term:           canonical,
		CanonicalTerm:  canonical,
		Category:       "geral",
		SourceLawNames: distinctLawNames(chunks),
	}
	var entry *domain.GlossaryTerm
	if found, ok := r.Lookup(canonical); ok {
		entry = &found
		explanation.Category = found.Category
		explanation.DifficultyLevel = found.DifficultyLevel
	}

	text, err := r.generator.Generate(ctx, glossaryInstructions, buildGlossaryPrompt(canonical, entry, chunks, conversationContext), domain.GenerateOptions{
		Temperature:     explainTemperature,
		MaxOutputTokens: explainMaxTokens,
	})
	if err != nil {
		return domain.Explanation{}, domain.WrapError(domain.ErrGenerationBackend, "explain term", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Explanation{}, domain.WrapError(domain.ErrGenerationBackend, "explain term", errors.New("empty explanation"))
	}
	explanation.ExplanationText = text
	r.logger.Info("glossary_explanation_generated", "term", canonical, "sources", len(explanation.SourceLawNames))
	return explanation, nil
}

// ExtractTechnicalTerms spots table terms and runs of three or more
// uppercase letters in text. The result is sorted and lower-cased.
func (r *GlossaryResolver) ExtractTechnicalTerms(text string) []string {
	lower := strings.ToLower(text)
	found := make(map[string]struct{})
	for name := range r.canonical {
		if strings.Contains(lower, name) {
			found[name] = struct{}{}
		}
	}
	for _, run := range upperRun.FindAllString(text, -1) {
		found[strings.ToLower(run)] = struct{}{}
	}

	out := make([]string, 0, len(found))
	for term := range found {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

func (r *GlossaryResolver) Stats() domain.GlossaryStats {
	categories := make(map[string]int)
	for _, term := range r.terms {
		categories[term.Category]++
	}
	r.mu.RLock()
	cached := len(r.cache)
	r.mu.RUnlock()
	return domain.GlossaryStats{
		KnownTerms:    len(r.terms),
		Categories:    categories,
		CachedEntries: cached,
		CacheHits:     r.hits.Load(),
		CacheMisses:   r.misses.Load(),
	}
}

func (r *GlossaryResolver) ClearCache() {
	r.mu.Lock()
	r.cache = make(map[string]domain.Explanation)
	r.mu.Unlock()
	r.logger.Info("glossary_cache_cleared")
}

func (r *GlossaryResolver) isKnown(term string) bool {
	_, ok := r.Lookup(term)
	return ok
}

func (r *GlossaryResolver) cached(key string) (domain.Explanation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[key]
	return e, ok
}

// store is last-writer-wins; explanations for one term are interchangeable.
func (r *GlossaryResolver) store(key string, e domain.Explanation) {
	r.mu.Lock()
	r.cache[key] = e
	r.mu.Unlock()
}

func withTerm(e domain.Explanation, literal string) *domain.Explanation {
	e.Term = literal
	e.SourceLawNames = slices.Clone(e.SourceLawNames)
	return &e
}

func cleanCandidate(span string) string {
	span = strings.TrimSpace(span)
	span = strings.Trim(span, `"'«»“”`)
	span = strings.TrimSpace(leadingFiller.ReplaceAllString(span, ""))
	return strings.Trim(span, `"'«»“” `)
}

func distinctLawNames(results []domain.SearchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		name := strings.TrimSpace(r.Chunk.LawName)
		if name == "" || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}
