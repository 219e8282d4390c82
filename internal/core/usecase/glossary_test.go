package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
)

func newTestResolver(gen *generatorFake) *GlossaryResolver {
	return NewGlossaryResolver(gen, testTerms(), quietLogger())
}

func TestNormalize(t *testing.T) {
	r := newTestResolver(newGeneratorFake())
	cases := map[string]string{
		"comunhão parcial":      "comunhão de adquiridos",
		"Comunhão Parcial":      "comunhão de adquiridos",
		"USUCAPIÃO":             "usucapião",
		" prescrição aquisitiva": "usucapião",
		"Termo Desconhecido":    "termo desconhecido",
	}
	for in, want := range cases {
		if got := r.Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizePrefersCanonicalOverSynonym(t *testing.T) {
	terms := []domain.GlossaryTerm{
		{CanonicalName: "prescrição", Category: "civil", DifficultyLevel: 3},
		{CanonicalName: "caducidade", Category: "civil", Synonyms: []string{"prescrição"}, DifficultyLevel: 3},
	}
	r := NewGlossaryResolver(newGeneratorFake(), terms, quietLogger())
	if got := r.Normalize("Prescrição"); got != "prescrição" {
		t.Fatalf("expected canonical match first, got %q", got)
	}
}

func TestDetectRequest(t *testing.T) {
	r := newTestResolver(newGeneratorFake())
	cases := []struct {
		question string
		prior    []string
		want     *domain.GlossaryRequest
	}{
		{"O que é usucapião?", nil, &domain.GlossaryRequest{Term: "usucapião", Confidence: 0.95, Source: domain.GlossarySourceTable}},
		{"Não percebo o termo «prescrição aquisitiva»", nil, &domain.GlossaryRequest{Term: "prescrição aquisitiva", Confidence: 0.95, Source: domain.GlossarySourceTable}},
		{"o que significa comunhão parcial de bens?", nil, &domain.GlossaryRequest{Term: "comunhão parcial de bens", Confidence: 0.95, Source: domain.GlossarySourceTable}},
		{"Qual o significado de caução?", nil, &domain.GlossaryRequest{Term: "caução", Confidence: 0.95, Source: domain.GlossarySourceTable}},
		{"Explica-me o que é o usufruto", nil, &domain.GlossaryRequest{Term: "usufruto", Confidence: 0.95, Source: domain.GlossarySourceTable}},
		{"O que é o NRAU?", []string{"NRAU", "caução"}, &domain.GlossaryRequest{Term: "nrau", Confidence: 0.85, Source: domain.GlossarySourceContext}},
		{"O que é xpto?", nil, nil},
		{"Quanto tempo tenho para contestar a ação?", nil, nil},
		{"O que é que faço com a penhora do meu salário?", nil, nil},
		{"", nil, nil},
		{"o que significa a comunhão parcial de bens no casamento?", nil, nil},
		{"O que é preciso para pedir a caução de volta?", nil, nil},
		{"Explique como posso contestar a penhora", nil, nil},
		{"Não percebo porque me exigem um contrato de arrendamento", nil, nil},
		{"O que é necessário para o usufruto de uma casa?", []string{"usufruto"}, nil},
	}
	for _, tc := range cases {
		got := r.DetectRequest(tc.question, tc.prior)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("DetectRequest(%q) = %+v, want %+v", tc.question, got, tc.want)
		}
	}
}

func TestExtractTechnicalTerms(t *testing.T) {
	r := newTestResolver(newGeneratorFake())
	got := r.ExtractTechnicalTerms("O contrato de ARRENDAMENTO prevê caução e usufruto. Ver NRAU, IRS e a CONSTITUIÇÃO.")
	want := []string{"arrendamento", "caução", "constituição", "irs", "nrau", "usufruto"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractTechnicalTerms() = %v, want %v", got, want)
	}
	if got := r.ExtractTechnicalTerms("Sem termos aqui. Só EU e TU."); len(got) != 0 {
		t.Fatalf("expected no terms, got %v", got)
	}
}

func TestExplainCachesByLiteralAndCanonical(t *testing.T) {
	gen := newGeneratorFake()
	gen.responses[glossaryInstructions] = "  A usucapião é a aquisição de um direito pela posse prolongada.  "
	r := newTestResolver(gen)
	chunks := []domain.SearchResult{
		searchResult("Código Civil", "ARTIGO 1287\nA posse do direito de propriedade...", intPtr(1287)),
		searchResult("Código Civil", "ARTIGO 1296\nNão havendo registo...", intPtr(1296)),
	}

	first, err := r.Explain(context.Background(), "Usucapião", chunks, "")
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if first.CanonicalTerm != "usucapião" || first.Category != "direitos reais" || first.DifficultyLevel != 3 {
		t.Fatalf("unexpected explanation %+v", first)
	}
	if first.ExplanationText != "A usucapião é a aquisição de um direito pela posse prolongada." {
		t.Fatalf("unexpected text %q", first.ExplanationText)
	}
	if !reflect.DeepEqual(first.SourceLawNames, []string{"Código Civil"}) {
		t.Fatalf("unexpected source laws %v", first.SourceLawNames)
	}
	calls := gen.callsFor(glossaryInstructions)
	if len(calls) != 1 || !strings.Contains(calls[0].user, "[Fonte 1: Código Civil, artigo 1287]") {
		t.Fatalf("expected grounded prompt, got %+v", calls)
	}

	if _, err := r.Explain(context.Background(), "usucapião", nil, ""); err != nil {
		t.Fatalf("Explain() cached error = %v", err)
	}
	synonym, err := r.Explain(context.Background(), "prescrição aquisitiva", nil, "")
	if err != nil {
		t.Fatalf("Explain() synonym error = %v", err)
	}
	if synonym.Term != "prescrição aquisitiva" || synonym.CanonicalTerm != "usucapião" {
		t.Fatalf("unexpected synonym explanation %+v", synonym)
	}
	if n := len(gen.callsFor(glossaryInstructions)); n != 1 {
		t.Fatalf("expected cache hits without backend calls, got %d calls", n)
	}

	stats := r.Stats()
	if stats.CacheHits != 2 || stats.CacheMisses != 1 || stats.CachedEntries != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.KnownTerms != len(testTerms()) || stats.Categories["direitos reais"] != 2 {
		t.Fatalf("unexpected table stats %+v", stats)
	}

	r.ClearCache()
	if got := r.Stats().CachedEntries; got != 0 {
		t.Fatalf("expected empty cache, got %d", got)
	}
	if _, err := r.Explain(context.Background(), "usucapião", nil, ""); err != nil {
		t.Fatalf("Explain() after clear error = %v", err)
	}
	if n := len(gen.callsFor(glossaryInstructions)); n != 2 {
		t.Fatalf("expected regeneration after clear, got %d calls", n)
	}
}

func TestExplainWithoutChunksStillExplainsKnownTerm(t *testing.T) {
	gen := newGeneratorFake()
	gen.responses[glossaryInstructions] = "Definição simples de usucapião."
	got, err := newTestResolver(gen).Explain(context.Background(), "usucapião", nil, "")
	if err != nil || got == nil {
		t.Fatalf("expected explanation, got %v, %v", got, err)
	}
	if len(got.SourceLawNames) != 0 {
		t.Fatalf("expected no source laws, got %v", got.SourceLawNames)
	}
	if !strings.Contains(gen.callsFor(glossaryInstructions)[0].user, "Sem excertos de lei") {
		t.Fatalf("expected prompt to state missing legal excerpts")
	}
}

func TestExplainUnknownTermPassesThrough(t *testing.T) {
	gen := newGeneratorFake()
	gen.responses[glossaryInstructions] = "Explicação."
	got, err := newTestResolver(gen).Explain(context.Background(), "Anticrese", nil, "")
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if got.CanonicalTerm != "anticrese" || got.Category != "geral" || got.DifficultyLevel != 0 {
		t.Fatalf("unexpected explanation %+v", got)
	}
}

func TestExplainErrors(t *testing.T) {
	gen := newGeneratorFake()
	gen.errs[glossaryInstructions] = errors.New("backend down")
	r := newTestResolver(gen)

	_, err := r.Explain(context.Background(), "usucapião", nil, "")
	if !errors.Is(err, domain.ErrGenerationBackend) {
		t.Fatalf("expected ErrGenerationBackend, got %v", err)
	}
	if r.Stats().CachedEntries != 0 {
		t.Fatalf("failed explanations must not be cached")
	}

	_, err = r.Explain(context.Background(), "  ", nil, "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	gen.errs = map[string]error{}
	gen.responses[glossaryInstructions] = "   "
	_, err = r.Explain(context.Background(), "usucapião", nil, "")
	if !errors.Is(err, domain.ErrGenerationBackend) {
		t.Fatalf("expected ErrGenerationBackend for empty text, got %v", err)
	}
}

func TestExplainCollapsesConcurrentMisses(t *testing.T) {
	gen := newGeneratorFake()
	gen.responses[glossaryInstructions] = "Explicação partilhada."
	gen.started = make(chan struct{}, 1)
	gen.release = make(chan struct{})
	r := newTestResolver(gen)

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Explain(context.Background(), "usucapião", nil, ""); err != nil {
				errs <- err
			}
		}()
	}

	<-gen.started
	deadline := time.Now().Add(2 * time.Second)
	for r.Stats().CacheMisses < callers && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(gen.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Explain() error = %v", err)
	}

	if n := len(gen.callsFor(glossaryInstructions)); n != 1 {
		t.Fatalf("expected one shared backend call, got %d", n)
	}
}

func TestExplainHonorsCallerCancellation(t *testing.T) {
	gen := newGeneratorFake()
	gen.responses[glossaryInstructions] = "Explicação."
	gen.started = make(chan struct{}, 1)
	gen.release = make(chan struct{})
	r := newTestResolver(gen)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Explain(ctx, "usucapião", nil, "")
		done <- err
	}()
	<-gen.started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(gen.release)
	deadline := time.Now().Add(2 * time.Second)
	for r.Stats().CachedEntries == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if r.Stats().CachedEntries != 1 {
		t.Fatalf("expected the shared result to be cached under the canonical key")
	}
}
