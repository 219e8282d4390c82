package chunking

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"
)

func mustSplitter(t *testing.T, cfg Config) *Splitter {
	t.Helper()
	s, err := NewSplitter(cfg)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}
	return s
}

func TestSplitEmptyTextYieldsNoChunks(t *testing.T) {
	s := mustSplitter(t, ArticlePreset())
	for _, text := range []string{"", "   ", "\n\t\n"} {
		if got := s.Split(text); len(got) != 0 {
			t.Fatalf("expected no chunks for %q, got %d", text, len(got))
		}
	}
}

func TestSplitArticlePresetSplitsAtArticleMarkers(t *testing.T) {
	s := mustSplitter(t, ArticlePreset())
	segments := s.Split("ARTIGO 1\nDireito à vida.\n\nARTIGO 2\nDireito à liberdade.")

	if len(segments) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(segments), segments)
	}
	for i, want := range []int{1, 2} {
		if segments[i].ArticleNumber == nil || *segments[i].ArticleNumber != want {
			t.Fatalf("chunk %d: expected article %d, got %v", i, want, segments[i].ArticleNumber)
		}
	}
	if segments[0].Text != "ARTIGO 1\nDireito à vida." {
		t.Fatalf("unexpected first chunk text %q", segments[0].Text)
	}
	if segments[1].ArticleTitle == nil || *segments[1].ArticleTitle != "Direito à liberdade." {
		t.Fatalf("unexpected second chunk title %v", segments[1].ArticleTitle)
	}
}

func TestSplitKeepsPreambleBeforeFirstArticle(t *testing.T) {
	s := mustSplitter(t, ArticlePreset())
	segments := s.Split("Código Civil\nLivro I\n\nArtigo 1.º\nFontes do direito")

	if len(segments) != 2 {
		t.Fatalf("expected preamble + article, got %d", len(segments))
	}
	if segments[0].ArticleNumber != nil || segments[0].ArticleTitle != nil {
		t.Fatalf("expected preamble without article metadata, got %+v", segments[0])
	}
	if segments[1].ArticleNumber == nil || *segments[1].ArticleNumber != 1 {
		t.Fatalf("expected article 1, got %+v", segments[1])
	}
	if segments[1].ArticleTitle == nil || *segments[1].ArticleTitle != "Fontes do direito" {
		t.Fatalf("expected title to skip marker line, got %v", segments[1].ArticleTitle)
	}
}

func TestSplitCoarsePresetDoesNotDetectArticles(t *testing.T) {
	s := mustSplitter(t, CoarsePreset())
	segments := s.Split("ARTIGO 1\nDireito à vida.\n\nARTIGO 2\nDireito à liberdade.")
	if len(segments) != 1 {
		t.Fatalf("expected a single coarse chunk, got %d", len(segments))
	}
	if segments[0].ArticleNumber != nil {
		t.Fatalf("coarse preset must not set article number")
	}
}

func TestSplitPrefersHigherPrioritySeparators(t *testing.T) {
	s := mustSplitter(t, Config{
		ChunkSize:    40,
		ChunkOverlap: 5,
		Separators:   []string{`\n\n`, ` `, ``},
	})
	text := "primeiro paragrafo curto\n\nsegundo paragrafo tambem curto mas maior"
	chunks := s.SplitText(text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "\n\n") {
		t.Fatalf("expected first chunk to end at blank line, got %q", chunks[0])
	}
}

func TestSplitOverlapAndSizeInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"direito", "à", "habitação", "contrato", "ARTIGO", "prazo", "réu", "—", "indemnização", "lei"}
	seps := []string{" ", " ", " ", "\n", "\n\n", ". "}

	configs := []Config{
		{ChunkSize: 1000, ChunkOverlap: 200, Separators: CoarsePreset().Separators},
		{ChunkSize: 120, ChunkOverlap: 30, Separators: CoarsePreset().Separators},
		{ChunkSize: 50, ChunkOverlap: 0, Separators: CoarsePreset().Separators},
		{ChunkSize: 64, ChunkOverlap: 63, Separators: []string{` `, ``}},
		{ChunkSize: 10, ChunkOverlap: 3, Separators: []string{``}},
	}

	for _, cfg := range configs {
		s := mustSplitter(t, cfg)
		for iter := 0; iter < 50; iter++ {
			var b strings.Builder
			n := rng.Intn(400)
			for i := 0; i < n; i++ {
				b.WriteString(words[rng.Intn(len(words))])
				b.WriteString(seps[rng.Intn(len(seps))])
			}

			chunks := s.SplitText(b.String())
			for i, chunk := range chunks {
				if l := utf8.RuneCountInString(chunk); l > cfg.ChunkSize {
					t.Fatalf("cfg %+v: chunk %d has %d runes > %d", cfg, i, l, cfg.ChunkSize)
				}
				if i == 0 {
					continue
				}
				prev := []rune(chunks[i-1])
				curr := []rune(chunk)
				tail := string(prev[len(prev)-cfg.ChunkOverlap:])
				head := string(curr[:cfg.ChunkOverlap])
				if tail != head {
					t.Fatalf("cfg %+v: overlap mismatch between %d and %d: %q vs %q", cfg, i-1, i, tail, head)
				}
			}
		}
	}
}

func TestNewSplitterRejectsOverlapNotBelowSize(t *testing.T) {
	for _, cfg := range []Config{
		{ChunkSize: 100, ChunkOverlap: 150},
		{ChunkSize: 100, ChunkOverlap: 100},
		{ChunkSize: 100, ChunkOverlap: -1},
		{ChunkSize: 0},
	} {
		if _, err := NewSplitter(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestResolveAppliesExplicitOverrides(t *testing.T) {
	size, overlap := 200, 0
	cfg, err := Resolve("coarse", &size, &overlap)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.ChunkSize != 200 || cfg.ChunkOverlap != 0 {
		t.Fatalf("expected explicit zero overlap to be kept, got %+v", cfg)
	}

	cfg, err = Resolve("article", nil, nil)
	if err != nil || cfg.ChunkSize != 1500 || cfg.ChunkOverlap != 300 {
		t.Fatalf("expected preset values, got %+v, %v", cfg, err)
	}

	small := 250
	if _, err := Resolve("article", &small, nil); err == nil {
		t.Fatalf("expected error when size drops below the preset overlap")
	}
}

func TestNewSplitterRejectsInvalidSeparator(t *testing.T) {
	if _, err := NewSplitter(Config{ChunkSize: 10, Separators: []string{"("}}); err == nil {
		t.Fatalf("expected error for invalid separator")
	}
}

func TestPresetByName(t *testing.T) {
	cfg, err := Preset("coarse")
	if err != nil || cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Fatalf("unexpected coarse preset %+v, %v", cfg, err)
	}
	cfg, err = Preset("article")
	if err != nil || cfg.ChunkSize != 1500 || cfg.ChunkOverlap != 300 || !cfg.DetectArticles {
		t.Fatalf("unexpected article preset %+v, %v", cfg, err)
	}
	if _, err := Preset("sentences"); err == nil {
		t.Fatalf("expected error for unknown preset")
	}
}
