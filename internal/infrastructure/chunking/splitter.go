package chunking

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
)

const (
	PresetCoarse  = "coarse"
	PresetArticle = "article"

	// ArticleMarker matches a statute article heading at the start of a line.
	ArticleMarker = `(?i)(?:^|\n)[ \t]*artigo[ \t]+\d+`
)

// Config controls splitting. Boundary marks hard section starts; Separators
// are tried in order only when a section exceeds ChunkSize. An empty
// separator cuts at the character limit.
type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	Boundary       string
	Separators     []string
	DetectArticles bool
}

func CoarsePreset() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Separators:   []string{`\n\n`, `\n`, ` `, ``},
	}
}

func ArticlePreset() Config {
	return Config{
		ChunkSize:      1500,
		ChunkOverlap:   300,
		Boundary:       ArticleMarker,
		Separators:     []string{`\n[ \t]*\n`, `\n`, `[.!?;]\s`, ` `, ``},
		DetectArticles: true,
	}
}

func Preset(name string) (Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PresetArticle, "":
		return ArticlePreset(), nil
	case PresetCoarse:
		return CoarsePreset(), nil
	default:
		return Config{}, fmt.Errorf("unknown chunk preset %q", name)
	}
}

// Resolve applies explicit size and overlap overrides to a named preset. A nil
// override keeps the preset value; an explicit 0 overlap is honoured.
func Resolve(preset string, size, overlap *int) (Config, error) {
	cfg, err := Preset(preset)
	if err != nil {
		return Config{}, err
	}
	if size != nil {
		cfg.ChunkSize = *size
	}
	if overlap != nil {
		cfg.ChunkOverlap = *overlap
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

type Splitter struct {
	cfg        Config
	boundary   *regexp.Regexp
	separators []*regexp.Regexp
}

func NewSplitter(cfg Config) (*Splitter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Splitter{cfg: cfg}
	if cfg.Boundary != "" {
		re, err := regexp.Compile(cfg.Boundary)
		if err != nil {
			return nil, fmt.Errorf("compile boundary %q: %w", cfg.Boundary, err)
		}
		s.boundary = re
	}
	for _, sep := range cfg.Separators {
		if sep == "" {
			s.separators = append(s.separators, nil)
			continue
		}
		re, err := regexp.Compile(sep)
		if err != nil {
			return nil, fmt.Errorf("compile separator %q: %w", sep, err)
		}
		s.separators = append(s.separators, re)
	}
	return s, nil
}

func (s *Splitter) Config() Config {
	return s.cfg
}

// Split returns the segments of text with article metadata when enabled.
func (s *Splitter) Split(text string) []domain.Segment {
	texts := s.SplitText(text)
	out := make([]domain.Segment, 0, len(texts))
	for _, t := range texts {
		seg := domain.Segment{Text: t}
		if s.cfg.DetectArticles {
			seg.ArticleNumber, seg.ArticleTitle = DetectArticle(t)
		}
		out = append(out, seg)
	}
	return out
}

// SplitText returns an ordered list of chunks, each at most ChunkSize runes.
// Consecutive windows of one oversized section share exactly ChunkOverlap runes.
func (s *Splitter) SplitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	out := make([]string, 0, utf8.RuneCountInString(text)/s.cfg.ChunkSize+1)
	for _, section := range s.sections(text) {
		out = append(out, s.window(section)...)
	}
	return out
}

func (s *Splitter) sections(text string) []string {
	if s.boundary == nil {
		return []string{text}
	}

	starts := []int{0}
	for _, loc := range s.boundary.FindAllStringIndex(text, -1) {
		if loc[0] > 0 {
			starts = append(starts, loc[0])
		}
	}

	out := make([]string, 0, len(starts))
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if section := strings.TrimSpace(text[start:end]); section != "" {
			out = append(out, section)
		}
	}
	return out
}

func (s *Splitter) window(section string) []string {
	runes := []rune(section)
	size := s.cfg.ChunkSize
	overlap := s.cfg.ChunkOverlap
	if len(runes) <= size {
		return []string{section}
	}

	out := make([]string, 0, len(runes)/(size-overlap)+1)
	start := 0
	for {
		if len(runes)-start <= size {
			return append(out, string(runes[start:]))
		}
		cut := s.cut(runes, start, start+overlap+1, start+size)
		out = append(out, string(runes[start:cut]))
		start = cut - overlap
	}
}

// cut picks the chunk end in [minCut, limit]: the last match end of the
// highest-priority separator found in that range, else limit.
func (s *Splitter) cut(runes []rune, start, minCut, limit int) int {
	sub := string(runes[start:limit])
	for _, sep := range s.separators {
		if sep == nil {
			return limit
		}
		locs := sep.FindAllStringIndex(sub, -1)
		for i := len(locs) - 1; i >= 0; i-- {
			if locs[i][0] == locs[i][1] {
				continue
			}
			end := start + utf8.RuneCountInString(sub[:locs[i][1]])
			if end < minCut {
				break
			}
			return end
		}
	}
	return limit
}
