package chunking

import (
	"regexp"
	"strconv"
	"strings"
)

const maxArticleTitleRunes = 100

var (
	articleNumberPattern = regexp.MustCompile(`(?i)artigo\s+(\d+)`)
	articleMarkerLine    = regexp.MustCompile(`(?i)^artigo\s+\d+\s*[.ºª°o-]*\s*$`)
)

// DetectArticle returns the first "ARTIGO <n>" number in text and the first
// non-marker line among the first five lines as title. Both are nil when
// no article reference is present.
func DetectArticle(text string) (*int, *string) {
	m := articleNumberPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	number, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, nil
	}

	lines := strings.SplitN(text, "\n", 6)
	if len(lines) > 5 {
		lines = lines[:5]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || articleMarkerLine.MatchString(line) {
			continue
		}
		title := truncateRunes(line, maxArticleTitleRunes)
		return &number, &title
	}
	return &number, nil
}

// ArticleReference extracts N from an explicit "artigo N" mention in a query.
func ArticleReference(query string) (int, bool) {
	m := articleNumberPattern.FindStringSubmatch(query)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
