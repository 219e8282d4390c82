package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
)

// Source loads statutes from a directory tree of .txt, .md and .pdf files.
type Source struct {
	basePath string
	logger   *slog.Logger
}

func New(basePath string, logger *slog.Logger) *Source {
	if basePath == "" {
		basePath = "./data/laws"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{basePath: basePath, logger: logger}
}

func (s *Source) Load(ctx context.Context) ([]domain.LawDocument, error) {
	info, err := os.Stat(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("stat documents dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("documents path %s is not a directory", s.basePath)
	}

	var docs []domain.LawDocument
	err = filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn("law_document_skipped", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !supportedExtension(ext) {
			return nil
		}

		text, err := readText(path, ext)
		if err != nil {
			s.logger.Warn("law_document_skipped", "path", path, "error", err)
			return nil
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		docs = append(docs, domain.LawDocument{
			ID:       documentID(rel),
			Name:     lawName(filepath.Base(path)),
			FullText: text,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk documents dir: %w", err)
	}

	s.logger.Info("law_documents_loaded", "path", s.basePath, "count", len(docs))
	return docs, nil
}

func supportedExtension(ext string) bool {
	switch ext {
	case ".txt", ".md", ".pdf":
		return true
	default:
		return false
	}
}

func readText(path, ext string) (string, error) {
	if ext == ".pdf" {
		return readPDF(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", errors.New("file is not valid UTF-8 text")
	}
	return string(raw), nil
}

// readPDF extracts plain text page by page and joins the pages with a newline.
func readPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}

func documentID(rel string) string {
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}

// lawName turns "codigo_civil-2024.txt" into "codigo civil 2024".
func lawName(filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}
