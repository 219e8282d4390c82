package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
	"github.com/kirillkom/legal-assistant/internal/core/ports"
)

type IndexUseCase struct {
	index    ports.VectorIndex
	source   ports.DocumentSource
	observer ports.BuildObserver
	logger   *slog.Logger
}

func NewIndexUseCase(
	index ports.VectorIndex,
	source ports.DocumentSource,
	observer ports.BuildObserver,
	logger *slog.Logger,
) *IndexUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexUseCase{
		index:    index,
		source:   source,
		observer: observer,
		logger:   logger,
	}
}

func (uc *IndexUseCase) BuildIndex(ctx context.Context, documents []domain.LawDocument) (domain.IndexStats, error) {
	started := time.Now()
	stats, err := uc.index.Build(ctx, documents)
	if uc.observer != nil {
		uc.observer.ObserveBuild(time.Since(started), stats, err)
	}
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("build index: %w", err)
	}
	return stats, nil
}

// Rebuild reloads the corpus from the document source and replaces the index.
// Searches keep using the previous snapshot until the build completes.
func (uc *IndexUseCase) Rebuild(ctx context.Context) (domain.IndexStats, error) {
	if uc.source == nil {
		return domain.IndexStats{}, domain.WrapError(domain.ErrInvalidInput, "rebuild index", errors.New("document source is not configured"))
	}
	documents, err := uc.source.Load(ctx)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("load documents: %w", err)
	}
	uc.logger.Info("index_rebuild_started", "documents", len(documents))
	return uc.BuildIndex(ctx, documents)
}

// HandleRebuildRequest is the queue subscriber callback.
func (uc *IndexUseCase) HandleRebuildRequest(ctx context.Context, reason string) error {
	uc.logger.Info("index_rebuild_requested", "reason", reason)
	if _, err := uc.Rebuild(ctx); err != nil {
		uc.logger.Error("index_rebuild_failed", "reason", reason, "error", err)
		return err
	}
	return nil
}
