package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotInitialized),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrEmbeddingBackend),
		domain.IsKind(err, domain.ErrGenerationBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// failedStage reports where an answer run stopped, or "" for errors raised before the pipeline.
func failedStage(err error) string {
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		return string(stageErr.Stage)
	}
	return ""
}
