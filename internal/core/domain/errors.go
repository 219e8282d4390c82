package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized    = errors.New("index not initialized")
	ErrEmbeddingBackend  = errors.New("embedding backend error")
	ErrGenerationBackend = errors.New("generation backend error")
	ErrProcessingFailed  = errors.New("processing failed")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")

	// ErrDocumentEmpty is a warning: the document produced zero chunks and is skipped.
	ErrDocumentEmpty = errors.New("document produced no chunks")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// StageError reports the orchestration stage where an answer run stopped.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return "stage error"
	}
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
