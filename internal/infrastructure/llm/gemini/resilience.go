package gemini

import (
	"errors"

	"google.golang.org/api/googleapi"

	"github.com/kirillkom/legal-assistant/internal/infrastructure/resilience"
)

func classifyGeminiError(err error) resilience.ErrorClassification {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if resilience.IsRetryableHTTPStatus(apiErr.Code) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ClassifyTransportError(err)
}
