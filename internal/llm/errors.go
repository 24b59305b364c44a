package llm

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrMissingAPIKey means no credential is configured; generation features
	// are disabled until the user supplies one in settings.
	ErrMissingAPIKey = errors.New("llm: api key not configured")

	// ErrInvalidAPIKey means the backend rejected the configured credential.
	ErrInvalidAPIKey = errors.New("llm: api key rejected")

	// ErrQuotaExceeded is surfaced to the user verbatim.
	ErrQuotaExceeded = errors.New("llm: quota exceeded")
)

// classifyError maps backend failures onto the sentinel taxonomy; anything
// unrecognized is wrapped generically.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests,
			fmt.Sprint(apiErr.Code) == "insufficient_quota":
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
	}

	return fmt.Errorf("llm: generation failed: %w", err)
}
