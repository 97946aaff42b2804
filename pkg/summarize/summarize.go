// Package summarize turns article text into an AI-generated summary.
package summarize

import (
	"context"
	"errors"
	"fmt"
)

// Summarizer abstracts the summarization provider so it can be mocked.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// ProviderError marks a retryable provider failure: rate limits,
// malformed responses, network errors.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("summarize provider: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ContentError marks unsummarizable input. Retrying cannot help.
type ContentError struct {
	Reason string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("summarize content: %s", e.Reason)
}

// Retryable reports whether another attempt at the same input could
// succeed. Content errors and context cancellation are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *ContentError
	if errors.As(err, &ce) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
