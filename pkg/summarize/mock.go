package summarize

import (
	"context"
	"strings"
)

// Mock is a local stand-in for the provider, useful for dry runs
// without burning API credits.
type Mock struct{}

func (Mock) Summarize(_ context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ContentError{Reason: "empty article body"}
	}
	const n = 280
	if len(text) > n {
		text = text[:n] + "..."
	}
	return text, nil
}
