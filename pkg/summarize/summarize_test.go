package summarize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"provider error", &ProviderError{Err: errors.New("rate limited")}, true},
		{"wrapped provider error", fmt.Errorf("attempt 2: %w", &ProviderError{Err: errors.New("x")}), true},
		{"content error", &ContentError{Reason: "empty body"}, false},
		{"wrapped content error", fmt.Errorf("article: %w", &ContentError{Reason: "x"}), false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"plain error", errors.New("network down"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestMock(t *testing.T) {
	t.Parallel()
	m := Mock{}

	out, err := m.Summarize(context.Background(), "short text")
	require.NoError(t, err)
	assert.Equal(t, "short text", out)

	long := strings.Repeat("a", 500)
	out, err = m.Summarize(context.Background(), long)
	require.NoError(t, err)
	assert.Len(t, out, 283)
	assert.True(t, strings.HasSuffix(out, "..."))

	_, err = m.Summarize(context.Background(), "   ")
	var ce *ContentError
	require.True(t, errors.As(err, &ce))
}

func TestNewOpenAI_Validation(t *testing.T) {
	t.Parallel()
	_, err := NewOpenAI(Settings{Model: "m"})
	require.Error(t, err)

	_, err = NewOpenAI(Settings{APIKey: "k"})
	require.Error(t, err)

	s, err := NewOpenAI(Settings{APIKey: "k", Model: "m"})
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestOpenAI_EmptyInput(t *testing.T) {
	t.Parallel()
	s, err := NewOpenAI(Settings{APIKey: "k", Model: "m"})
	require.NoError(t, err)

	_, err = s.Summarize(context.Background(), "  \n ")
	var ce *ContentError
	require.True(t, errors.As(err, &ce))
}

func TestOpenAI_Summarize(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "test-model",
			"choices": [
				{"index": 0, "finish_reason": "stop",
				 "message": {"role": "assistant", "content": "A crisp technical summary."}}
			]
		}`)
	}))
	t.Cleanup(srv.Close)

	s, err := NewOpenAI(Settings{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := s.Summarize(context.Background(), "long article body")
	require.NoError(t, err)
	assert.Equal(t, "A crisp technical summary.", out)
}

func TestOpenAI_ProviderFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "bad request"}}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	s, err := NewOpenAI(Settings{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = s.Summarize(context.Background(), "body")
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.True(t, Retryable(err))
}

func TestOpenAI_EmptySummary(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "cmpl-1", "object": "chat.completion", "choices": []}`)
	}))
	t.Cleanup(srv.Close)

	s, err := NewOpenAI(Settings{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = s.Summarize(context.Background(), "body")
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
}
