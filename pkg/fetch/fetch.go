// Package fetch collects candidate articles from Substack. Fetchers
// only gather raw candidates; novelty is decided downstream by the
// store's upsert gate.
package fetch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Candidate is a raw article pulled from a source.
type Candidate struct {
	Title       string
	URL         string
	Author      string
	PublishedAt time.Time
	RawText     string
}

// Fetcher is the interface every candidate source implements.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]Candidate, error)
}

// FetchError marks a total source failure. An empty candidate list is
// not an error.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Multi concatenates candidates from several fetchers. A single source
// failing does not fail the whole fetch; only all sources failing does.
type Multi struct {
	fetchers []Fetcher
	logger   *zap.Logger
}

// NewMulti builds a combined fetcher.
func NewMulti(logger *zap.Logger, fetchers ...Fetcher) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{fetchers: fetchers, logger: logger}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Fetch(ctx context.Context) ([]Candidate, error) {
	var (
		all     []Candidate
		lastErr error
		failed  int
	)
	for _, f := range m.fetchers {
		candidates, err := f.Fetch(ctx)
		if err != nil {
			failed++
			lastErr = err
			m.logger.Warn("source fetch failed",
				zap.String("source", f.Name()),
				zap.Error(err))
			continue
		}
		m.logger.Info("source fetched",
			zap.String("source", f.Name()),
			zap.Int("candidates", len(candidates)))
		all = append(all, candidates...)
	}

	if len(m.fetchers) > 0 && failed == len(m.fetchers) {
		return nil, &FetchError{Source: "multi", Err: lastErr}
	}
	return all, nil
}
