package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// Feed is a named RSS/Atom feed URL, typically a Substack publication's
// /feed endpoint.
type Feed struct {
	Name string
	URL  string
}

// FeedFetcher collects candidates from publication RSS feeds. Substack
// feeds carry the full post body in content:encoded, so no separate
// extraction pass is needed.
type FeedFetcher struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []Feed
	filter *Filter
	maxAge time.Duration
	logger *zap.Logger
}

// NewFeedFetcher creates an RSS fetcher over the given feeds.
func NewFeedFetcher(feeds []Feed, filter *Filter, maxAge time.Duration, logger *zap.Logger) *FeedFetcher {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedFetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
		filter: filter,
		maxAge: maxAge,
		logger: logger,
	}
}

func (f *FeedFetcher) Name() string { return "rss" }

func (f *FeedFetcher) Fetch(ctx context.Context) ([]Candidate, error) {
	var (
		all    []Candidate
		failed int
		lastErr error
	)

	for _, feed := range f.feeds {
		candidates, err := f.fetchFeed(ctx, feed)
		if err != nil {
			failed++
			lastErr = err
			f.logger.Warn("rss feed failed",
				zap.String("feed", feed.Name),
				zap.Error(err))
			continue
		}
		all = append(all, candidates...)
	}

	if len(f.feeds) > 0 && failed == len(f.feeds) {
		return nil, &FetchError{Source: "rss", Err: lastErr}
	}
	return all, nil
}

func (f *FeedFetcher) fetchFeed(ctx context.Context, feed Feed) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "briefstack/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	var candidates []Candidate
	cutoff := time.Now().Add(-f.maxAge)

	for _, entry := range parsed.Items {
		published := time.Now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		if published.Before(cutoff) {
			continue
		}

		if f.filter != nil && !f.filter.Matches(entry.Title+" "+entry.Description) {
			continue
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}
		if link == "" {
			continue
		}

		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		}

		body := entry.Content
		if body == "" {
			body = entry.Description
		}

		candidates = append(candidates, Candidate{
			Title:       entry.Title,
			URL:         link,
			Author:      author,
			PublishedAt: published,
			RawText:     HTMLToText(body),
		})
	}

	return candidates, nil
}
