package fetch

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	searchBaseURL  = "https://substack.com/search/"
	postLinkScript = `Array.from(
		document.querySelectorAll('div.reader2-post-container a[href^="https://"]')
	).map(a => a.href)`
)

// SearchConfig controls the headless Substack search fetcher.
type SearchConfig struct {
	Query             string
	MaxArticles       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// SubstackSearch renders the Substack search results page in a headless
// browser, collects post links, and extracts each article's content.
// The search page is JavaScript-rendered, so a plain HTTP fetch
// returns nothing useful.
type SubstackSearch struct {
	cfg       SearchConfig
	extractor *Extractor
	filter    *Filter
	logger    *zap.Logger

	// collect is swapped out in tests to avoid launching a browser.
	collect func(ctx context.Context) ([]string, error)
}

// NewSubstackSearch creates the search-page fetcher.
func NewSubstackSearch(cfg SearchConfig, extractor *Extractor, filter *Filter, logger *zap.Logger) *SubstackSearch {
	if cfg.MaxArticles <= 0 {
		cfg.MaxArticles = 80
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 90 * time.Second
	}
	if extractor == nil {
		extractor = NewExtractor()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SubstackSearch{cfg: cfg, extractor: extractor, filter: filter, logger: logger}
	s.collect = s.collectLinks
	return s
}

func (s *SubstackSearch) Name() string { return "substack-search" }

// Fetch collects up to MaxArticles candidates for the configured query.
// Per-article extraction failures are logged and skipped; only a failure
// to render the search page itself is a FetchError.
func (s *SubstackSearch) Fetch(ctx context.Context) ([]Candidate, error) {
	links, err := s.collect(ctx)
	if err != nil {
		return nil, &FetchError{Source: s.Name(), Err: err}
	}
	s.logger.Info("search page rendered",
		zap.String("query", s.cfg.Query),
		zap.Int("links", len(links)))

	seen := make(map[string]struct{}, len(links))
	var candidates []Candidate
	for _, link := range links {
		if len(candidates) >= s.cfg.MaxArticles {
			break
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}

		cand, err := s.extractor.Extract(link)
		if err != nil {
			s.logger.Warn("article extraction failed",
				zap.String("url", link),
				zap.Error(err))
			continue
		}
		if cand.RawText == "" {
			s.logger.Warn("no content extracted", zap.String("url", link))
			continue
		}
		if s.filter != nil && !s.filter.Matches(cand.Title+" "+cand.RawText) {
			continue
		}
		candidates = append(candidates, cand)
	}

	return candidates, nil
}

func (s *SubstackSearch) collectLinks(ctx context.Context) ([]string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, s.cfg.NavigationTimeout)
	defer cancel()

	searchURL := searchBaseURL + url.PathEscape(s.cfg.Query) + "?searching=all_posts"

	actions := []chromedp.Action{}
	if s.cfg.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(s.cfg.UserAgent))
	}
	actions = append(actions,
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible(`div.reader2-post-container`, chromedp.ByQuery),
		// Scroll to trigger lazy loading of more results.
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(3*time.Second),
	)

	var links []string
	actions = append(actions, chromedp.Evaluate(postLinkScript, &links))

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("render search page %q: %w", s.cfg.Query, err)
	}
	return links, nil
}
