package fetch

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const extractTimeout = 60 * time.Second

var whitespaceRE = regexp.MustCompile(`\s+`)

// Extractor turns an article URL into a candidate with plain-text body,
// title and author metadata.
type Extractor struct {
	timeout time.Duration
}

// NewExtractor creates an extractor with the default timeout.
func NewExtractor() *Extractor {
	return &Extractor{timeout: extractTimeout}
}

// Extract fetches url and pulls out readable article content.
func (e *Extractor) Extract(url string) (Candidate, error) {
	art, err := readability.FromURL(url, e.timeout)
	if err != nil {
		return Candidate{}, fmt.Errorf("extract %s: %w", url, err)
	}

	text := strings.TrimSpace(art.TextContent)
	if text == "" {
		text = HTMLToText(art.Content)
	}

	cand := Candidate{
		Title:   strings.TrimSpace(art.Title),
		URL:     url,
		Author:  strings.TrimSpace(art.Byline),
		RawText: CollapseWhitespace(text),
	}
	if art.PublishedTime != nil {
		cand.PublishedAt = art.PublishedTime.UTC()
	}
	return cand, nil
}

// HTMLToText strips markup from an HTML fragment, keeping the text of
// content elements and skipping scripts and styles.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return CollapseWhitespace(html)
	}
	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find("h1, h2, h3, h4, p, li, blockquote").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return CollapseWhitespace(doc.Text())
	}
	return CollapseWhitespace(strings.Join(parts, "\n\n"))
}

// CollapseWhitespace squeezes runs of whitespace into single spaces.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}
