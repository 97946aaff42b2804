// Package fingerprint derives the stable deduplication key for an article.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Strategy selects how the fingerprint is derived.
type Strategy string

const (
	// StrategyURL fingerprints the canonical article URL. Default.
	StrategyURL Strategy = "url"
	// StrategyContent fingerprints title + body, catching articles
	// republished under a new URL.
	StrategyContent Strategy = "content"
)

// Fingerprinter computes fingerprints under a fixed strategy.
type Fingerprinter struct {
	strategy Strategy
}

// New returns a Fingerprinter for the given strategy.
// An unknown strategy is an error rather than a silent fallback.
func New(strategy Strategy) (*Fingerprinter, error) {
	switch strategy {
	case "", StrategyURL:
		return &Fingerprinter{strategy: StrategyURL}, nil
	case StrategyContent:
		return &Fingerprinter{strategy: StrategyContent}, nil
	default:
		return nil, fmt.Errorf("unknown fingerprint strategy %q", strategy)
	}
}

// Strategy reports the active strategy.
func (f *Fingerprinter) Strategy() Strategy {
	return f.strategy
}

// Fingerprint returns a hex SHA-256 digest identifying the article.
func (f *Fingerprinter) Fingerprint(rawURL, title, body string) string {
	var input string
	switch f.strategy {
	case StrategyContent:
		input = "content\x00" + strings.TrimSpace(title) + "\x00" + strings.TrimSpace(body)
	default:
		input = "url\x00" + CanonicalURL(rawURL)
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// CanonicalURL normalizes a URL so trivial variants (scheme case, trailing
// slash, fragments, tracking junk in the query) map to one fingerprint.
func CanonicalURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawQuery = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
