package fetch

import "strings"

// Filter matches candidates against the configured search topic.
type Filter struct {
	keywords []string
	exclude  []string
}

// NewFilter creates a filter from topic keywords and exclusions.
// A filter with no keywords matches everything.
func NewFilter(keywords, excludeKeywords []string) *Filter {
	kws := make([]string, len(keywords))
	for i, kw := range keywords {
		kws[i] = strings.ToLower(kw)
	}

	exclude := make([]string, len(excludeKeywords))
	for i, kw := range excludeKeywords {
		exclude[i] = strings.ToLower(kw)
	}

	return &Filter{keywords: kws, exclude: exclude}
}

// Matches returns true if text is on topic.
func (f *Filter) Matches(text string) bool {
	lower := strings.ToLower(text)

	for _, ex := range f.exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}

	if len(f.keywords) == 0 {
		return true
	}
	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
