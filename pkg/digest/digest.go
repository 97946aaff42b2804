// Package digest renders the daily email body from the day's succeeded
// summaries. It is a pure function of its input: no clock, no network,
// no store access.
package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/yuin/goldmark"

	"github.com/briefstack/briefstack/internal/store"
)

const bodyTemplate = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f9f9f9; border: 1px solid #ddd; border-radius: 8px;">
    <h1 style="color: #333; font-size: 24px; margin-bottom: 20px;">AI Article Summaries - {{.Date}}</h1>
{{- range .Articles}}
    <div style="margin-bottom: 20px;">
        <h2 style="color: #2c5282; font-size: 20px; margin: 0 0 10px 0; border-bottom: 2px solid #2c5282; padding-bottom: 5px;">
            <a href="{{.URL}}" style="color: #2c5282; text-decoration: none;">{{.Title}}</a>
        </h2>
{{- if .Author}}
        <p style="color: #718096; font-size: 13px; margin: 0 0 8px 0;">by {{.Author}}</p>
{{- end}}
        <div style="color: #333; font-size: 16px; line-height: 1.6; margin: 0;">{{.Summary}}</div>
    </div>
{{- end}}
</div>
`

var (
	tmpl     = template.Must(template.New("digest").Parse(bodyTemplate))
	markdown = goldmark.New()
)

// Digest is a rendered daily email.
type Digest struct {
	Subject string
	HTML    string
	Items   int
}

type article struct {
	Title   string
	URL     string
	Author  string
	Summary template.HTML
}

// Build renders the digest for day from the given items. Items are
// rendered in the order given (the store already sorts by first_seen_at);
// the output is deterministic for a fixed input.
func Build(day time.Time, items []store.DigestItem) (Digest, error) {
	date := day.Format("2006-01-02")

	articles := make([]article, 0, len(items))
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = "Untitled Article"
		}
		rendered, err := renderMarkdown(item.SummaryText)
		if err != nil {
			return Digest{}, fmt.Errorf("render summary for %s: %w", item.URL, err)
		}
		articles = append(articles, article{
			Title:   title,
			URL:     item.URL,
			Author:  item.Author,
			Summary: rendered,
		})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		Date     string
		Articles []article
	}{Date: date, Articles: articles}); err != nil {
		return Digest{}, fmt.Errorf("render digest body: %w", err)
	}

	return Digest{
		Subject: "AI Article Summaries - " + date,
		HTML:    buf.String(),
		Items:   len(items),
	}, nil
}

// renderMarkdown converts the provider's markdown-flavored summary text
// to HTML so emphasis survives in the email body. goldmark strips raw
// HTML in the source by default, so a hostile summary cannot inject
// markup into the email.
func renderMarkdown(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
