package digest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefstack/briefstack/internal/store"
)

var testDay = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func testItems() []store.DigestItem {
	return []store.DigestItem{
		{
			Title:       "Scaling Laws Revisited",
			URL:         "https://ml.substack.com/p/scaling-laws",
			Author:      "Jane Doe",
			SummaryText: "The article argues that **compute** still dominates.",
		},
		{
			Title:       "Agents in Production",
			URL:         "https://ops.substack.com/p/agents",
			SummaryText: "A practical tour of agent deployments.",
		},
	}
}

func TestBuild_SubjectCarriesDate(t *testing.T) {
	t.Parallel()
	d, err := Build(testDay, testItems())
	require.NoError(t, err)
	assert.Equal(t, "AI Article Summaries - 2026-03-10", d.Subject)
	assert.Contains(t, d.HTML, "AI Article Summaries - 2026-03-10")
	assert.Equal(t, 2, d.Items)
}

func TestBuild_RendersEveryArticle(t *testing.T) {
	t.Parallel()
	d, err := Build(testDay, testItems())
	require.NoError(t, err)

	assert.Contains(t, d.HTML, `href="https://ml.substack.com/p/scaling-laws"`)
	assert.Contains(t, d.HTML, "Scaling Laws Revisited")
	assert.Contains(t, d.HTML, "by Jane Doe")
	assert.Contains(t, d.HTML, "Agents in Production")
	// Second article has no author; no stray byline.
	assert.Equal(t, 1, strings.Count(d.HTML, "by "))
}

func TestBuild_RendersMarkdownEmphasis(t *testing.T) {
	t.Parallel()
	d, err := Build(testDay, testItems())
	require.NoError(t, err)
	assert.Contains(t, d.HTML, "<strong>compute</strong>")
}

func TestBuild_PreservesInputOrder(t *testing.T) {
	t.Parallel()
	d, err := Build(testDay, testItems())
	require.NoError(t, err)
	assert.Less(t,
		strings.Index(d.HTML, "Scaling Laws Revisited"),
		strings.Index(d.HTML, "Agents in Production"))
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()
	a, err := Build(testDay, testItems())
	require.NoError(t, err)
	b, err := Build(testDay, testItems())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuild_UntitledFallback(t *testing.T) {
	t.Parallel()
	d, err := Build(testDay, []store.DigestItem{
		{URL: "https://a.com/untitled", SummaryText: "summary"},
	})
	require.NoError(t, err)
	assert.Contains(t, d.HTML, "Untitled Article")
}

func TestBuild_EscapesHostileTitle(t *testing.T) {
	t.Parallel()
	d, err := Build(testDay, []store.DigestItem{
		{Title: `<script>alert("x")</script>`, URL: "https://a.com/1", SummaryText: "ok"},
	})
	require.NoError(t, err)
	assert.NotContains(t, d.HTML, "<script>")
}

func TestBuild_StripsRawHTMLInSummary(t *testing.T) {
	t.Parallel()
	d, err := Build(testDay, []store.DigestItem{
		{Title: "T", URL: "https://a.com/1", SummaryText: `before <script>alert("x")</script> after`},
	})
	require.NoError(t, err)
	assert.NotContains(t, d.HTML, "<script>")
}

func TestBuild_Empty(t *testing.T) {
	t.Parallel()
	d, err := Build(testDay, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Items)
	assert.Contains(t, d.HTML, "AI Article Summaries - 2026-03-10")
}
