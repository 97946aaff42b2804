package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/briefstack/briefstack/pkg/fingerprint"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	fpr, err := fingerprint.New(fingerprint.StrategyURL)
	require.NoError(t, err)

	s, err := New(filepath.Join(t.TempDir(), "test.db"), fpr)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func candidate(url string) Candidate {
	return Candidate{
		Title:       "Title for " + url,
		URL:         url,
		Author:      "author",
		PublishedAt: time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
		RawText:     "body of " + url,
	}
}

func TestUpsertArticle_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	inserted, fp1, err := s.UpsertArticle(ctx, candidate("https://a.com/1"))
	require.NoError(t, err)
	require.True(t, inserted)
	require.NotEmpty(t, fp1)

	inserted, fp2, err := s.UpsertArticle(ctx, candidate("https://a.com/1"))
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, fp1, fp2)

	counts, err := s.GetCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts.Articles)
	require.Equal(t, 1, counts.Pending)
}

func TestUpsertArticle_CanonicalURLVariants(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	inserted, fp1, err := s.UpsertArticle(ctx, candidate("https://a.com/post"))
	require.NoError(t, err)
	require.True(t, inserted)

	// Trailing slash, fragment, and query junk are the same article.
	inserted, fp2, err := s.UpsertArticle(ctx, candidate("https://A.com/post/?utm_source=x#comments"))
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, fp1, fp2)
}

func TestUpsertArticle_CreatesPendingSummary(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, fp, err := s.UpsertArticle(ctx, candidate("https://a.com/1"))
	require.NoError(t, err)

	pending, err := s.PendingSummaries(ctx, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, fp, pending[0].Fingerprint)
	require.Equal(t, StatusPending, pending[0].Status)
	require.Equal(t, 0, pending[0].AttemptCount)
}

func TestPendingSummaries_OrderedOldestFirst(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	urls := []string{"https://a.com/3", "https://a.com/1", "https://a.com/2"}
	for i, url := range urls {
		seen := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return seen }
		_, _, err := s.UpsertArticle(ctx, candidate(url))
		require.NoError(t, err)
	}

	pending, err := s.PendingSummaries(ctx, 5)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	// Insertion order, not URL order.
	require.Equal(t, "https://a.com/3", pending[0].URL)
	require.Equal(t, "https://a.com/1", pending[1].URL)
	require.Equal(t, "https://a.com/2", pending[2].URL)
}

func TestRecordSummaryResult_Success(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, fp, err := s.UpsertArticle(ctx, candidate("https://a.com/1"))
	require.NoError(t, err)

	require.NoError(t, s.RecordSummaryResult(ctx, fp, Succeeded("a fine summary")))

	pending, err := s.PendingSummaries(ctx, 5)
	require.NoError(t, err)
	require.Empty(t, pending)

	counts, err := s.GetCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts.Succeeded)
}

func TestRecordSummaryResult_SucceededIsTerminal(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, fp, err := s.UpsertArticle(ctx, candidate("https://a.com/1"))
	require.NoError(t, err)
	require.NoError(t, s.RecordSummaryResult(ctx, fp, Succeeded("first")))

	err = s.RecordSummaryResult(ctx, fp, Succeeded("second"))
	require.Error(t, err)
	require.True(t, IsStoreError(err))

	err = s.RecordSummaryResult(ctx, fp, Failed(errors.New("late failure")))
	require.Error(t, err)
	require.True(t, IsStoreError(err))
}

func TestRecordSummaryResult_FailureIncrementsAttempts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, fp, err := s.UpsertArticle(ctx, candidate("https://a.com/1"))
	require.NoError(t, err)

	require.NoError(t, s.RecordSummaryResult(ctx, fp, Failed(errors.New("rate limited"))))
	require.NoError(t, s.RecordSummaryResult(ctx, fp, Failed(errors.New("rate limited again"))))

	pending, err := s.PendingSummaries(ctx, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, StatusFailed, pending[0].Status)
	require.Equal(t, 2, pending[0].AttemptCount)
}

func TestRecordSummaryResult_UnknownFingerprint(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	err := s.RecordSummaryResult(context.Background(), "nope", Succeeded("text"))
	require.Error(t, err)
	require.True(t, IsStoreError(err))
}

func TestPendingSummaries_AttemptCap(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, fp, err := s.UpsertArticle(ctx, candidate("https://a.com/1"))
	require.NoError(t, err)

	const maxAttempts = 3
	for i := 0; i < maxAttempts; i++ {
		pending, err := s.PendingSummaries(ctx, maxAttempts)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.NoError(t, s.RecordSummaryResult(ctx, fp, Failed(errors.New("provider down"))))
	}

	// Cap reached: permanently excluded, but never promoted to succeeded.
	pending, err := s.PendingSummaries(ctx, maxAttempts)
	require.NoError(t, err)
	require.Empty(t, pending)

	counts, err := s.GetCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, counts.Succeeded)
	require.Equal(t, 1, counts.Failed)
}

func TestArticlesForDigest_Window(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	generated := map[string]time.Time{
		"https://a.com/yesterday": day.Add(-2 * time.Hour),
		"https://a.com/early":     day.Add(1 * time.Minute),
		"https://a.com/late":      day.Add(23*time.Hour + 59*time.Minute),
		"https://a.com/tomorrow":  day.Add(25 * time.Hour),
	}

	// first_seen_at ordering: late before early, to prove the sort key.
	order := []string{"https://a.com/late", "https://a.com/yesterday", "https://a.com/early", "https://a.com/tomorrow"}
	seen := day.Add(-24 * time.Hour)
	for i, url := range order {
		firstSeen := seen.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return firstSeen }
		_, fp, err := s.UpsertArticle(ctx, candidate(url))
		require.NoError(t, err)

		genAt := generated[url]
		s.now = func() time.Time { return genAt }
		require.NoError(t, s.RecordSummaryResult(ctx, fp, Succeeded("summary of "+url)))
	}

	items, err := s.ArticlesForDigest(ctx, day)
	require.NoError(t, err)
	require.Len(t, items, 2)
	// Ascending first_seen_at: late was stored before early.
	require.Equal(t, "https://a.com/late", items[0].URL)
	require.Equal(t, "https://a.com/early", items[1].URL)
}

func TestArticlesForDigest_ExcludesFailedAndPending(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, fpOK, err := s.UpsertArticle(ctx, candidate("https://a.com/ok"))
	require.NoError(t, err)
	_, fpBad, err := s.UpsertArticle(ctx, candidate("https://a.com/bad"))
	require.NoError(t, err)
	_, _, err = s.UpsertArticle(ctx, candidate("https://a.com/pending"))
	require.NoError(t, err)

	require.NoError(t, s.RecordSummaryResult(ctx, fpOK, Succeeded("good")))
	require.NoError(t, s.RecordSummaryResult(ctx, fpBad, Failed(errors.New("broken"))))

	items, err := s.ArticlesForDigest(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "https://a.com/ok", items[0].URL)
}

func TestExecutionLog_AppendAndList(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	first := ExecutionLog{
		RunID:           "run-1",
		StartedAt:       time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC),
		FinishedAt:      time.Date(2026, 3, 10, 6, 5, 0, 0, time.UTC),
		ArticlesFetched: 10,
		ArticlesNew:     4,
		EmailSent:       true,
	}
	second := ExecutionLog{
		RunID:        "run-2",
		StartedAt:    time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2026, 3, 11, 6, 1, 0, 0, time.UTC),
		ErrorSummary: "fetch substack-search: timeout",
	}
	require.NoError(t, s.AppendExecutionLog(ctx, first))
	require.NoError(t, s.AppendExecutionLog(ctx, second))

	logs, err := s.RecentLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "run-2", logs[0].RunID)
	require.Equal(t, "run-1", logs[1].RunID)
	require.True(t, logs[1].EmailSent)
	require.Equal(t, 4, logs[1].ArticlesNew)
	require.Equal(t, "fetch substack-search: timeout", logs[0].ErrorSummary)
}

func TestListArticles_StatusFilter(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, fp, err := s.UpsertArticle(ctx, candidate("https://a.com/done"))
	require.NoError(t, err)
	_, _, err = s.UpsertArticle(ctx, candidate("https://a.com/waiting"))
	require.NoError(t, err)
	require.NoError(t, s.RecordSummaryResult(ctx, fp, Succeeded("summary")))

	all, err := s.ListArticles(ctx, ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	done, err := s.ListArticles(ctx, ListOpts{Status: StatusSucceeded})
	require.NoError(t, err)
	require.Len(t, done, 1)
	require.Equal(t, "https://a.com/done", done[0].URL)
}
