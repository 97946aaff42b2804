// Package store owns the SQLite persistence layer: articles, their
// summaries, and the per-run execution log. It is the only component
// allowed to decide whether an article has been seen before.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/briefstack/briefstack/pkg/fingerprint"
)

// SummaryStatus tracks the lifecycle of a summary row.
type SummaryStatus string

const (
	StatusPending   SummaryStatus = "pending"
	StatusSucceeded SummaryStatus = "succeeded"
	StatusFailed    SummaryStatus = "failed"
)

// Candidate is a raw article as returned by a fetcher, before it has
// been assigned a fingerprint.
type Candidate struct {
	Title       string
	URL         string
	Author      string
	PublishedAt time.Time
	RawText     string
}

// Article is a persisted article row.
type Article struct {
	Fingerprint string       `db:"fingerprint"`
	Title       string       `db:"title"`
	URL         string       `db:"url"`
	Author      string       `db:"author"`
	PublishedAt sql.NullTime `db:"published_at"`
	RawText     string       `db:"raw_text"`
	FirstSeenAt time.Time    `db:"first_seen_at"`
}

// PendingArticle is an article joined with its summary row, eligible
// for (re)summarization.
type PendingArticle struct {
	Fingerprint  string        `db:"fingerprint"`
	Title        string        `db:"title"`
	URL          string        `db:"url"`
	RawText      string        `db:"raw_text"`
	FirstSeenAt  time.Time     `db:"first_seen_at"`
	Status       SummaryStatus `db:"status"`
	AttemptCount int           `db:"attempt_count"`
}

// DigestItem is a successfully summarized article for one digest day.
type DigestItem struct {
	Fingerprint string    `db:"fingerprint"`
	Title       string    `db:"title"`
	URL         string    `db:"url"`
	Author      string    `db:"author"`
	SummaryText string    `db:"summary_text"`
	FirstSeenAt time.Time `db:"first_seen_at"`
	GeneratedAt time.Time `db:"generated_at"`
}

// ExecutionLog is the immutable record of one pipeline run.
type ExecutionLog struct {
	RunID              string    `db:"run_id"`
	StartedAt          time.Time `db:"started_at"`
	FinishedAt         time.Time `db:"finished_at"`
	ArticlesFetched    int       `db:"articles_fetched"`
	ArticlesNew        int       `db:"articles_new"`
	SummariesSucceeded int       `db:"summaries_succeeded"`
	SummariesFailed    int       `db:"summaries_failed"`
	EmailSent          bool      `db:"email_sent"`
	ErrorSummary       string    `db:"error_summary"`
}

// Counts summarizes store contents for inspection commands.
type Counts struct {
	Articles  int `db:"articles"`
	Succeeded int `db:"succeeded"`
	Pending   int `db:"pending"`
	Failed    int `db:"failed"`
}

// ListOpts controls article listing.
type ListOpts struct {
	Status SummaryStatus
	Limit  int
}

// ArticleInfo is the listing view of an article and its summary state.
type ArticleInfo struct {
	Fingerprint  string        `db:"fingerprint"`
	Title        string        `db:"title"`
	URL          string        `db:"url"`
	FirstSeenAt  time.Time     `db:"first_seen_at"`
	Status       SummaryStatus `db:"status"`
	AttemptCount int           `db:"attempt_count"`
}

// SummaryOutcome is the result of one summarization attempt.
type SummaryOutcome struct {
	succeeded bool
	text      string
	errText   string
}

// Succeeded records a generated summary.
func Succeeded(text string) SummaryOutcome {
	return SummaryOutcome{succeeded: true, text: text}
}

// Failed records a failed attempt with its error message.
func Failed(err error) SummaryOutcome {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return SummaryOutcome{errText: msg}
}

// OK reports whether the outcome is a success.
func (o SummaryOutcome) OK() bool { return o.succeeded }

// StoreError wraps any persistence failure. The pipeline treats it as
// fatal because it means the durability guarantee is compromised.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// IsStoreError reports whether err originated in the persistence layer.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// Store is the persistence interface.
type Store interface {
	UpsertArticle(ctx context.Context, c Candidate) (inserted bool, fp string, err error)
	PendingSummaries(ctx context.Context, maxAttempts int) ([]PendingArticle, error)
	RecordSummaryResult(ctx context.Context, fp string, outcome SummaryOutcome) error
	ArticlesForDigest(ctx context.Context, day time.Time) ([]DigestItem, error)
	AppendExecutionLog(ctx context.Context, entry ExecutionLog) error

	RecentLogs(ctx context.Context, limit int) ([]ExecutionLog, error)
	GetCounts(ctx context.Context) (Counts, error)
	ListArticles(ctx context.Context, opts ListOpts) ([]ArticleInfo, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sqlx.DB
	fpr *fingerprint.Fingerprinter
	now func() time.Time
}

// New opens a SQLite database, runs migrations, and binds the
// configured fingerprint strategy.
func New(path string, fpr *fingerprint.Fingerprinter) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, fpr: fpr, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertArticle is the sole deduplication gate. It computes the
// candidate's fingerprint and, if unseen, inserts the article together
// with a pending summary row in one transaction. Re-seeing a known
// fingerprint is a silent no-op.
func (s *SQLiteStore) UpsertArticle(ctx context.Context, c Candidate) (bool, string, error) {
	fp := s.fpr.Fingerprint(c.URL, c.Title, c.RawText)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fp, storeErr("begin upsert", err)
	}
	defer tx.Rollback()

	var published sql.NullTime
	if !c.PublishedAt.IsZero() {
		published = sql.NullTime{Time: c.PublishedAt.UTC(), Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO articles (fingerprint, title, url, author, published_at, raw_text, first_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, fp, c.Title, c.URL, c.Author, published, c.RawText, s.now())
	if err != nil {
		return false, fp, storeErr("insert article", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fp, storeErr("insert article", err)
	}
	if inserted == 0 {
		return false, fp, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO summaries (fingerprint, status, attempt_count)
		VALUES (?, ?, 0)
	`, fp, StatusPending); err != nil {
		return false, fp, storeErr("insert pending summary", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fp, storeErr("commit upsert", err)
	}
	return true, fp, nil
}

// PendingSummaries returns articles whose summary is still pending or
// retryably failed, oldest first so no article starves.
func (s *SQLiteStore) PendingSummaries(ctx context.Context, maxAttempts int) ([]PendingArticle, error) {
	var pending []PendingArticle
	err := s.db.SelectContext(ctx, &pending, `
		SELECT a.fingerprint, a.title, a.url, a.raw_text, a.first_seen_at,
		       s.status, s.attempt_count
		FROM summaries s
		JOIN articles a ON a.fingerprint = s.fingerprint
		WHERE s.status IN (?, ?) AND s.attempt_count < ?
		ORDER BY a.first_seen_at ASC
	`, StatusPending, StatusFailed, maxAttempts)
	if err != nil {
		return nil, storeErr("select pending summaries", err)
	}
	return pending, nil
}

// RecordSummaryResult commits the outcome of one summarization attempt
// atomically. A succeeded row is terminal and never overwritten.
func (s *SQLiteStore) RecordSummaryResult(ctx context.Context, fp string, outcome SummaryOutcome) error {
	var (
		res sql.Result
		err error
	)
	if outcome.OK() {
		res, err = s.db.ExecContext(ctx, `
			UPDATE summaries
			SET status = ?, summary_text = ?, generated_at = ?, last_error = ''
			WHERE fingerprint = ? AND status != ?
		`, StatusSucceeded, outcome.text, s.now(), fp, StatusSucceeded)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE summaries
			SET status = ?, attempt_count = attempt_count + 1, last_error = ?
			WHERE fingerprint = ? AND status != ?
		`, StatusFailed, outcome.errText, fp, StatusSucceeded)
	}
	if err != nil {
		return storeErr("record summary result", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("record summary result", err)
	}
	if n == 0 {
		// Either the article was never upserted or the summary already
		// succeeded; both mean the caller is out of sync with the store.
		return storeErr("record summary result", fmt.Errorf("no updatable summary row for %s", fp))
	}
	return nil
}

// ArticlesForDigest returns the day's succeeded summaries, where "day"
// is the [00:00, 24:00) window in day's location, ordered by first_seen_at.
func (s *SQLiteStore) ArticlesForDigest(ctx context.Context, day time.Time) ([]DigestItem, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var items []DigestItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT a.fingerprint, a.title, a.url, a.author, a.first_seen_at,
		       s.summary_text, s.generated_at
		FROM summaries s
		JOIN articles a ON a.fingerprint = s.fingerprint
		WHERE s.status = ? AND s.generated_at >= ? AND s.generated_at < ?
		ORDER BY a.first_seen_at ASC
	`, StatusSucceeded, start.UTC(), end.UTC())
	if err != nil {
		return nil, storeErr("select digest articles", err)
	}
	return items, nil
}

// AppendExecutionLog inserts the run record. Rows are never updated.
func (s *SQLiteStore) AppendExecutionLog(ctx context.Context, entry ExecutionLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_logs
			(run_id, started_at, finished_at, articles_fetched, articles_new,
			 summaries_succeeded, summaries_failed, email_sent, error_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.RunID, entry.StartedAt.UTC(), entry.FinishedAt.UTC(),
		entry.ArticlesFetched, entry.ArticlesNew,
		entry.SummariesSucceeded, entry.SummariesFailed,
		entry.EmailSent, entry.ErrorSummary)
	if err != nil {
		return storeErr("append execution log", err)
	}
	return nil
}

// RecentLogs returns the newest execution logs first.
func (s *SQLiteStore) RecentLogs(ctx context.Context, limit int) ([]ExecutionLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var logs []ExecutionLog
	err := s.db.SelectContext(ctx, &logs, `
		SELECT * FROM execution_logs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, storeErr("select execution logs", err)
	}
	return logs, nil
}

// GetCounts returns store-wide article and summary totals.
func (s *SQLiteStore) GetCounts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.GetContext(ctx, &c, `
		SELECT
			(SELECT COUNT(*) FROM articles) AS articles,
			(SELECT COUNT(*) FROM summaries WHERE status = ?) AS succeeded,
			(SELECT COUNT(*) FROM summaries WHERE status = ?) AS pending,
			(SELECT COUNT(*) FROM summaries WHERE status = ?) AS failed
	`, StatusSucceeded, StatusPending, StatusFailed)
	if err != nil {
		return Counts{}, storeErr("count store contents", err)
	}
	return c, nil
}

// ListArticles lists articles with their summary state, newest first.
func (s *SQLiteStore) ListArticles(ctx context.Context, opts ListOpts) ([]ArticleInfo, error) {
	query := `
		SELECT a.fingerprint, a.title, a.url, a.first_seen_at,
		       s.status, s.attempt_count
		FROM articles a
		JOIN summaries s ON s.fingerprint = a.fingerprint
		WHERE 1=1
	`
	var args []any

	if opts.Status != "" {
		query += " AND s.status = ?"
		args = append(args, opts.Status)
	}

	query += " ORDER BY a.first_seen_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var infos []ArticleInfo
	if err := s.db.SelectContext(ctx, &infos, query, args...); err != nil {
		return nil, storeErr("list articles", err)
	}
	return infos, nil
}
