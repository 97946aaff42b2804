// Package pipeline sequences one ingestion run: fetch, persist,
// summarize, digest, notify, record. Each stage isolates its own
// failures so completed work from earlier stages is never lost, and
// the execution log is written no matter how far the run got.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/briefstack/briefstack/internal/store"
	"github.com/briefstack/briefstack/pkg/digest"
	"github.com/briefstack/briefstack/pkg/fetch"
	"github.com/briefstack/briefstack/pkg/notify"
	"github.com/briefstack/briefstack/pkg/summarize"
)

// Config controls one pipeline run.
type Config struct {
	// MaxSummaryAttempts caps attempt_count across runs; once reached,
	// an article is permanently excluded from summarization.
	MaxSummaryAttempts int
	Retry              RetryPolicy
	Recipients         []string
	// DigestLocation defines the day boundary for "today's" digest.
	DigestLocation *time.Location
}

// Report captures what one run accomplished. Its counts mirror the
// execution log row.
type Report struct {
	RunID              string
	ArticlesFetched    int
	ArticlesNew        int
	SummariesSucceeded int
	SummariesFailed    int
	EmailSent          bool
	ErrorSummary       string
}

// Pipeline wires the store and the three adapters.
type Pipeline struct {
	store      store.Store
	fetcher    fetch.Fetcher
	summarizer summarize.Summarizer
	notifier   notify.Notifier
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
}

// New constructs a Pipeline.
func New(
	st store.Store,
	fetcher fetch.Fetcher,
	summarizer summarize.Summarizer,
	notifier notify.Notifier,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.MaxSummaryAttempts <= 0 {
		cfg.MaxSummaryAttempts = 5
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.DigestLocation == nil {
		cfg.DigestLocation = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:      st,
		fetcher:    fetcher,
		summarizer: summarizer,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one full pipeline run and always appends an execution
// log row, even after a fatal store failure. It returns an error only
// when the run made no progress at all or the store itself failed.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	started := p.now()
	report := Report{RunID: uuid.NewString()}
	var runErrs []string

	p.logger.Info("run started", zap.String("run_id", report.RunID))

	candidates, fetchFailed := p.fetchStage(ctx, &runErrs)
	report.ArticlesFetched = len(candidates)

	fatal := p.persistStage(ctx, candidates, &report, &runErrs)

	if fatal == nil {
		fatal = p.summarizeStage(ctx, &report, &runErrs)
	}

	if fatal == nil {
		fatal = p.digestStage(ctx, &report, &runErrs)
	}

	report.ErrorSummary = strings.Join(runErrs, "; ")

	// Record stage is unconditional; a cancelled context must not keep
	// the run out of the log.
	p.record(context.WithoutCancel(ctx), started, report)

	if fatal != nil {
		return report, fatal
	}
	if fetchFailed && report.ArticlesNew == 0 && !report.EmailSent {
		return report, fmt.Errorf("run %s made no progress: %s", report.RunID, report.ErrorSummary)
	}

	p.logger.Info("run finished",
		zap.String("run_id", report.RunID),
		zap.Int("fetched", report.ArticlesFetched),
		zap.Int("new", report.ArticlesNew),
		zap.Int("summarized", report.SummariesSucceeded),
		zap.Int("failed", report.SummariesFailed),
		zap.Bool("email_sent", report.EmailSent))
	return report, nil
}

// SummarizeOnly runs only the summarize and record stages, resuming
// work a killed run left pending.
func (p *Pipeline) SummarizeOnly(ctx context.Context) (Report, error) {
	started := p.now()
	report := Report{RunID: uuid.NewString()}
	var runErrs []string

	fatal := p.summarizeStage(ctx, &report, &runErrs)
	report.ErrorSummary = strings.Join(runErrs, "; ")
	p.record(context.WithoutCancel(ctx), started, report)
	return report, fatal
}

// SendOnly runs only the digest, notify, and record stages.
func (p *Pipeline) SendOnly(ctx context.Context) (Report, error) {
	started := p.now()
	report := Report{RunID: uuid.NewString()}
	var runErrs []string

	fatal := p.digestStage(ctx, &report, &runErrs)
	report.ErrorSummary = strings.Join(runErrs, "; ")
	p.record(context.WithoutCancel(ctx), started, report)
	return report, fatal
}

// fetchStage pulls candidates. A fetch outage degrades to an empty
// candidate set so stored articles from prior runs still get
// summarized and sent.
func (p *Pipeline) fetchStage(ctx context.Context, runErrs *[]string) ([]fetch.Candidate, bool) {
	candidates, err := p.fetcher.Fetch(ctx)
	if err != nil {
		p.logger.Error("fetch failed, continuing with empty candidate set", zap.Error(err))
		*runErrs = append(*runErrs, err.Error())
		return nil, true
	}
	return candidates, false
}

// persistStage pushes every candidate through the store's upsert gate.
// Fingerprint collisions are expected and silent.
func (p *Pipeline) persistStage(ctx context.Context, candidates []fetch.Candidate, report *Report, runErrs *[]string) error {
	for _, c := range candidates {
		inserted, fp, err := p.store.UpsertArticle(ctx, store.Candidate{
			Title:       c.Title,
			URL:         c.URL,
			Author:      c.Author,
			PublishedAt: c.PublishedAt,
			RawText:     c.RawText,
		})
		if err != nil {
			*runErrs = append(*runErrs, err.Error())
			return p.fatal("persist aborted", err)
		}
		if inserted {
			report.ArticlesNew++
			p.logger.Debug("article stored",
				zap.String("fingerprint", fp),
				zap.String("url", c.URL))
		}
	}
	p.logger.Info("persist finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("new", report.ArticlesNew))
	return nil
}

// summarizeStage summarizes every eligible article. One article's
// failure never blocks the rest; store write failures abort the run.
func (p *Pipeline) summarizeStage(ctx context.Context, report *Report, runErrs *[]string) error {
	pending, err := p.store.PendingSummaries(ctx, p.cfg.MaxSummaryAttempts)
	if err != nil {
		*runErrs = append(*runErrs, err.Error())
		return p.fatal("summarize aborted", err)
	}

	for _, art := range pending {
		text, sumErr := p.summarizeWithRetry(ctx, art)

		var outcome store.SummaryOutcome
		if sumErr != nil {
			report.SummariesFailed++
			*runErrs = append(*runErrs, fmt.Sprintf("summarize %s: %v", art.Fingerprint, sumErr))
			p.logger.Warn("summarization failed",
				zap.String("fingerprint", art.Fingerprint),
				zap.String("title", art.Title),
				zap.Error(sumErr))
			outcome = store.Failed(sumErr)
		} else {
			report.SummariesSucceeded++
			outcome = store.Succeeded(text)
		}

		if err := p.store.RecordSummaryResult(ctx, art.Fingerprint, outcome); err != nil {
			*runErrs = append(*runErrs, err.Error())
			return p.fatal("summarize aborted", err)
		}

		if ctx.Err() != nil {
			// Killed mid-run; remaining articles stay pending for the
			// next run to pick up.
			*runErrs = append(*runErrs, ctx.Err().Error())
			break
		}
	}
	return nil
}

// summarizeWithRetry applies the bounded retry policy to one article.
func (p *Pipeline) summarizeWithRetry(ctx context.Context, art store.PendingArticle) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.cfg.Retry.Wait(ctx, attempt-1); err != nil {
				return "", err
			}
		}

		text, err := p.summarizer.Summarize(ctx, art.RawText)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !summarize.Retryable(err) {
			return "", err
		}
		p.logger.Debug("summarization attempt failed",
			zap.String("fingerprint", art.Fingerprint),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return "", lastErr
}

// digestStage builds and delivers today's digest. An empty digest
// suppresses delivery entirely; a delivery failure is logged, never
// raised.
func (p *Pipeline) digestStage(ctx context.Context, report *Report, runErrs *[]string) error {
	today := p.now().In(p.cfg.DigestLocation)

	items, err := p.store.ArticlesForDigest(ctx, today)
	if err != nil {
		*runErrs = append(*runErrs, err.Error())
		return p.fatal("digest aborted", err)
	}
	if len(items) == 0 {
		p.logger.Info("no summaries for today, skipping email")
		return nil
	}

	d, err := digest.Build(today, items)
	if err != nil {
		*runErrs = append(*runErrs, err.Error())
		return nil
	}

	if err := p.notifier.Send(ctx, d.Subject, d.HTML, p.cfg.Recipients); err != nil {
		p.logger.Error("digest delivery failed", zap.Error(err))
		*runErrs = append(*runErrs, err.Error())
		return nil
	}

	report.EmailSent = true
	p.logger.Info("digest sent",
		zap.Int("articles", d.Items),
		zap.Strings("recipients", p.cfg.Recipients))
	return nil
}

// record appends the execution log row. A failure here is only logged:
// there is nowhere left to persist it.
func (p *Pipeline) record(ctx context.Context, started time.Time, report Report) {
	entry := store.ExecutionLog{
		RunID:              report.RunID,
		StartedAt:          started,
		FinishedAt:         p.now(),
		ArticlesFetched:    report.ArticlesFetched,
		ArticlesNew:        report.ArticlesNew,
		SummariesSucceeded: report.SummariesSucceeded,
		SummariesFailed:    report.SummariesFailed,
		EmailSent:          report.EmailSent,
		ErrorSummary:       report.ErrorSummary,
	}
	if err := p.store.AppendExecutionLog(ctx, entry); err != nil {
		p.logger.Error("execution log append failed",
			zap.String("run_id", report.RunID),
			zap.Error(err))
	}
}

// fatal wraps a store failure that aborts the remaining stages.
func (p *Pipeline) fatal(stage string, err error) error {
	p.logger.Error(stage, zap.Error(err))
	return fmt.Errorf("%s: %w", stage, err)
}
