package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/briefstack/briefstack/internal/config"
	"github.com/briefstack/briefstack/internal/pipeline"
	"github.com/briefstack/briefstack/internal/store"
	"github.com/briefstack/briefstack/pkg/fetch"
	"github.com/briefstack/briefstack/pkg/fingerprint"
	"github.com/briefstack/briefstack/pkg/notify"
	"github.com/briefstack/briefstack/pkg/summarize"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	fpr, err := fingerprint.New(fingerprint.Strategy(cfg.Database.Fingerprint))
	if err != nil {
		return nil, err
	}
	return store.New(cfg.Database.Path, fpr)
}

func buildFetcher(cfg *config.Config, logger *zap.Logger) fetch.Fetcher {
	filter := fetch.NewFilter(cfg.Search.Keywords, cfg.Search.ExcludeKeywords)

	var fetchers []fetch.Fetcher
	if cfg.Search.Enabled {
		fetchers = append(fetchers, fetch.NewSubstackSearch(fetch.SearchConfig{
			Query:       cfg.Search.Query,
			MaxArticles: cfg.Search.MaxArticles,
			UserAgent:   cfg.Search.UserAgent,
		}, fetch.NewExtractor(), filter, logger))
	}
	if cfg.Feeds.Enabled {
		feeds := make([]fetch.Feed, 0, len(cfg.Feeds.Feeds))
		for _, f := range cfg.Feeds.Feeds {
			feeds = append(feeds, fetch.Feed{Name: f.Name, URL: f.URL})
		}
		fetchers = append(fetchers, fetch.NewFeedFetcher(feeds, filter, cfg.Feeds.ParseMaxAge(), logger))
	}

	return fetch.NewMulti(logger, fetchers...)
}

func buildSummarizer(cfg *config.Config) (summarize.Summarizer, error) {
	if cfg.Summarizer.Mock {
		return summarize.Mock{}, nil
	}
	return summarize.NewOpenAI(summarize.Settings{
		Model:         cfg.Summarizer.Model,
		APIKey:        cfg.Summarizer.APIKey,
		BaseURL:       cfg.Summarizer.BaseURL,
		SummaryLength: cfg.Summarizer.SummaryLength,
	})
}

func buildNotifier(cfg *config.Config) (notify.Notifier, error) {
	return notify.NewSMTP(notify.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.Sender,
		Password: cfg.Email.Password,
		From:     cfg.Email.Sender,
	})
}

func buildPipeline(cfg *config.Config, st store.Store, logger *zap.Logger) (*pipeline.Pipeline, error) {
	summarizer, err := buildSummarizer(cfg)
	if err != nil {
		return nil, err
	}
	notifier, err := buildNotifier(cfg)
	if err != nil {
		return nil, err
	}

	return pipeline.New(st, buildFetcher(cfg, logger), summarizer, notifier, pipeline.Config{
		MaxSummaryAttempts: cfg.Pipeline.MaxSummaryAttempts,
		Retry: pipeline.RetryPolicy{
			MaxAttempts: cfg.Pipeline.RetryAttempts,
			BaseDelay:   cfg.Pipeline.ParseRetryBaseDelay(),
			MaxDelay:    cfg.Pipeline.ParseRetryMaxDelay(),
		},
		Recipients:     cfg.Email.Recipients,
		DigestLocation: cfg.Digest.Location(),
	}, logger), nil
}

// withPipeline handles the shared setup and teardown of pipeline commands.
func withPipeline(fn func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Report, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := buildPipeline(cfg, st, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := fn(ctx, p)
	printReport(report)
	return err
}

func runPipeline() error {
	return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Report, error) {
		return p.Run(ctx)
	})
}

func runSummarize() error {
	return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Report, error) {
		return p.SummarizeOnly(ctx)
	})
}

func runSend() error {
	return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Report, error) {
		return p.SendOnly(ctx)
	})
}

func printReport(r pipeline.Report) {
	fmt.Printf("run %s\n", r.RunID)
	fmt.Printf("  fetched:    %d\n", r.ArticlesFetched)
	fmt.Printf("  new:        %d\n", r.ArticlesNew)
	fmt.Printf("  summarized: %d\n", r.SummariesSucceeded)
	fmt.Printf("  failed:     %d\n", r.SummariesFailed)
	fmt.Printf("  email sent: %v\n", r.EmailSent)
	if r.ErrorSummary != "" {
		fmt.Printf("  errors:     %s\n", r.ErrorSummary)
	}
}

func runLogs(limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	logs, err := st.RecentLogs(context.Background(), limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tFETCHED\tNEW\tOK\tFAILED\tEMAIL\tERRORS")
	for _, l := range logs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%v\t%s\n",
			l.StartedAt.Format(time.RFC3339),
			l.FinishedAt.Sub(l.StartedAt).Round(time.Second),
			l.ArticlesFetched, l.ArticlesNew,
			l.SummariesSucceeded, l.SummariesFailed,
			l.EmailSent, l.ErrorSummary)
	}
	return w.Flush()
}

func runStats() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	counts, err := st.GetCounts(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("articles:   %d\n", counts.Articles)
	fmt.Printf("summarized: %d\n", counts.Succeeded)
	fmt.Printf("pending:    %d\n", counts.Pending)
	fmt.Printf("failed:     %d\n", counts.Failed)
	return nil
}
