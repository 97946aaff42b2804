package store

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    fingerprint   TEXT PRIMARY KEY,
    title         TEXT NOT NULL DEFAULT '',
    url           TEXT NOT NULL,
    author        TEXT NOT NULL DEFAULT '',
    published_at  DATETIME,
    raw_text      TEXT NOT NULL DEFAULT '',
    first_seen_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_first_seen ON articles(first_seen_at);

CREATE TABLE IF NOT EXISTS summaries (
    fingerprint   TEXT PRIMARY KEY REFERENCES articles(fingerprint),
    summary_text  TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'pending'
                  CHECK (status IN ('pending', 'succeeded', 'failed')),
    attempt_count INTEGER NOT NULL DEFAULT 0,
    last_error    TEXT NOT NULL DEFAULT '',
    generated_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_summaries_status ON summaries(status);
CREATE INDEX IF NOT EXISTS idx_summaries_generated ON summaries(generated_at);

CREATE TABLE IF NOT EXISTS execution_logs (
    run_id              TEXT PRIMARY KEY,
    started_at          DATETIME NOT NULL,
    finished_at         DATETIME NOT NULL,
    articles_fetched    INTEGER NOT NULL DEFAULT 0,
    articles_new        INTEGER NOT NULL DEFAULT 0,
    summaries_succeeded INTEGER NOT NULL DEFAULT 0,
    summaries_failed    INTEGER NOT NULL DEFAULT 0,
    email_sent          BOOLEAN NOT NULL DEFAULT 0,
    error_summary       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_logs_started ON execution_logs(started_at);
`
