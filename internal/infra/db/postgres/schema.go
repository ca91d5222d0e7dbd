package postgres

import "github.com/bryanwahyu/bito-analyst/internal/infra/db/sqlrepo"

var Dialect = sqlrepo.Dialect{
	Name:      "postgres",
	Numbered:  true,
	Returning: true,
	Schema:    schema,
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS erp_snapshots (
  id         BIGSERIAL PRIMARY KEY,
  raw_data   JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS analysis_results (
  id                BIGSERIAL PRIMARY KEY,
  snapshot_id       BIGINT NOT NULL UNIQUE REFERENCES erp_snapshots(id) ON DELETE CASCADE,
  status            VARCHAR(20) NOT NULL DEFAULT 'pending',
  name              VARCHAR(120) NOT NULL DEFAULT '',
  error_message     TEXT,
  cleaning_analysis JSONB NOT NULL DEFAULT '{}'::jsonb,
  business_strategy JSONB NOT NULL DEFAULT '{}'::jsonb,
  erp_actions       JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at        TIMESTAMPTZ NOT NULL,
  updated_at        TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_status_created ON analysis_results (status, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_created ON analysis_results (created_at DESC)`, `
CREATE TABLE IF NOT EXISTS analysis_failures (
  id           BIGSERIAL PRIMARY KEY,
  analysis_id  BIGINT NOT NULL REFERENCES analysis_results(id) ON DELETE CASCADE,
  job_id       VARCHAR(36) NOT NULL,
  attempt      INT NOT NULL,
  stage        VARCHAR(32) NOT NULL,
  message      TEXT NOT NULL,
  details_json JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at   TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_failures_analysis ON analysis_failures (analysis_id, created_at DESC)`, `
CREATE TABLE IF NOT EXISTS analysis_jobs (
  id           VARCHAR(36) PRIMARY KEY,
  kind         VARCHAR(32) NOT NULL,
  analysis_id  BIGINT NOT NULL REFERENCES analysis_results(id) ON DELETE CASCADE,
  state        VARCHAR(20) NOT NULL,
  attempts     INT NOT NULL DEFAULT 0,
  max_attempts INT NOT NULL,
  last_error   TEXT,
  run_at       TIMESTAMPTZ NOT NULL,
  locked_at    TIMESTAMPTZ,
  locked_by    VARCHAR(64),
  created_at   TIMESTAMPTZ NOT NULL,
  updated_at   TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_state_run ON analysis_jobs (state, run_at)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_analysis ON analysis_jobs (analysis_id)`,
}
