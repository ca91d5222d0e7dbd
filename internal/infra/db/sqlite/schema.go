package sqlite

import "github.com/bryanwahyu/bito-analyst/internal/infra/db/sqlrepo"

var Dialect = sqlrepo.Dialect{
	Name:   "sqlite",
	Schema: schema,
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS erp_snapshots (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	raw_data   TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS analysis_results (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	snapshot_id       INTEGER NOT NULL UNIQUE REFERENCES erp_snapshots(id) ON DELETE CASCADE,
	status            TEXT NOT NULL DEFAULT 'pending',
	name              TEXT NOT NULL DEFAULT '',
	error_message     TEXT,
	cleaning_analysis TEXT NOT NULL DEFAULT '{}',
	business_strategy TEXT NOT NULL DEFAULT '{}',
	erp_actions       TEXT NOT NULL DEFAULT '{}',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_status_created ON analysis_results(status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_created ON analysis_results(created_at)`, `
CREATE TABLE IF NOT EXISTS analysis_failures (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	analysis_id  INTEGER NOT NULL REFERENCES analysis_results(id) ON DELETE CASCADE,
	job_id       TEXT NOT NULL,
	attempt      INTEGER NOT NULL,
	stage        TEXT NOT NULL,
	message      TEXT NOT NULL,
	details_json TEXT NOT NULL DEFAULT '{}',
	created_at   DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_failures_analysis ON analysis_failures(analysis_id, created_at)`, `
CREATE TABLE IF NOT EXISTS analysis_jobs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	analysis_id  INTEGER NOT NULL REFERENCES analysis_results(id) ON DELETE CASCADE,
	state        TEXT NOT NULL,
	attempts     INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL,
	last_error   TEXT,
	run_at       DATETIME NOT NULL,
	locked_at    DATETIME,
	locked_by    TEXT,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_state_run ON analysis_jobs(state, run_at)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_analysis ON analysis_jobs(analysis_id)`,
}
