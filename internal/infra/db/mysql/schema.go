package mysql

import "github.com/bryanwahyu/bito-analyst/internal/infra/db/sqlrepo"

// Dialect for MySQL 8. JSON columns have no defaults, the repository always writes them.
var Dialect = sqlrepo.Dialect{
	Name:   "mysql",
	Schema: schema,
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS erp_snapshots (
  id         BIGINT AUTO_INCREMENT PRIMARY KEY,
  raw_data   JSON NOT NULL,
  created_at DATETIME(6) NOT NULL,
  updated_at DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS analysis_results (
  id                BIGINT AUTO_INCREMENT PRIMARY KEY,
  snapshot_id       BIGINT NOT NULL,
  status            VARCHAR(20) NOT NULL DEFAULT 'pending',
  name              VARCHAR(120) NOT NULL DEFAULT '',
  error_message     TEXT NULL,
  cleaning_analysis JSON NOT NULL,
  business_strategy JSON NOT NULL,
  erp_actions       JSON NOT NULL,
  created_at        DATETIME(6) NOT NULL,
  updated_at        DATETIME(6) NOT NULL,
  UNIQUE KEY uq_analysis_snapshot (snapshot_id),
  KEY idx_analysis_status_created (status, created_at),
  KEY idx_analysis_created (created_at),
  CONSTRAINT fk_analysis_snapshot FOREIGN KEY (snapshot_id) REFERENCES erp_snapshots(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS analysis_failures (
  id           BIGINT AUTO_INCREMENT PRIMARY KEY,
  analysis_id  BIGINT NOT NULL,
  job_id       VARCHAR(36) NOT NULL,
  attempt      INT NOT NULL,
  stage        VARCHAR(32) NOT NULL,
  message      TEXT NOT NULL,
  details_json JSON NOT NULL,
  created_at   DATETIME(6) NOT NULL,
  KEY idx_failures_analysis (analysis_id, created_at),
  CONSTRAINT fk_failures_analysis FOREIGN KEY (analysis_id) REFERENCES analysis_results(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS analysis_jobs (
  id           VARCHAR(36) PRIMARY KEY,
  kind         VARCHAR(32) NOT NULL,
  analysis_id  BIGINT NOT NULL,
  state        VARCHAR(20) NOT NULL,
  attempts     INT NOT NULL DEFAULT 0,
  max_attempts INT NOT NULL,
  last_error   TEXT NULL,
  run_at       DATETIME(6) NOT NULL,
  locked_at    DATETIME(6) NULL,
  locked_by    VARCHAR(64) NULL,
  created_at   DATETIME(6) NOT NULL,
  updated_at   DATETIME(6) NOT NULL,
  KEY idx_jobs_state_run (state, run_at),
  KEY idx_jobs_analysis (analysis_id),
  CONSTRAINT fk_jobs_analysis FOREIGN KEY (analysis_id) REFERENCES analysis_results(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
