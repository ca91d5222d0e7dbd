package sqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/bito-analyst/internal/application"
	domain "github.com/bryanwahyu/bito-analyst/internal/domain/failures"
)

type FailureRepository struct {
	db    *sql.DB
	d     Dialect
	clock application.Clock
}

func NewFailureRepository(db *sql.DB, d Dialect, clock application.Clock) *FailureRepository {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &FailureRepository{db: db, d: d, clock: clock}
}

func (r *FailureRepository) Save(ctx context.Context, f *domain.Failure) error {
	stage := dashIfEmpty(f.Stage)
	msg := dashIfEmpty(f.Message)
	details := f.DetailsJSON
	if strings.TrimSpace(details) == "" {
		details = "{}"
	} else if !json.Valid([]byte(details)) {
		// keep it queryable as JSON
		b, _ := json.Marshal(map[string]string{"raw": details})
		details = string(b)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = r.clock.Now()
	}

	id, err := insertID(ctx, r.db, r.d, `
INSERT INTO analysis_failures
  (analysis_id, job_id, attempt, stage, message, details_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.AnalysisID, f.JobID, f.Attempt, stage, msg, details, f.CreatedAt.UTC())
	if err != nil {
		return eris.Wrapf(err, "sqlrepo: save failure for analysis %d", f.AnalysisID)
	}
	f.ID = id
	f.Stage, f.Message, f.DetailsJSON = stage, msg, details
	return nil
}

// ListByAnalysis returns the newest failures first.
func (r *FailureRepository) ListByAnalysis(ctx context.Context, analysisID int64, limit int) ([]*domain.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, analysis_id, job_id, attempt, stage, message, details_json, created_at
FROM analysis_failures
WHERE analysis_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(q), analysisID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlrepo: list failures for analysis %d", analysisID)
	}
	defer rows.Close()

	out := []*domain.Failure{}
	for rows.Next() {
		var (
			f       domain.Failure
			details []byte
		)
		if err := rows.Scan(&f.ID, &f.AnalysisID, &f.JobID, &f.Attempt, &f.Stage, &f.Message, &details, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlrepo: scan failure")
		}
		f.DetailsJSON = string(details)
		out = append(out, &f)
	}
	return out, eris.Wrap(rows.Err(), "sqlrepo: list failures")
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
