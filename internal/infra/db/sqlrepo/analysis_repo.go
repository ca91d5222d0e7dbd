package sqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/bito-analyst/internal/application"
	domain "github.com/bryanwahyu/bito-analyst/internal/domain/analysis"
)

type AnalysisRepository struct {
	db    *sql.DB
	d     Dialect
	clock application.Clock
}

func NewAnalysisRepository(db *sql.DB, d Dialect, clock application.Clock) *AnalysisRepository {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &AnalysisRepository{db: db, d: d, clock: clock}
}

const selectAnalysis = `
SELECT a.id, a.snapshot_id, a.status, a.name, a.error_message,
       a.cleaning_analysis, a.business_strategy, a.erp_actions,
       a.created_at, a.updated_at,
       s.raw_data, s.created_at, s.updated_at
FROM analysis_results a
JOIN erp_snapshots s ON s.id = a.snapshot_id`

func (r *AnalysisRepository) Create(ctx context.Context, s *domain.Snapshot, a *domain.Analysis) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlrepo: begin create")
	}
	defer tx.Rollback()

	snapID, err := insertID(ctx, tx, r.d,
		`INSERT INTO erp_snapshots (raw_data, created_at, updated_at) VALUES (?, ?, ?)`,
		string(s.RawData), s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if err != nil {
		return eris.Wrap(err, "sqlrepo: insert snapshot")
	}

	id, err := insertID(ctx, tx, r.d, `
INSERT INTO analysis_results
  (snapshot_id, status, name, error_message, cleaning_analysis, business_strategy, erp_actions, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snapID, string(a.Status), a.Name, a.ErrorMessage,
		jsonText(a.CleaningAnalysis), jsonText(a.BusinessStrategy), jsonText(a.ERPActions),
		a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return eris.Wrap(err, "sqlrepo: insert analysis")
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlrepo: commit create")
	}
	s.ID = snapID
	a.ID = id
	a.SnapshotID = snapID
	a.Snapshot = s
	return nil
}

func (r *AnalysisRepository) Get(ctx context.Context, id int64) (*domain.Analysis, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(selectAnalysis+` WHERE a.id = ?`), id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlrepo: get analysis %d", id)
	}
	return a, nil
}

func (r *AnalysisRepository) GetSnapshot(ctx context.Context, id int64) (*domain.Snapshot, error) {
	var (
		s   domain.Snapshot
		raw []byte
	)
	err := r.db.QueryRowContext(ctx,
		r.d.Rebind(`SELECT id, raw_data, created_at, updated_at FROM erp_snapshots WHERE id = ?`), id,
	).Scan(&s.ID, &raw, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlrepo: get snapshot %d", id)
	}
	s.RawData = json.RawMessage(raw)
	return &s, nil
}

func (r *AnalysisRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Analysis, error) {
	q := selectAnalysis
	var args []any
	if f.Status != "" {
		q += ` WHERE a.status = ?`
		args = append(args, string(f.Status))
	}
	q += ` ORDER BY a.created_at DESC, a.id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, max(f.Offset, 0))
	}

	rows, err := r.db.QueryContext(ctx, r.d.Rebind(q), args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlrepo: list analyses")
	}
	defer rows.Close()

	out := []*domain.Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlrepo: scan analysis")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlrepo: list analyses")
}

// transition updates status guarded by the allowed source statuses, so a
// terminal analysis can never be moved again even by a concurrent worker.
func (r *AnalysisRepository) transition(ctx context.Context, id int64, to domain.Status, set string, args ...any) error {
	from := domain.SourcesOf(to)
	q := `UPDATE analysis_results SET status = ?, updated_at = ?` + set +
		` WHERE id = ? AND status IN (` + placeholders(len(from)) + `)`

	params := []any{string(to), r.clock.Now().UTC()}
	params = append(params, args...)
	params = append(params, id)
	for _, s := range from {
		params = append(params, string(s))
	}

	res, err := r.db.ExecContext(ctx, r.d.Rebind(q), params...)
	if err != nil {
		return eris.Wrapf(err, "sqlrepo: set analysis %d %s", id, to)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlrepo: rows affected")
	}
	if n > 0 {
		return nil
	}
	if _, err := r.currentStatus(ctx, id); err != nil {
		return err
	}
	return eris.Wrapf(domain.ErrInvalidTransition, "analysis %d -> %s", id, to)
}

func (r *AnalysisRepository) currentStatus(ctx context.Context, id int64) (domain.Status, error) {
	var st string
	err := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT status FROM analysis_results WHERE id = ?`), id).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlrepo: status of analysis %d", id)
	}
	return domain.Status(st), nil
}

func (r *AnalysisRepository) UpdateStatus(ctx context.Context, id int64, to domain.Status) error {
	return r.transition(ctx, id, to, "")
}

func (r *AnalysisRepository) RecordError(ctx context.Context, id int64, msg string) error {
	res, err := r.db.ExecContext(ctx,
		r.d.Rebind(`UPDATE analysis_results SET error_message = ?, updated_at = ? WHERE id = ?`),
		msg, r.clock.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlrepo: record error on analysis %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AnalysisRepository) Complete(ctx context.Context, id int64, res domain.Results) error {
	return r.transition(ctx, id, domain.StatusCompleted,
		`, cleaning_analysis = ?, business_strategy = ?, erp_actions = ?, error_message = NULL`,
		jsonText(res.CleaningAnalysis), jsonText(res.BusinessStrategy), jsonText(res.ERPActions))
}

func (r *AnalysisRepository) MarkFailed(ctx context.Context, id int64, msg string) error {
	return r.transition(ctx, id, domain.StatusFailed, `, error_message = ?`, msg)
}

func (r *AnalysisRepository) Requeue(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.d.Rebind(`
UPDATE analysis_results
SET status = ?, error_message = NULL, cleaning_analysis = ?, business_strategy = ?, erp_actions = ?, updated_at = ?
WHERE id = ? AND status = ?`),
		string(domain.StatusPending), "{}", "{}", "{}", r.clock.Now().UTC(), id, string(domain.StatusFailed))
	if err != nil {
		return eris.Wrapf(err, "sqlrepo: requeue analysis %d", id)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := r.currentStatus(ctx, id); err != nil {
		return err
	}
	return eris.Wrapf(domain.ErrInvalidTransition, "analysis %d is not failed", id)
}

// Delete removes the analysis, its snapshot, jobs and failure log.
func (r *AnalysisRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlrepo: begin delete")
	}
	defer tx.Rollback()

	var snapID int64
	err = tx.QueryRowContext(ctx, r.d.Rebind(`SELECT snapshot_id FROM analysis_results WHERE id = ?`), id).Scan(&snapID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "sqlrepo: find analysis %d", id)
	}

	for _, q := range []struct {
		sql string
		arg int64
	}{
		{`DELETE FROM analysis_jobs WHERE analysis_id = ?`, id},
		{`DELETE FROM analysis_failures WHERE analysis_id = ?`, id},
		{`DELETE FROM analysis_results WHERE id = ?`, id},
		{`DELETE FROM erp_snapshots WHERE id = ?`, snapID},
	} {
		if _, err := tx.ExecContext(ctx, r.d.Rebind(q.sql), q.arg); err != nil {
			return eris.Wrapf(err, "sqlrepo: delete analysis %d", id)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlrepo: commit delete")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*domain.Analysis, error) {
	var (
		a                          domain.Analysis
		s                          domain.Snapshot
		status                     string
		errMsg                     sql.NullString
		cleaning, strategy, erpAct []byte
		raw                        []byte
	)
	if err := row.Scan(
		&a.ID, &a.SnapshotID, &status, &a.Name, &errMsg,
		&cleaning, &strategy, &erpAct,
		&a.CreatedAt, &a.UpdatedAt,
		&raw, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Status = domain.Status(status)
	if errMsg.Valid {
		a.ErrorMessage = &errMsg.String
	}
	a.CleaningAnalysis = jsonOrEmpty(cleaning)
	a.BusinessStrategy = jsonOrEmpty(strategy)
	a.ERPActions = jsonOrEmpty(erpAct)

	s.ID = a.SnapshotID
	s.RawData = json.RawMessage(raw)
	a.Snapshot = &s
	return &a, nil
}

func jsonOrEmpty(b []byte) json.RawMessage {
	if len(b) == 0 {
		return domain.EmptyResult
	}
	return json.RawMessage(b)
}

// jsonText is the bind value for JSON columns. Drivers treat []byte as
// binary, which MySQL JSON and Postgres JSONB reject.
func jsonText(b []byte) string {
	return string(jsonOrEmpty(b))
}
