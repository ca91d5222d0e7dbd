package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	domain "github.com/bryanwahyu/bito-analyst/internal/domain/jobs"
)

// claimBatch is how many candidates Claim looks at before giving up on a
// contended poll.
const claimBatch = 10

// JobStore is the SQL job table behind the worker pool.
type JobStore struct {
	db *sql.DB
	d  Dialect
}

func NewJobStore(db *sql.DB, d Dialect) *JobStore {
	return &JobStore{db: db, d: d}
}

const selectJob = `
SELECT id, kind, analysis_id, state, attempts, max_attempts, last_error,
       run_at, locked_at, locked_by, created_at, updated_at
FROM analysis_jobs`

func (s *JobStore) Enqueue(ctx context.Context, j *domain.Job) error {
	_, err := s.db.ExecContext(ctx, s.d.Rebind(`
INSERT INTO analysis_jobs
  (id, kind, analysis_id, state, attempts, max_attempts, run_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		j.ID, j.Kind, j.AnalysisID, string(j.State), j.Attempts, j.MaxAttempts,
		j.RunAt.UTC(), j.CreatedAt.UTC(), j.UpdatedAt.UTC())
	return eris.Wrapf(err, "sqlrepo: enqueue job %s", j.ID)
}

type candidate struct {
	id       string
	state    string
	attempts int
}

// Claim picks the oldest eligible job and takes it with a compare-and-set
// on (id, state, attempts). Losing the race just moves to the next one.
func (s *JobStore) Claim(ctx context.Context, workerID string, now time.Time, visibility time.Duration) (*domain.Job, error) {
	now = now.UTC()
	rows, err := s.db.QueryContext(ctx, s.d.Rebind(`
SELECT id, state, attempts FROM analysis_jobs
WHERE (state IN (?, ?) AND run_at <= ?)
   OR (state = ? AND locked_at <= ?)
ORDER BY run_at ASC, created_at ASC
LIMIT ?`),
		string(domain.StatePending), string(domain.StateFailed), now,
		string(domain.StateProcessing), now.Add(-visibility),
		claimBatch)
	if err != nil {
		return nil, eris.Wrap(err, "sqlrepo: find claimable jobs")
	}
	var cands []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.state, &c.attempts); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlrepo: scan candidate")
		}
		cands = append(cands, c)
	}
	// close before updating, sqlite runs on a single connection
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlrepo: find claimable jobs")
	}

	for _, c := range cands {
		res, err := s.db.ExecContext(ctx, s.d.Rebind(`
UPDATE analysis_jobs
SET state = ?, attempts = attempts + 1, locked_at = ?, locked_by = ?, updated_at = ?
WHERE id = ? AND state = ? AND attempts = ?`),
			string(domain.StateProcessing), now, workerID, now,
			c.id, c.state, c.attempts)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlrepo: claim job %s", c.id)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return s.Get(ctx, c.id)
		}
	}
	return nil, nil
}

// release finishes an attempt. Only the worker holding the lock may do it.
func (s *JobStore) release(ctx context.Context, j *domain.Job, state domain.State, runAt *time.Time, cause *string, now time.Time) error {
	q := `UPDATE analysis_jobs SET state = ?, locked_at = NULL, locked_by = NULL, updated_at = ?`
	args := []any{string(state), now.UTC()}
	if runAt != nil {
		q += `, run_at = ?`
		args = append(args, runAt.UTC())
	}
	if cause != nil {
		q += `, last_error = ?`
		args = append(args, *cause)
	}
	q += ` WHERE id = ? AND state = ? AND locked_by = ?`
	args = append(args, j.ID, string(domain.StateProcessing), j.LockedBy)

	res, err := s.db.ExecContext(ctx, s.d.Rebind(q), args...)
	if err != nil {
		return eris.Wrapf(err, "sqlrepo: set job %s %s", j.ID, state)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(domain.ErrLockLost, "job %s held by %q", j.ID, j.LockedBy)
	}
	j.State = state
	j.LockedAt, j.LockedBy = nil, ""
	if runAt != nil {
		j.RunAt = *runAt
	}
	if cause != nil {
		j.LastError = *cause
	}
	j.UpdatedAt = now
	return nil
}

func (s *JobStore) Complete(ctx context.Context, j *domain.Job, now time.Time) error {
	return s.release(ctx, j, domain.StateCompleted, nil, nil, now)
}

func (s *JobStore) Reschedule(ctx context.Context, j *domain.Job, runAt time.Time, cause string, now time.Time) error {
	return s.release(ctx, j, domain.StateFailed, &runAt, &cause, now)
}

func (s *JobStore) Bury(ctx context.Context, j *domain.Job, cause string, now time.Time) error {
	return s.release(ctx, j, domain.StateDead, nil, &cause, now)
}

func (s *JobStore) Release(ctx context.Context, j *domain.Job, now time.Time) error {
	now = now.UTC()
	res, err := s.db.ExecContext(ctx, s.d.Rebind(`
UPDATE analysis_jobs
SET state = ?, attempts = attempts - 1, run_at = ?, locked_at = NULL, locked_by = NULL, updated_at = ?
WHERE id = ? AND state = ? AND locked_by = ? AND attempts > 0`),
		string(domain.StatePending), now, now,
		j.ID, string(domain.StateProcessing), j.LockedBy)
	if err != nil {
		return eris.Wrapf(err, "sqlrepo: release job %s", j.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(domain.ErrLockLost, "job %s held by %q", j.ID, j.LockedBy)
	}
	j.State = domain.StatePending
	j.Attempts--
	j.RunAt = now
	j.LockedAt, j.LockedBy = nil, ""
	j.UpdatedAt = now
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, s.d.Rebind(selectJob+` WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlrepo: get job %s", id)
	}
	return j, nil
}

// ListByState returns jobs oldest first. An empty state lists everything.
func (s *JobStore) ListByState(ctx context.Context, state domain.State, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	q := selectJob
	var args []any
	if state != "" {
		q += ` WHERE state = ?`
		args = append(args, string(state))
	}
	q += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.d.Rebind(q), args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlrepo: list jobs")
	}
	defer rows.Close()

	out := []*domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlrepo: scan job")
		}
		out = append(out, j)
	}
	return out, eris.Wrap(rows.Err(), "sqlrepo: list jobs")
}

// Stats counts jobs per state. Every state is present, zero or not.
func (s *JobStore) Stats(ctx context.Context) (map[domain.State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM analysis_jobs GROUP BY state`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlrepo: job stats")
	}
	defer rows.Close()

	out := make(map[domain.State]int, len(domain.States))
	for _, st := range domain.States {
		out[st] = 0
	}
	for rows.Next() {
		var (
			st string
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, eris.Wrap(err, "sqlrepo: scan job stats")
		}
		out[domain.State(st)] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlrepo: job stats")
}

func (s *JobStore) Revive(ctx context.Context, id string, now time.Time) (*domain.Job, error) {
	now = now.UTC()
	res, err := s.db.ExecContext(ctx, s.d.Rebind(`
UPDATE analysis_jobs
SET state = ?, attempts = 0, run_at = ?, last_error = NULL, locked_at = NULL, locked_by = NULL, updated_at = ?
WHERE id = ? AND state = ?`),
		string(domain.StatePending), now, now, id, string(domain.StateDead))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlrepo: revive job %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, eris.Wrapf(domain.ErrNotDead, "job %s", id)
	}
	return s.Get(ctx, id)
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		j         domain.Job
		state     string
		lastError sql.NullString
		lockedAt  sql.NullTime
		lockedBy  sql.NullString
	)
	if err := row.Scan(
		&j.ID, &j.Kind, &j.AnalysisID, &state, &j.Attempts, &j.MaxAttempts, &lastError,
		&j.RunAt, &lockedAt, &lockedBy, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	j.State = domain.State(state)
	j.LastError = lastError.String
	if lockedAt.Valid {
		t := lockedAt.Time
		j.LockedAt = &t
	}
	j.LockedBy = lockedBy.String
	return &j, nil
}
