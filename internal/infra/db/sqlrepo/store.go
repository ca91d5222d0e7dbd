package sqlrepo

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/bito-analyst/internal/application"
)

// Store bundles the repositories sharing one connection pool.
type Store struct {
	DB       *sql.DB
	Dialect  Dialect
	Analyses *AnalysisRepository
	Failures *FailureRepository
	Jobs     *JobStore
}

// New builds the store. Row timestamps the repositories write come from clock;
// nil means the system clock.
func New(db *sql.DB, d Dialect, clock application.Clock) *Store {
	return &Store{
		DB:       db,
		Dialect:  d,
		Analyses: NewAnalysisRepository(db, d, clock),
		Failures: NewFailureRepository(db, d, clock),
		Jobs:     NewJobStore(db, d),
	}
}

// Migrate creates the tables if they don't exist. Safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for i, stmt := range d.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "%s: migrate statement %d", d.Name, i+1)
		}
	}
	return nil
}

// Ping is used by the health check.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.DB.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertID runs an INSERT and returns the generated id.
func insertID(ctx context.Context, x execer, d Dialect, q string, args ...any) (int64, error) {
	if d.Returning {
		var id int64
		err := x.QueryRowContext(ctx, d.Rebind(q+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := x.ExecContext(ctx, d.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
