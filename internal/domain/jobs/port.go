package jobs

import (
	"context"
	"time"
)

// Store is the persistent queue.
type Store interface {
	Enqueue(ctx context.Context, j *Job) error
	// Claim locks the oldest eligible job for workerID and increments its
	// attempts. It returns nil, nil when nothing is eligible.
	Claim(ctx context.Context, workerID string, now time.Time, visibility time.Duration) (*Job, error)
	Complete(ctx context.Context, j *Job, now time.Time) error
	Reschedule(ctx context.Context, j *Job, runAt time.Time, cause string, now time.Time) error
	Bury(ctx context.Context, j *Job, cause string, now time.Time) error
	// Release hands an interrupted attempt back: pending, runnable at now,
	// and the attempt is not counted.
	Release(ctx context.Context, j *Job, now time.Time) error

	Get(ctx context.Context, id string) (*Job, error)
	ListByState(ctx context.Context, state State, limit int) ([]*Job, error)
	Stats(ctx context.Context) (map[State]int, error)
	// Revive moves a dead job back to pending with a fresh attempt budget.
	Revive(ctx context.Context, id string, now time.Time) (*Job, error)
}
