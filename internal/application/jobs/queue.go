package jobs

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/bito-analyst/internal/application"
	domain "github.com/bryanwahyu/bito-analyst/internal/domain/jobs"
)

// Queue creates jobs with an attempt budget taken from the policy.
type Queue struct {
	Store  domain.Store
	Policy RetryPolicy
	Clock  application.Clock
}

// Enqueue schedules the analysis chain for an analysis, runnable now.
func (q *Queue) Enqueue(ctx context.Context, analysisID int64) (*domain.Job, error) {
	now := q.Clock.Now().UTC()
	j := &domain.Job{
		ID:          uuid.NewString(),
		Kind:        domain.KindAnalysis,
		AnalysisID:  analysisID,
		State:       domain.StatePending,
		MaxAttempts: q.Policy.MaxAttempts(),
		RunAt:       now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := q.Store.Enqueue(ctx, j); err != nil {
		return nil, eris.Wrap(err, "jobs: enqueue")
	}
	return j, nil
}

// Revive gives a dead job a fresh attempt budget.
func (q *Queue) Revive(ctx context.Context, id string) (*domain.Job, error) {
	j, err := q.Store.Revive(ctx, id, q.Clock.Now().UTC())
	if err != nil {
		return nil, eris.Wrapf(err, "jobs: revive %s", id)
	}
	return j, nil
}
