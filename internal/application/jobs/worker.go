package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bryanwahyu/bito-analyst/internal/application"
	domain "github.com/bryanwahyu/bito-analyst/internal/domain/jobs"
)

// Handler runs the work behind a job. Process may be called more than
// once for the same job, so it must be idempotent.
type Handler interface {
	Process(ctx context.Context, j *domain.Job) error
	// GiveUp is called once after the job is buried.
	GiveUp(ctx context.Context, j *domain.Job, cause error)
}

// Worker polls the store and runs one job at a time.
type Worker struct {
	ID      string
	Store   domain.Store
	Handler Handler
	Policy  RetryPolicy
	Clock   application.Clock

	PollInterval time.Duration
	// VisibilityTimeout bounds one attempt. A processing job locked for
	// longer is considered abandoned and can be claimed again.
	VisibilityTimeout time.Duration
}

func (w *Worker) pollInterval() time.Duration {
	if w.PollInterval <= 0 {
		return time.Second
	}
	return w.PollInterval
}

func (w *Worker) visibility() time.Duration {
	if w.VisibilityTimeout <= 0 {
		return 15 * time.Minute
	}
	return w.VisibilityTimeout
}

// Run polls until ctx is cancelled. A tick drains every eligible job.
func (w *Worker) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("worker", w.ID))
	log.Info("worker started")

	ticker := time.NewTicker(w.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped")
			return nil
		case <-ticker.C:
			for ctx.Err() == nil {
				ran, err := w.ProcessNext(ctx)
				if err != nil {
					log.Error("process job", zap.Error(err))
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// ProcessNext claims and runs a single job. It reports whether a job was
// claimed. Handler failures are not returned; only queue errors are.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	j, err := w.Store.Claim(ctx, w.ID, w.Clock.Now().UTC(), w.visibility())
	if err != nil {
		return false, eris.Wrap(err, "jobs: claim")
	}
	if j == nil {
		return false, nil
	}

	log := zap.L().With(
		zap.String("worker", w.ID),
		zap.String("job_id", j.ID),
		zap.Int64("analysis_id", j.AnalysisID),
		zap.Int("attempt", j.Attempts),
	)

	// A job that keeps crashing its worker is reclaimed past its budget.
	if j.Attempts > j.MaxAttempts {
		cause := fmt.Errorf("abandoned after %d attempts", j.MaxAttempts)
		return true, w.bury(ctx, log, j, cause)
	}

	log.Info("processing job")
	runCtx, cancel := context.WithTimeout(ctx, w.visibility())
	herr := w.Handler.Process(runCtx, j)
	cancel()

	// Shutdown may have cancelled ctx; the job must still be released.
	bookCtx := context.WithoutCancel(ctx)
	now := w.Clock.Now().UTC()
	if herr == nil {
		if err := w.Store.Complete(bookCtx, j, now); err != nil {
			return true, eris.Wrap(err, "jobs: complete")
		}
		log.Info("job completed")
		return true, nil
	}

	if ctx.Err() != nil {
		// interrupted, not failed: hand it back without spending the attempt
		if err := w.Store.Release(bookCtx, j, now); err != nil {
			return true, eris.Wrap(err, "jobs: release")
		}
		log.Info("job released on shutdown", zap.NamedError("cause", herr))
		return true, nil
	}

	if !w.Policy.Retryable(herr) || j.Exhausted() {
		return true, w.bury(ctx, log, j, herr)
	}

	delay := w.Policy.Backoff(j.Attempts - 1)
	if err := w.Store.Reschedule(bookCtx, j, now.Add(delay), herr.Error(), now); err != nil {
		return true, eris.Wrap(err, "jobs: reschedule")
	}
	log.Warn("job failed, retry scheduled", zap.Duration("retry_in", delay), zap.Error(herr))
	return true, nil
}

func (w *Worker) bury(ctx context.Context, log *zap.Logger, j *domain.Job, cause error) error {
	// Bookkeeping must finish even when shutdown cancelled ctx.
	ctx = context.WithoutCancel(ctx)
	if err := w.Store.Bury(ctx, j, cause.Error(), w.Clock.Now().UTC()); err != nil {
		return eris.Wrap(err, "jobs: bury")
	}
	log.Error("job moved to dead letter", zap.Error(cause))
	w.Handler.GiveUp(ctx, j, cause)
	return nil
}
