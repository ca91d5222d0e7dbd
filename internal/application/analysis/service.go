package analysis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bryanwahyu/bito-analyst/internal/application"
	appai "github.com/bryanwahyu/bito-analyst/internal/application/ai"
	appjobs "github.com/bryanwahyu/bito-analyst/internal/application/jobs"
	domain "github.com/bryanwahyu/bito-analyst/internal/domain/analysis"
	"github.com/bryanwahyu/bito-analyst/internal/domain/failures"
	"github.com/bryanwahyu/bito-analyst/internal/domain/jobs"
)

// Analyzer runs the LLM chain over a snapshot.
type Analyzer interface {
	Run(ctx context.Context, raw json.RawMessage) (domain.Results, error)
}

// Enqueuer schedules background work for an analysis.
type Enqueuer interface {
	Enqueue(ctx context.Context, analysisID int64) (*jobs.Job, error)
	Revive(ctx context.Context, jobID string) (*jobs.Job, error)
}

// Service implements the analysis use-cases. It is also the job handler
// the worker pool runs.
type Service struct {
	Repo     domain.Repository
	Failures failures.Repository
	Queue    Enqueuer
	Chain    Analyzer
	Reports  domain.ReportStore // optional
	Clock    application.Clock
}

//
// ==== USE CASES ====
//

type SubmitResult struct {
	TaskID     string        `json:"task_id"`
	AnalysisID int64         `json:"analysis_id"`
	SnapshotID int64         `json:"snapshot_id"`
	Status     domain.Status `json:"status"`
}

// Submit stores the snapshot and a pending analysis, then queues the chain.
// If queueing fails the analysis is marked failed and the error returned.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error) {
	if len(cmd.Data) == 0 {
		return SubmitResult{}, domain.ErrEmptySubmission
	}
	snap, a := domain.New(cmd.Name, cmd.Data, s.Clock.Now().UTC())
	if err := s.Repo.Create(ctx, snap, a); err != nil {
		return SubmitResult{}, eris.Wrap(err, "analysis: create")
	}

	job, err := s.Queue.Enqueue(ctx, a.ID)
	if err != nil {
		if ferr := s.Repo.MarkFailed(context.WithoutCancel(ctx), a.ID, "failed to enqueue: "+err.Error()); ferr != nil {
			zap.L().Error("mark analysis failed after enqueue error",
				zap.Int64("analysis_id", a.ID), zap.Error(ferr))
		}
		return SubmitResult{}, eris.Wrapf(err, "analysis: enqueue %d", a.ID)
	}

	zap.L().Info("analysis submitted",
		zap.Int64("analysis_id", a.ID),
		zap.Int64("snapshot_id", snap.ID),
		zap.String("task_id", job.ID))

	return SubmitResult{
		TaskID:     job.ID,
		AnalysisID: a.ID,
		SnapshotID: snap.ID,
		Status:     domain.StatusPending,
	}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Analysis, error) {
	return s.Repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f domain.ListFilter) ([]*domain.Analysis, error) {
	return s.Repo.List(ctx, f)
}

// Delete removes the analysis with its snapshot and archived report.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.Reports != nil {
		if err := s.Reports.Remove(ctx, id); err != nil {
			zap.L().Warn("remove archived report", zap.Int64("analysis_id", id), zap.Error(err))
		}
	}
	return nil
}

// FailureLog lists failed attempts, newest first.
func (s *Service) FailureLog(ctx context.Context, id int64, limit int) ([]*failures.Failure, error) {
	if _, err := s.Repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.Failures.ListByAnalysis(ctx, id, limit)
}

// ErrReportsDisabled is returned by ReportURL when no archive is configured.
var ErrReportsDisabled = errors.New("report archive disabled")

func (s *Service) ReportURL(ctx context.Context, id int64) (string, error) {
	if s.Reports == nil {
		return "", ErrReportsDisabled
	}
	if _, err := s.Repo.Get(ctx, id); err != nil {
		return "", err
	}
	return s.Reports.URL(ctx, id)
}

// Retry revives a dead job and puts its failed analysis back to pending.
// Operator action, outside the normal lifecycle.
func (s *Service) Retry(ctx context.Context, jobID string) (*jobs.Job, error) {
	j, err := s.Queue.Revive(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.Requeue(ctx, j.AnalysisID); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
		return nil, eris.Wrapf(err, "analysis: requeue %d", j.AnalysisID)
	}
	zap.L().Info("job revived", zap.String("job_id", j.ID), zap.Int64("analysis_id", j.AnalysisID))
	return j, nil
}

//
// ==== JOB HANDLER ====
//

// Process runs the chain for the job's analysis. Redelivered jobs for a
// terminal analysis are a no-op.
func (s *Service) Process(ctx context.Context, j *jobs.Job) error {
	log := zap.L().With(zap.Int64("analysis_id", j.AnalysisID), zap.String("job_id", j.ID))

	a, err := s.Repo.Get(ctx, j.AnalysisID)
	if errors.Is(err, domain.ErrNotFound) {
		return appjobs.Permanent(err)
	}
	if err != nil {
		return err
	}
	if !domain.CanTransition(a.Status, domain.StatusProcessing) {
		log.Info("analysis already finished, skipping", zap.String("status", string(a.Status)))
		return nil
	}

	snap, err := s.Repo.GetSnapshot(ctx, a.SnapshotID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && len(snap.RawData) == 0) {
		return appjobs.Permanent(eris.Wrapf(domain.ErrNotFound, "snapshot of analysis %d", a.ID))
	}
	if err != nil {
		return err
	}

	if err := s.Repo.UpdateStatus(ctx, a.ID, domain.StatusProcessing); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// raced with another delivery that finished it
			return nil
		}
		return err
	}

	results, err := s.Chain.Run(ctx, snap.RawData)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			// shutdown, not a failed attempt
			return err
		}
		s.recordAttempt(ctx, j, err)
		return err
	}

	if err := s.Repo.Complete(ctx, a.ID, results); err != nil {
		return eris.Wrapf(err, "analysis: complete %d", a.ID)
	}
	log.Info("analysis completed")
	s.archive(ctx, a.ID)
	return nil
}

// GiveUp marks the analysis failed once the queue stops retrying.
func (s *Service) GiveUp(ctx context.Context, j *jobs.Job, cause error) {
	if err := s.Repo.MarkFailed(ctx, j.AnalysisID, cause.Error()); err != nil &&
		!errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrInvalidTransition) {
		zap.L().Error("mark analysis failed",
			zap.Int64("analysis_id", j.AnalysisID),
			zap.String("job_id", j.ID),
			zap.NamedError("cause", cause),
			zap.Error(err))
	}
}

// recordAttempt stores the error on the analysis and in the failure log.
// Errors here are logged only; the chain error stays the one reported.
func (s *Service) recordAttempt(ctx context.Context, j *jobs.Job, cause error) {
	ctx = context.WithoutCancel(ctx)
	log := zap.L().With(zap.Int64("analysis_id", j.AnalysisID), zap.String("job_id", j.ID), zap.Int("attempt", j.Attempts))

	if err := s.Repo.RecordError(ctx, j.AnalysisID, cause.Error()); err != nil {
		log.Error("record analysis error", zap.NamedError("cause", cause), zap.Error(err))
	}

	details, _ := json.Marshal(map[string]any{
		"max_attempts": j.MaxAttempts,
		"kind":         j.Kind,
	})
	f := &failures.Failure{
		AnalysisID:  j.AnalysisID,
		JobID:       j.ID,
		Attempt:     j.Attempts,
		Stage:       string(appai.StageOf(cause)),
		Message:     cause.Error(),
		DetailsJSON: string(details),
		CreatedAt:   s.Clock.Now().UTC(),
	}
	if err := s.Failures.Save(ctx, f); err != nil {
		log.Error("save failure log", zap.NamedError("cause", cause), zap.Error(err))
	}
}

func (s *Service) archive(ctx context.Context, id int64) {
	if s.Reports == nil {
		return
	}
	a, err := s.Repo.Get(ctx, id)
	if err != nil {
		zap.L().Warn("load analysis for archive", zap.Int64("analysis_id", id), zap.Error(err))
		return
	}
	key, err := s.Reports.Archive(ctx, a)
	if err != nil {
		zap.L().Warn("archive report", zap.Int64("analysis_id", id), zap.Error(err))
		return
	}
	zap.L().Info("report archived", zap.Int64("analysis_id", id), zap.String("key", key))
}
