package failures

import "context"

// Repository defines persistence for failed attempts
type Repository interface {
	Save(ctx context.Context, f *Failure) error
	ListByAnalysis(ctx context.Context, analysisID int64, limit int) ([]*Failure, error)
}
