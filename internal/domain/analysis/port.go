package analysis

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	// Create stores the snapshot and its analysis in one transaction and fills both IDs.
	Create(ctx context.Context, s *Snapshot, a *Analysis) error
	Get(ctx context.Context, id int64) (*Analysis, error)
	GetSnapshot(ctx context.Context, id int64) (*Snapshot, error)
	List(ctx context.Context, f ListFilter) ([]*Analysis, error)

	// UpdateStatus moves an analysis to `to`, failing with ErrInvalidTransition
	// when the current status is not one of SourcesOf(to).
	UpdateStatus(ctx context.Context, id int64, to Status) error
	// RecordError stores the last error without touching the status.
	RecordError(ctx context.Context, id int64, msg string) error
	Complete(ctx context.Context, id int64, r Results) error
	MarkFailed(ctx context.Context, id int64, msg string) error
	// Requeue resets a failed analysis to pending. Operator action only.
	Requeue(ctx context.Context, id int64) error

	// Delete removes the analysis together with its snapshot.
	Delete(ctx context.Context, id int64) error
}

// ReportStore archives completed analyses outside the database.
type ReportStore interface {
	Archive(ctx context.Context, a *Analysis) (string, error)
	// URL returns a time-limited download link, ErrNotFound if nothing is archived.
	URL(ctx context.Context, id int64) (string, error)
	Remove(ctx context.Context, id int64) error
}
