package analysis

import "errors"

var (
	ErrNotFound          = errors.New("analysis not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptySubmission   = errors.New("no data provided")
	ErrInvalidSubmission = errors.New("invalid data")
	ErrUnknownStatus     = errors.New("unknown status")
)
