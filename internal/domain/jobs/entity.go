package jobs

import (
	"errors"
	"time"
)

// State of a job in the queue. It is independent of the analysis status.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed" // failed attempt, retry scheduled at RunAt
	StateDead       State = "dead"   // retries exhausted
)

var States = []State{StatePending, StateProcessing, StateCompleted, StateFailed, StateDead}

// ParseState validates a state name.
func ParseState(s string) (State, error) {
	for _, st := range States {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrUnknownState
}

// KindAnalysis runs the three-stage analysis chain for one analysis.
const KindAnalysis = "analysis_chain"

var (
	ErrNotFound     = errors.New("job not found")
	ErrLockLost     = errors.New("job lock lost")
	ErrNotDead      = errors.New("job is not dead")
	ErrUnknownState = errors.New("unknown job state")
)

// Job is a unit of background work with its retry bookkeeping.
type Job struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	AnalysisID  int64      `json:"analysis_id"`
	State       State      `json:"state"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   string     `json:"last_error,omitempty"`
	RunAt       time.Time  `json:"run_at"`
	LockedAt    *time.Time `json:"locked_at,omitempty"`
	LockedBy    string     `json:"locked_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Exhausted reports whether the attempt just made was the last one allowed.
func (j *Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}
