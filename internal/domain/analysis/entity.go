package analysis

import (
	"encoding/json"
	"time"
)

// Status enum
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// ParseStatus validates a status coming from outside (query params, CLI flags).
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrUnknownStatus
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// transitions maps a target status to the statuses it may be entered from.
// processing -> processing is a retry restarting the chain.
var transitions = map[Status][]Status{
	StatusProcessing: {StatusPending, StatusProcessing},
	StatusCompleted:  {StatusProcessing},
	StatusFailed:     {StatusPending, StatusProcessing},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// SourcesOf returns the statuses an analysis may be in to move to `to`.
func SourcesOf(to Status) []Status {
	return transitions[to]
}

// EmptyResult is the stored value of a result field before the chain fills it.
var EmptyResult = json.RawMessage(`{}`)

// Snapshot is the submitted ERP payload. Immutable once stored.
type Snapshot struct {
	ID        int64           `json:"id"`
	RawData   json.RawMessage `json:"raw_data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Aggregate Root: Analysis
type Analysis struct {
	ID               int64           `json:"id"`
	SnapshotID       int64           `json:"-"`
	Snapshot         *Snapshot       `json:"erp_snapshot"`
	Status           Status          `json:"status"`
	Name             string          `json:"name"`
	ErrorMessage     *string         `json:"error_message"`
	CleaningAnalysis json.RawMessage `json:"cleaning_analysis"`
	BusinessStrategy json.RawMessage `json:"business_strategy"`
	ERPActions       json.RawMessage `json:"erp_actions"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// New builds a pending analysis over a fresh snapshot.
func New(name string, raw json.RawMessage, now time.Time) (*Snapshot, *Analysis) {
	snap := &Snapshot{RawData: raw, CreatedAt: now, UpdatedAt: now}
	a := &Analysis{
		Snapshot:         snap,
		Status:           StatusPending,
		Name:             name,
		CleaningAnalysis: EmptyResult,
		BusinessStrategy: EmptyResult,
		ERPActions:       EmptyResult,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return snap, a
}

// Results is the output of the three chain stages.
type Results struct {
	CleaningAnalysis json.RawMessage `json:"cleaning_analysis"`
	BusinessStrategy json.RawMessage `json:"business_strategy"`
	ERPActions       json.RawMessage `json:"erp_actions"`
}

// ListFilter narrows List. Limit 0 means no limit.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}
