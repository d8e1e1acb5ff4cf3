package models

import "time"

// JobStatus is the warmup job state. Transitions are monotonic:
// queued -> running -> ready | failed. A failed fingerprint may be enqueued
// again as a fresh row; a row itself never goes backwards.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobReady   JobStatus = "ready"
	JobFailed  JobStatus = "failed"
)

// Active reports whether the status still occupies the fingerprint slot.
func (s JobStatus) Active() bool {
	return s == JobQueued || s == JobRunning
}

// CanTransitionTo enforces the monotonic state machine.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobQueued:
		return next == JobRunning
	case JobRunning:
		return next == JobReady || next == JobFailed
	default:
		return false
	}
}

// WarmupJob is one queued forecast-computation request, fingerprinted by
// {slug, timeframe, geo, data_hash}.
type WarmupJob struct {
	ID         int64      `json:"id" db:"id"`
	Slug       string     `json:"slug" db:"slug"`
	Timeframe  string     `json:"timeframe" db:"timeframe"`
	Geo        string     `json:"geo" db:"geo"`
	DataHash   string     `json:"data_hash" db:"data_hash"`
	Status     JobStatus  `json:"status" db:"status"`
	Attempts   int        `json:"attempts" db:"attempts"`
	DebugID    string     `json:"debug_id,omitempty" db:"debug_id"`
	LastError  string     `json:"last_error,omitempty" db:"last_error"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}
