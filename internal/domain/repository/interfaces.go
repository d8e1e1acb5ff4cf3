package repository

import (
	"context"
	"time"

	"TrendDuel/internal/domain/models"
)

// JobStore persists the warmup job queue. Enqueue and Dequeue must be atomic
// at the store level: independent worker processes race on them.
type JobStore interface {
	// Enqueue inserts a queued job unless an active (queued or running) job
	// already exists for the same {slug, timeframe, geo, data_hash}. Returns
	// the job occupying the slot and whether this call created it.
	Enqueue(ctx context.Context, job *models.WarmupJob) (*models.WarmupJob, bool, error)

	// Dequeue atomically claims the single oldest queued job: marks it
	// running and increments attempts. Returns nil when the queue is empty.
	Dequeue(ctx context.Context) (*models.WarmupJob, error)

	// MarkReady finishes a running job successfully.
	MarkReady(ctx context.Context, id int64, debugID string) error

	// MarkFailed finishes a running job with a bounded error message.
	MarkFailed(ctx context.Context, id int64, lastError string) error

	// FindLatest returns the most recent job for the fingerprint regardless
	// of status, or nil.
	FindLatest(ctx context.Context, slug, timeframe, geo, dataHash string) (*models.WarmupJob, error)

	// ReclaimStuck requeues jobs running longer than runningFor. Returns the
	// number of reclaimed jobs.
	ReclaimStuck(ctx context.Context, runningFor time.Duration) (int64, error)
}

// RunStore persists forecast runs and their points.
type RunStore interface {
	// CreateRun inserts a run and its forecast points in one transaction,
	// filling run.ID.
	CreateRun(ctx context.Context, run *models.ForecastRun, points []models.ForecastPoint) error

	// FindEvaluable returns unevaluated runs whose horizon plus bufferDays
	// has fully elapsed, oldest first, bounded by limit.
	FindEvaluable(ctx context.Context, now time.Time, bufferDays, limit int) ([]models.ForecastRun, error)

	// PointsForRun returns a run's stored forecast points in date order.
	PointsForRun(ctx context.Context, runID int64) ([]models.ForecastPoint, error)

	// MarkEvaluated sets evaluated_at once; a second call is a no-op.
	MarkEvaluated(ctx context.Context, runID int64, at time.Time) error
}

// EvaluationStore persists forecast evaluations and trust stats.
type EvaluationStore interface {
	// HasEvaluation reports whether the run was already scored.
	HasEvaluation(ctx context.Context, runID int64) (bool, error)

	// CreateEvaluation inserts the single evaluation for a run.
	CreateEvaluation(ctx context.Context, eval *models.ForecastEvaluation) error

	// ListAll returns every evaluation joined with its run's computed_at,
	// for the full trust recomputation.
	ListAll(ctx context.Context) ([]models.EvaluationRecord, error)

	// UpsertTrustStats replaces the stats row for the period label.
	UpsertTrustStats(ctx context.Context, stats *models.ForecastTrustStats) error

	// GetTrustStats returns stats for the period, or nil.
	GetTrustStats(ctx context.Context, period string) (*models.ForecastTrustStats, error)
}

// SeriesProvider reads interest series from the upstream accessor.
// Implementations must return points in ascending date order.
type SeriesProvider interface {
	FetchSeries(ctx context.Context, slug, timeframe, geo string) (*models.ComparisonSeries, error)
}

// Metrics abstracts operational metrics recording.
type Metrics interface {
	RecordJobProcessed(status string)
	RecordError(kind string)
	RecordCacheLookup(outcome string)
	RecordRunEvaluated()
	RecordLatency(op string, seconds float64)
}

// EventPublisher emits pipeline lifecycle events to an external bus.
// Implementations may be nil-safe no-ops when messaging is not configured.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, event JobEvent) error
	Close() error
}

// JobEvent describes a warmup job reaching a terminal state or an evaluation
// batch completing.
type JobEvent struct {
	Kind      string    `json:"kind"` // job_ready, job_failed, evaluation_batch
	JobID     int64     `json:"job_id,omitempty"`
	Slug      string    `json:"slug,omitempty"`
	Timeframe string    `json:"timeframe,omitempty"`
	Geo       string    `json:"geo,omitempty"`
	DebugID   string    `json:"debug_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Evaluated int       `json:"evaluated,omitempty"`
	At        time.Time `json:"at"`
}
