package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"TrendDuel/internal/domain/models"
	domrepo "TrendDuel/internal/domain/repository"
)

const jobColumns = `id, slug, timeframe, geo, data_hash, status, attempts,
	debug_id, last_error, created_at, updated_at, started_at, finished_at`

// jobStore implements the warmup job queue on Postgres. Both the enqueue and
// the dequeue are single atomic statements; workers never read-then-write.
type jobStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewJobStore(db *sqlx.DB, timeout time.Duration) domrepo.JobStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &jobStore{db: db, timeout: timeout}
}

// Enqueue inserts a queued job unless an active one already holds the
// fingerprint. The partial unique index arbitrates concurrent callers; losing
// the race means returning the row that won.
func (r *jobStore) Enqueue(ctx context.Context, job *models.WarmupJob) (*models.WarmupJob, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO warmup_jobs (slug, timeframe, geo, data_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug, timeframe, geo, data_hash)
			WHERE status IN ('queued', 'running')
			DO NOTHING
		RETURNING ` + jobColumns

	var created models.WarmupJob
	err := r.db.QueryRowxContext(ctx, query, job.Slug, job.Timeframe, job.Geo, job.DataHash).
		StructScan(&created)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("enqueue job: %w", err)
	}

	// Conflict: an active job already occupies the slot.
	var existing models.WarmupJob
	err = r.db.QueryRowxContext(ctx, `
		SELECT `+jobColumns+`
		FROM warmup_jobs
		WHERE slug = $1 AND timeframe = $2 AND geo = $3 AND data_hash = $4
			AND status IN ('queued', 'running')
		ORDER BY created_at DESC
		LIMIT 1`,
		job.Slug, job.Timeframe, job.Geo, job.DataHash).StructScan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		// The active job finished between our insert and this read; retry once.
		return r.Enqueue(ctx, job)
	}
	if err != nil {
		return nil, false, fmt.Errorf("find active job: %w", err)
	}
	return &existing, false, nil
}

// Dequeue claims the oldest queued job. FOR UPDATE SKIP LOCKED keeps
// concurrent workers from claiming the same row without blocking each other.
func (r *jobStore) Dequeue(ctx context.Context) (*models.WarmupJob, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE warmup_jobs
		SET status = 'running', attempts = attempts + 1,
			started_at = now(), updated_at = now()
		WHERE id = (
			SELECT id FROM warmup_jobs
			WHERE status = 'queued'
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	var job models.WarmupJob
	err := r.db.QueryRowxContext(ctx, query).StructScan(&job)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue job: %w", err)
	}
	return &job, nil
}

func (r *jobStore) MarkReady(ctx context.Context, id int64, debugID string) error {
	return r.finish(ctx, id, models.JobReady, debugID, "")
}

func (r *jobStore) MarkFailed(ctx context.Context, id int64, lastError string) error {
	return r.finish(ctx, id, models.JobFailed, "", lastError)
}

// finish transitions a running job to a terminal status. Guarding on
// status = 'running' enforces the monotonic state machine at the store level.
func (r *jobStore) finish(ctx context.Context, id int64, status models.JobStatus, debugID, lastError string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE warmup_jobs
		SET status = $2, debug_id = $3, last_error = $4,
			finished_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'running'`,
		id, status, debugID, lastError)
	if err != nil {
		return fmt.Errorf("finish job %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish job %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("job %d is not running", id)
	}
	return nil
}

func (r *jobStore) FindLatest(ctx context.Context, slug, timeframe, geo, dataHash string) (*models.WarmupJob, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var job models.WarmupJob
	err := r.db.QueryRowxContext(ctx, `
		SELECT `+jobColumns+`
		FROM warmup_jobs
		WHERE slug = $1 AND timeframe = $2 AND geo = $3 AND data_hash = $4
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		slug, timeframe, geo, dataHash).StructScan(&job)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest job: %w", err)
	}
	return &job, nil
}

// ReclaimStuck requeues jobs left running past the timeout, for workers that
// died mid-job. Disabled callers simply never invoke it.
func (r *jobStore) ReclaimStuck(ctx context.Context, runningFor time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cutoff := time.Now().Add(-runningFor)
	res, err := r.db.ExecContext(ctx, `
		UPDATE warmup_jobs
		SET status = 'queued', started_at = NULL, updated_at = now()
		WHERE status = 'running' AND started_at < $1`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("reclaim stuck jobs: %w", err)
	}
	return res.RowsAffected()
}
