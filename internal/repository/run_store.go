package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"TrendDuel/internal/domain/models"
	domrepo "TrendDuel/internal/domain/repository"
)

// runStore persists forecast runs and their per-day points.
type runStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewRunStore(db *sqlx.DB, timeout time.Duration) domrepo.RunStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &runStore{db: db, timeout: timeout}
}

// CreateRun inserts the run and all its points in one transaction so a crash
// never leaves a run without the points evaluation needs.
func (r *runStore) CreateRun(ctx context.Context, run *models.ForecastRun, points []models.ForecastPoint) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO forecast_runs
			(slug, timeframe, geo, term_a, term_b, data_hash,
			 horizon_days, winner_probability, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		run.Slug, run.Timeframe, run.Geo, run.TermA, run.TermB, run.DataHash,
		run.HorizonDays, run.WinnerProbability, run.ComputedAt).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO forecast_points
			(run_id, date, term, value, lower80, upper80, lower95, upper95)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("prepare points insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx,
			run.ID, p.Date, p.Term, p.Value,
			p.Lower80, p.Upper80, p.Lower95, p.Upper95); err != nil {
			return fmt.Errorf("insert point %s/%s: %w", p.Term, p.Date.Format("2006-01-02"), err)
		}
	}

	return tx.Commit()
}

// FindEvaluable selects unevaluated runs whose horizon plus buffer has fully
// elapsed, oldest first.
func (r *runStore) FindEvaluable(ctx context.Context, now time.Time, bufferDays, limit int) ([]models.ForecastRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var runs []models.ForecastRun
	err := r.db.SelectContext(ctx, &runs, `
		SELECT id, slug, timeframe, geo, term_a, term_b, data_hash,
			horizon_days, winner_probability, computed_at, evaluated_at
		FROM forecast_runs
		WHERE evaluated_at IS NULL
			AND computed_at < $1 - (horizon_days + $2) * INTERVAL '1 day'
		ORDER BY computed_at, id
		LIMIT $3`,
		now, bufferDays, limit)
	if err != nil {
		return nil, fmt.Errorf("find evaluable runs: %w", err)
	}
	return runs, nil
}

func (r *runStore) PointsForRun(ctx context.Context, runID int64) ([]models.ForecastPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var points []models.ForecastPoint
	err := r.db.SelectContext(ctx, &points, `
		SELECT date, term, value, lower80, upper80, lower95, upper95
		FROM forecast_points
		WHERE run_id = $1
		ORDER BY term, date`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("points for run %d: %w", runID, err)
	}
	return points, nil
}

// MarkEvaluated sets evaluated_at once; already-marked runs are untouched.
func (r *runStore) MarkEvaluated(ctx context.Context, runID int64, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE forecast_runs
		SET evaluated_at = $2
		WHERE id = $1 AND evaluated_at IS NULL`,
		runID, at)
	if err != nil {
		return fmt.Errorf("mark run %d evaluated: %w", runID, err)
	}
	return nil
}
