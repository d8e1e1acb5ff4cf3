package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"TrendDuel/internal/domain/models"
	domrepo "TrendDuel/internal/domain/repository"
)

// evaluationStore persists evaluations and the trust-stats rollup.
type evaluationStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewEvaluationStore(db *sqlx.DB, timeout time.Duration) domrepo.EvaluationStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &evaluationStore{db: db, timeout: timeout}
}

func (r *evaluationStore) HasEvaluation(ctx context.Context, runID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRowxContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM forecast_evaluations WHERE forecast_run_id = $1)`,
		runID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check evaluation for run %d: %w", runID, err)
	}
	return exists, nil
}

// CreateEvaluation inserts the run's single evaluation. The unique constraint
// on forecast_run_id backs the at-most-one invariant; a duplicate insert from
// a racing batch surfaces as a distinct error.
func (r *evaluationStore) CreateEvaluation(ctx context.Context, eval *models.ForecastEvaluation) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO forecast_evaluations
			(forecast_run_id, winner_correct, direction_accuracy_a, direction_accuracy_b,
			 interval_hit_rate_80, interval_hit_rate_95, mae, mape, evaluated_points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		eval.ForecastRunID, eval.WinnerCorrect, eval.DirectionAccuracyA, eval.DirectionAccuracyB,
		eval.IntervalHitRate80, eval.IntervalHitRate95, eval.MAE, eval.MAPE,
		eval.EvaluatedPoints, eval.CreatedAt).Scan(&eval.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("run %d already evaluated: %w", eval.ForecastRunID, err)
		}
		return fmt.Errorf("insert evaluation for run %d: %w", eval.ForecastRunID, err)
	}
	return nil
}

func (r *evaluationStore) ListAll(ctx context.Context) ([]models.EvaluationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var records []models.EvaluationRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT e.id, e.forecast_run_id, e.winner_correct,
			e.direction_accuracy_a, e.direction_accuracy_b,
			e.interval_hit_rate_80, e.interval_hit_rate_95,
			e.mae, e.mape, e.evaluated_points, e.created_at,
			r.computed_at AS run_computed_at
		FROM forecast_evaluations e
		JOIN forecast_runs r ON r.id = e.forecast_run_id
		ORDER BY e.id`)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return records, nil
}

// UpsertTrustStats replaces the whole row for the period; the rollup is a full
// recomputation, never an increment.
func (r *evaluationStore) UpsertTrustStats(ctx context.Context, stats *models.ForecastTrustStats) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO forecast_trust_stats
			(period, total_evaluated, winner_accuracy_percent,
			 interval_coverage_percent, last_90_days_accuracy, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (period) DO UPDATE SET
			total_evaluated = EXCLUDED.total_evaluated,
			winner_accuracy_percent = EXCLUDED.winner_accuracy_percent,
			interval_coverage_percent = EXCLUDED.interval_coverage_percent,
			last_90_days_accuracy = EXCLUDED.last_90_days_accuracy,
			updated_at = EXCLUDED.updated_at`,
		stats.Period, stats.TotalEvaluated, stats.WinnerAccuracyPercent,
		stats.IntervalCoveragePercent, stats.Last90DaysAccuracy, stats.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert trust stats %q: %w", stats.Period, err)
	}
	return nil
}

func (r *evaluationStore) GetTrustStats(ctx context.Context, period string) (*models.ForecastTrustStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stats models.ForecastTrustStats
	err := r.db.QueryRowxContext(ctx, `
		SELECT period, total_evaluated, winner_accuracy_percent,
			interval_coverage_percent, last_90_days_accuracy, updated_at
		FROM forecast_trust_stats
		WHERE period = $1`,
		period).StructScan(&stats)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trust stats %q: %w", period, err)
	}
	return &stats, nil
}
