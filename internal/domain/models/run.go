package models

import "time"

// ForecastRun records one successful forecast computation. EvaluatedAt is set
// exactly once by the evaluation pass.
type ForecastRun struct {
	ID                int64      `json:"id" db:"id"`
	Slug              string     `json:"slug" db:"slug"`
	Timeframe         string     `json:"timeframe" db:"timeframe"`
	Geo               string     `json:"geo" db:"geo"`
	TermA             string     `json:"term_a" db:"term_a"`
	TermB             string     `json:"term_b" db:"term_b"`
	DataHash          string     `json:"data_hash" db:"data_hash"`
	HorizonDays       int        `json:"horizon_days" db:"horizon_days"`
	WinnerProbability float64    `json:"winner_probability" db:"winner_probability"`
	ComputedAt        time.Time  `json:"computed_at" db:"computed_at"`
	EvaluatedAt       *time.Time `json:"evaluated_at,omitempty" db:"evaluated_at"`
}

// PredictedWinner derives the predicted winner from the stored probability.
func (r *ForecastRun) PredictedWinner() string {
	if r.WinnerProbability >= 0.5 {
		return r.TermA
	}
	return r.TermB
}

// ForecastEvaluation scores one ForecastRun against realized data. At most one
// exists per run; never updated after creation.
type ForecastEvaluation struct {
	ID                 int64     `json:"id" db:"id"`
	ForecastRunID      int64     `json:"forecast_run_id" db:"forecast_run_id"`
	WinnerCorrect      bool      `json:"winner_correct" db:"winner_correct"`
	DirectionAccuracyA *float64  `json:"direction_accuracy_a,omitempty" db:"direction_accuracy_a"`
	DirectionAccuracyB *float64  `json:"direction_accuracy_b,omitempty" db:"direction_accuracy_b"`
	IntervalHitRate80  float64   `json:"interval_hit_rate_80" db:"interval_hit_rate_80"`
	IntervalHitRate95  float64   `json:"interval_hit_rate_95" db:"interval_hit_rate_95"`
	MAE                float64   `json:"mae" db:"mae"`
	MAPE               float64   `json:"mape" db:"mape"`
	EvaluatedPoints    int       `json:"evaluated_points" db:"evaluated_points"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// EvaluationRecord joins an evaluation with its run's computation time, which
// the trust rollup needs for the rolling window.
type EvaluationRecord struct {
	ForecastEvaluation
	RunComputedAt time.Time `json:"run_computed_at" db:"run_computed_at"`
}

// ForecastTrustStats is the rolling aggregate accuracy for one period label.
// Fully recomputed (not incremented) on every evaluation pass.
type ForecastTrustStats struct {
	Period                  string    `json:"period" db:"period"`
	TotalEvaluated          int       `json:"total_evaluated" db:"total_evaluated"`
	WinnerAccuracyPercent   float64   `json:"winner_accuracy_percent" db:"winner_accuracy_percent"`
	IntervalCoveragePercent float64   `json:"interval_coverage_percent" db:"interval_coverage_percent"`
	Last90DaysAccuracy      float64   `json:"last_90_days_accuracy" db:"last_90_days_accuracy"`
	UpdatedAt               time.Time `json:"updated_at" db:"updated_at"`
}
