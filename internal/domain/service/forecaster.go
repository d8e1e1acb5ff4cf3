package service

import (
	"context"

	"TrendDuel/internal/domain/models"
)

// Forecaster turns one term's daily series into a horizon forecast.
// ErrInsufficientData (internal/services/forecast) is a normal outcome, not a
// failure: callers treat it as "not forecastable yet".
type Forecaster interface {
	Predict(ctx context.Context, term string, points []models.TermPoint, horizonDays int) (*models.TermForecast, error)
}
