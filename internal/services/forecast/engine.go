package forecast

import (
	"context"
	"errors"
	"math"
	"sort"

	"TrendDuel/internal/domain/models"
	domsvc "TrendDuel/internal/domain/service"
	"TrendDuel/pkg/util"
)

// ErrInsufficientData means the series is too short to forecast. It is a
// normal "no forecast yet" outcome; callers check it with errors.Is and move
// on instead of failing.
var ErrInsufficientData = errors.New("forecast: insufficient data")

const (
	minPoints       = 7
	shortHistoryLen = 14
	highVolLevel    = 0.5
	lowConfLevel    = 70
	qualityLevel    = 60

	z80 = 1.2816
	z95 = 1.9600

	// sigmaFloor keeps bands from collapsing to zero width on flat series,
	// so interval width still widens with horizon distance.
	sigmaFloor = 0.25
)

// Engine blends several forecasting strategies, weighted by how well each one
// tracked the recent past. Implements domain/service.Forecaster.
type Engine struct {
	strategies []Strategy
}

// EngineOption configures Engine.
type EngineOption func(*Engine)

// WithStrategies replaces the default strategy set.
func WithStrategies(strategies ...Strategy) EngineOption {
	return func(e *Engine) {
		e.strategies = strategies
	}
}

// NewEngine creates the prediction engine with the default strategy set.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		strategies: []Strategy{
			NewTrendStrategy(28),
			NewHoltStrategy(0.4, 0.2),
			NewSeasonalStrategy(),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ domsvc.Forecaster = (*Engine)(nil)

// Predict produces horizonDays of forecast points for one term. Points must
// be in ascending date order; out-of-range and NaN values are dropped before
// the minimum-length check.
func (e *Engine) Predict(ctx context.Context, term string, points []models.TermPoint, horizonDays int) (*models.TermForecast, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if horizonDays <= 0 {
		horizonDays = 30
	}

	usable := sanitize(points)
	if len(usable) < minPoints {
		return nil, ErrInsufficientData
	}

	values := make([]float64, len(usable))
	for i, p := range usable {
		values[i] = p.Value
	}

	vol := normalizedVolatility(values)

	blended, sigma, disagreement, err := e.blend(ctx, values, horizonDays)
	if err != nil {
		return nil, err
	}

	lastDate := util.DayFloor(usable[len(usable)-1].Date)
	fps := make([]models.ForecastPoint, horizonDays)
	for h := 1; h <= horizonDays; h++ {
		central := clamp(blended[h-1])
		// widths grow with horizon distance and with volatility
		spread := sigma * (1 + vol) * math.Sqrt(float64(h))
		w80 := z80 * spread
		w95 := z95 * spread

		fps[h-1] = models.ForecastPoint{
			Date:    lastDate.AddDate(0, 0, h),
			Term:    term,
			Value:   central,
			Lower80: clamp(central - w80),
			Upper80: clamp(central + w80),
			Lower95: clamp(central - w95),
			Upper95: clamp(central + w95),
		}
	}

	quality := dataQuality(usable)
	confidence := confidenceScore(values, vol, disagreement)

	tf := &models.TermForecast{
		Term:       term,
		Points:     fps,
		Trend:      trendLabel(values),
		Confidence: confidence,
		Volatility: vol,
	}

	if confidence < lowConfLevel {
		tf.Warnings = append(tf.Warnings, models.WarningLowConfidence)
	}
	if len(usable) < shortHistoryLen {
		tf.Warnings = append(tf.Warnings, models.WarningInsufficientData)
	}
	if vol > highVolLevel {
		tf.Warnings = append(tf.Warnings, models.WarningHighVolatility)
	}
	if quality < qualityLevel {
		tf.Warnings = append(tf.Warnings, models.WarningDataQualityConcern)
	}

	return tf, nil
}

// blend runs every applicable strategy, weighs each by inverse recent fit
// error, and returns the combined forecast plus a residual scale and the
// inter-strategy disagreement.
func (e *Engine) blend(ctx context.Context, values []float64, horizon int) (combined []float64, sigma, disagreement float64, err error) {
	type fitResult struct {
		forecast []float64
		weight   float64
		fitMAE   float64
	}

	fitWindow := len(values) / 2
	if fitWindow > shortHistoryLen {
		fitWindow = shortHistoryLen
	}
	if fitWindow < 2 {
		fitWindow = 2
	}

	var fits []fitResult
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, err
		}
		if !s.Applicable(len(values)) {
			continue
		}

		mae := recentFitError(values, s.Fitted(values), fitWindow)
		fits = append(fits, fitResult{
			forecast: s.Forecast(values, horizon),
			weight:   1 / (mae + 0.1),
			fitMAE:   mae,
		})
	}
	if len(fits) == 0 {
		return nil, 0, 0, ErrInsufficientData
	}

	var weightSum float64
	for _, f := range fits {
		weightSum += f.weight
	}

	combined = make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		var v float64
		for _, f := range fits {
			v += f.weight * f.forecast[h]
		}
		combined[h] = v / weightSum
	}

	// residual scale from the weighted fit error (MAE -> sigma for a normal)
	var weightedMAE float64
	for _, f := range fits {
		weightedMAE += f.weight * f.fitMAE
	}
	weightedMAE /= weightSum
	sigma = 1.2533 * weightedMAE
	if sigma < sigmaFloor {
		sigma = sigmaFloor
	}

	forecasts := make([][]float64, len(fits))
	for i, f := range fits {
		forecasts[i] = f.forecast
	}
	disagreement = strategySpread(forecasts, horizon)
	return combined, sigma, disagreement, nil
}

// strategySpread is the average stddev across strategy forecasts over the
// first week of the horizon.
func strategySpread(forecasts [][]float64, horizon int) float64 {
	if len(forecasts) < 2 {
		return 0
	}
	steps := horizon
	if steps > 7 {
		steps = 7
	}

	var total float64
	for h := 0; h < steps; h++ {
		vals := make([]float64, len(forecasts))
		for i := range forecasts {
			vals[i] = forecasts[i][h]
		}
		total += stddev(vals)
	}
	return total / float64(steps)
}

func sanitize(points []models.TermPoint) []models.TermPoint {
	out := make([]models.TermPoint, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		if p.Value < 0 || p.Value > 100 {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// recentFitError is the mean absolute one-step-ahead error over the last
// window points.
func recentFitError(values, fitted []float64, window int) float64 {
	start := len(values) - window
	if start < 1 {
		start = 1
	}
	var sum float64
	var count int
	for i := start; i < len(values); i++ {
		sum += math.Abs(values[i] - fitted[i])
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// normalizedVolatility is the stddev of day-over-day changes relative to the
// series mean.
func normalizedVolatility(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	diffs := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
	}
	m := mean(values)
	if m < 1 {
		m = 1
	}
	return stddev(diffs) / m
}

// trendLabel compares the recent average against the preceding window.
func trendLabel(values []float64) models.TrendLabel {
	window := len(values) / 2
	if window > shortHistoryLen {
		window = shortHistoryLen
	}
	if window < 2 {
		return models.TrendStable
	}

	recent := mean(values[len(values)-window:])
	older := mean(values[len(values)-2*window : len(values)-window])

	// relative threshold with a small absolute floor for near-zero series
	threshold := 0.05*older + 0.5
	switch {
	case recent > older+threshold:
		return models.TrendRising
	case recent < older-threshold:
		return models.TrendFalling
	default:
		return models.TrendStable
	}
}

func confidenceScore(values []float64, vol, disagreement float64) float64 {
	conf := 100.0

	volPenalty := vol * 80
	if volPenalty > 40 {
		volPenalty = 40
	}
	conf -= volPenalty

	if len(values) < shortHistoryLen {
		histPenalty := float64(shortHistoryLen-len(values)) * 2.5
		if histPenalty > 20 {
			histPenalty = 20
		}
		conf -= histPenalty
	}

	m := mean(values)
	if m < 1 {
		m = 1
	}
	disPenalty := disagreement / m * 50
	if disPenalty > 20 {
		disPenalty = 20
	}
	conf -= disPenalty

	return clamp(conf)
}

// dataQuality scores how densely the usable points cover their date span.
func dataQuality(points []models.TermPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	span := util.DaysBetween(points[0].Date, points[len(points)-1].Date) + 1
	if span < len(points) {
		span = len(points)
	}
	return 100 * float64(len(points)) / float64(span)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
