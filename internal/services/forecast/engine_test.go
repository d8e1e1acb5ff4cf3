package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"TrendDuel/internal/domain/models"
)

func makePoints(values []float64) []models.TermPoint {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.TermPoint, len(values))
	for i, v := range values {
		out[i] = models.TermPoint{Date: start.AddDate(0, 0, i), Value: v}
	}
	return out
}

func constantSeries(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func linearSeries(n int, from, to float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + (to-from)*float64(i)/float64(n-1)
	}
	return out
}

func TestPredictInsufficientData(t *testing.T) {
	e := NewEngine()
	_, err := e.Predict(context.Background(), "coffee", makePoints(constantSeries(5, 50)), 30)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestPredictDropsUnusableValues(t *testing.T) {
	values := constantSeries(10, 50)
	values[2] = math.NaN()
	values[5] = 150
	values[7] = -3
	// 7 usable points remain, exactly at the minimum
	e := NewEngine()
	tf, err := e.Predict(context.Background(), "coffee", makePoints(values), 10)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(tf.Points) != 10 {
		t.Fatalf("expected 10 forecast points, got %d", len(tf.Points))
	}

	values[8] = math.Inf(1)
	if _, err := e.Predict(context.Background(), "coffee", makePoints(values), 10); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("6 usable points should be insufficient, got %v", err)
	}
}

func TestPredictBoundsOrdering(t *testing.T) {
	series := [][]float64{
		constantSeries(90, 50),
		linearSeries(90, 10, 90),
		linearSeries(90, 95, 99), // near the upper clamp
		linearSeries(30, 40, 2),  // falling toward the lower clamp
	}

	e := NewEngine()
	for i, values := range series {
		tf, err := e.Predict(context.Background(), "coffee", makePoints(values), 30)
		if err != nil {
			t.Fatalf("series %d: %v", i, err)
		}
		for _, p := range tf.Points {
			if !(0 <= p.Lower95 && p.Lower95 <= p.Lower80 && p.Lower80 <= p.Value &&
				p.Value <= p.Upper80 && p.Upper80 <= p.Upper95 && p.Upper95 <= 100) {
				t.Fatalf("series %d date %s: band ordering violated: %+v", i, p.Date.Format("2006-01-02"), p)
			}
		}
	}
}

func TestPredictRisingScenario(t *testing.T) {
	// Linear climb over 90 days: rising label, and the next week's average
	// forecast above the last observed value.
	values := linearSeries(90, 10, 90)
	e := NewEngine()
	tf, err := e.Predict(context.Background(), "coffee", makePoints(values), 30)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	if tf.Trend != models.TrendRising {
		t.Fatalf("expected rising trend, got %s", tf.Trend)
	}

	var week float64
	for _, p := range tf.Points[:7] {
		week += p.Value
	}
	week /= 7
	last := values[len(values)-1]
	if week <= last {
		t.Fatalf("next-7-day average %.2f should exceed last observed %.2f", week, last)
	}
}

func TestPredictRisingAtUpperClamp(t *testing.T) {
	// A climb already touching the scale ceiling: the extrapolation wants to
	// keep rising but every central must stay clamped at 100 while holding
	// the level the series reached.
	values := linearSeries(90, 95, 100)
	e := NewEngine()
	tf, err := e.Predict(context.Background(), "coffee", makePoints(values), 30)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	for h, p := range tf.Points {
		if p.Value > 100 {
			t.Fatalf("h=%d: central %.4f escaped the upper clamp", h+1, p.Value)
		}
		if p.Value < 95 {
			t.Fatalf("h=%d: central %.4f fell below the series floor", h+1, p.Value)
		}
	}
}

func TestPredictTrendLabels(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   models.TrendLabel
	}{
		{"flat", constantSeries(60, 50), models.TrendStable},
		{"rising", linearSeries(60, 20, 80), models.TrendRising},
		{"falling", linearSeries(60, 80, 20), models.TrendFalling},
	}

	e := NewEngine()
	for _, tt := range tests {
		tf, err := e.Predict(context.Background(), "coffee", makePoints(tt.values), 14)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if tf.Trend != tt.want {
			t.Fatalf("%s: expected %s, got %s", tt.name, tt.want, tf.Trend)
		}
	}
}

func TestPredictIntervalsWidenWithHorizon(t *testing.T) {
	// Flat mid-range series keeps every band inside [0,100], so widths are
	// unclamped and must grow with horizon distance.
	e := NewEngine()
	tf, err := e.Predict(context.Background(), "coffee", makePoints(constantSeries(90, 50)), 30)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	prev80, prev95 := 0.0, 0.0
	for h, p := range tf.Points {
		w80 := p.Upper80 - p.Lower80
		w95 := p.Upper95 - p.Lower95
		if w80 <= 0 || w95 <= 0 {
			t.Fatalf("h=%d: zero-width band", h+1)
		}
		if w80 < prev80 || w95 < prev95 {
			t.Fatalf("h=%d: interval width shrank (80: %.4f<%.4f, 95: %.4f<%.4f)", h+1, w80, prev80, w95, prev95)
		}
		prev80, prev95 = w80, w95
	}
}

func TestPredictWarnings(t *testing.T) {
	e := NewEngine()

	short, err := e.Predict(context.Background(), "coffee", makePoints(constantSeries(10, 50)), 14)
	if err != nil {
		t.Fatalf("short predict: %v", err)
	}
	if !hasWarning(short.Warnings, models.WarningInsufficientData) {
		t.Fatalf("10-point series should warn insufficient_data, got %v", short.Warnings)
	}

	// Alternating extremes: normalized volatility far above the threshold.
	volatile := make([]float64, 60)
	for i := range volatile {
		if i%2 == 0 {
			volatile[i] = 10
		} else {
			volatile[i] = 90
		}
	}
	vf, err := e.Predict(context.Background(), "coffee", makePoints(volatile), 14)
	if err != nil {
		t.Fatalf("volatile predict: %v", err)
	}
	if !hasWarning(vf.Warnings, models.WarningHighVolatility) {
		t.Fatalf("alternating series should warn high_volatility, got %v", vf.Warnings)
	}
	if vf.Confidence >= 70 {
		t.Fatalf("volatile series confidence %.1f should be below 70", vf.Confidence)
	}
	if !hasWarning(vf.Warnings, models.WarningLowConfidence) {
		t.Fatalf("volatile series should warn low_confidence, got %v", vf.Warnings)
	}

	calm, err := e.Predict(context.Background(), "coffee", makePoints(constantSeries(90, 50)), 14)
	if err != nil {
		t.Fatalf("calm predict: %v", err)
	}
	if len(calm.Warnings) != 0 {
		t.Fatalf("long flat series should carry no warnings, got %v", calm.Warnings)
	}
	if calm.Confidence < 70 || calm.Confidence > 100 {
		t.Fatalf("calm confidence out of expected range: %.1f", calm.Confidence)
	}
}

func TestPredictSparseDataQualityWarning(t *testing.T) {
	// 20 points scattered across 60 days: density well under the threshold.
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.TermPoint, 20)
	for i := range points {
		points[i] = models.TermPoint{Date: start.AddDate(0, 0, i*3), Value: 50}
	}

	e := NewEngine()
	tf, err := e.Predict(context.Background(), "coffee", points, 14)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !hasWarning(tf.Warnings, models.WarningDataQualityConcern) {
		t.Fatalf("sparse series should warn data_quality_concern, got %v", tf.Warnings)
	}
}

func TestPredictDeterministic(t *testing.T) {
	e := NewEngine()
	a, err := e.Predict(context.Background(), "coffee", makePoints(linearSeries(45, 30, 70)), 30)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	b, err := e.Predict(context.Background(), "coffee", makePoints(linearSeries(45, 30, 70)), 30)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for i := range a.Points {
		if a.Points[i].Value != b.Points[i].Value {
			t.Fatalf("h=%d: non-deterministic forecast %.6f vs %.6f", i+1, a.Points[i].Value, b.Points[i].Value)
		}
	}
	if a.Confidence != b.Confidence {
		t.Fatalf("non-deterministic confidence")
	}
}

func hasWarning(warnings []string, w string) bool {
	for _, x := range warnings {
		if x == w {
			return true
		}
	}
	return false
}
