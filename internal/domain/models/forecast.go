package models

import "time"

// TrendLabel classifies the recent direction of a term's interest.
type TrendLabel string

const (
	TrendRising  TrendLabel = "rising"
	TrendFalling TrendLabel = "falling"
	TrendStable  TrendLabel = "stable"
)

// Warning flags attached to a term forecast.
const (
	WarningLowConfidence      = "low_confidence"
	WarningInsufficientData   = "insufficient_data"
	WarningHighVolatility     = "high_volatility"
	WarningDataQualityConcern = "data_quality_concern"
)

// SeriesPoint is one day of normalized interest values, keyed by term.
// Values are on the 0-100 scale produced upstream.
type SeriesPoint struct {
	Date   time.Time          `json:"date"`
	Values map[string]float64 `json:"values"`
}

// TermPoint is one day of a single term's interest.
type TermPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ComparisonSeries is the ordered (ascending date) history for one comparison.
type ComparisonSeries struct {
	Slug      string        `json:"slug"`
	Timeframe string        `json:"timeframe"`
	Geo       string        `json:"geo"`
	TermA     string        `json:"term_a"`
	TermB     string        `json:"term_b"`
	Points    []SeriesPoint `json:"points"`
}

// TermValues extracts one term's points in series order. Days where the term
// has no value are skipped.
func (s *ComparisonSeries) TermValues(term string) []TermPoint {
	out := make([]TermPoint, 0, len(s.Points))
	for _, p := range s.Points {
		v, ok := p.Values[term]
		if !ok {
			continue
		}
		out = append(out, TermPoint{Date: p.Date, Value: v})
	}
	return out
}

// ForecastPoint is one future day's prediction for one term. Immutable once
// computed; bands are nested and clamped to [0,100].
type ForecastPoint struct {
	Date    time.Time `json:"date" db:"date"`
	Term    string    `json:"term" db:"term"`
	Value   float64   `json:"value" db:"value"`
	Lower80 float64   `json:"lower80" db:"lower80"`
	Upper80 float64   `json:"upper80" db:"upper80"`
	Lower95 float64   `json:"lower95" db:"lower95"`
	Upper95 float64   `json:"upper95" db:"upper95"`
}

// TermForecast is the Prediction Engine output for a single term. ComputedAt
// is stamped by the pack builder so cache-served packs keep their computation
// time after the pack itself is gone.
type TermForecast struct {
	Term       string          `json:"term"`
	Points     []ForecastPoint `json:"points"`
	Trend      TrendLabel      `json:"trend"`
	Confidence float64         `json:"confidence"` // 0-100
	Volatility float64         `json:"volatility"` // normalized, 0-1+
	Warnings   []string        `json:"warnings,omitempty"`
	ComputedAt time.Time       `json:"computed_at"`
}
