package models

import "time"

// HeadToHead summarizes which term the forecast expects to end higher.
// WinnerProbability is the share of future days where term A's central
// estimate exceeds term B's (ties split evenly); it is the only field the
// evaluation pass needs later.
type HeadToHead struct {
	WinnerProbability float64 `json:"winner_probability"` // P(term A higher), 0-1
	PredictedWinner   string  `json:"predicted_winner"`
}

// ForecastPack is the merged result for both compared terms. Pure compute
// output; persisting and caching happen elsewhere.
type ForecastPack struct {
	Slug        string       `json:"slug"`
	Timeframe   string       `json:"timeframe"`
	Geo         string       `json:"geo"`
	TermA       TermForecast `json:"term_a"`
	TermB       TermForecast `json:"term_b"`
	HeadToHead  HeadToHead   `json:"head_to_head"`
	HorizonDays int          `json:"horizon_days"`
	DataHash    string       `json:"data_hash"`
	ComputedAt  time.Time    `json:"computed_at"`
}
