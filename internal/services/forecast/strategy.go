package forecast

// Strategy is one forecasting method. Fitted returns in-sample one-step-ahead
// predictions aligned with the input (index i predicts values[i] from the
// points before it); Forecast returns horizon central estimates for steps
// 1..horizon after the last observation. The engine weighs strategies by
// their recent fit error, so neither method needs to be good everywhere.
type Strategy interface {
	Name() string

	// Applicable reports whether the strategy can run on n observations.
	Applicable(n int) bool

	Fitted(values []float64) []float64

	Forecast(values []float64, horizon int) []float64
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// tail returns the last n elements (or all of them).
func tail(values []float64, n int) []float64 {
	if n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}
