package forecast

// trendStrategy extrapolates a least-squares line fitted over the recent
// window. Reacts fast to sustained moves, overshoots on noise; the blend
// weighting sorts that out.
type trendStrategy struct {
	window int
}

// NewTrendStrategy creates a linear trend extrapolation strategy.
func NewTrendStrategy(window int) Strategy {
	if window <= 1 {
		window = 28
	}
	return &trendStrategy{window: window}
}

func (s *trendStrategy) Name() string { return "trend" }

func (s *trendStrategy) Applicable(n int) bool { return n >= 2 }

func (s *trendStrategy) Fitted(values []float64) []float64 {
	fitted := make([]float64, len(values))
	if len(values) == 0 {
		return fitted
	}
	fitted[0] = values[0]
	for i := 1; i < len(values); i++ {
		slope, intercept := fitLine(tail(values[:i], s.window))
		// next step beyond the fitted window
		w := i
		if w > s.window {
			w = s.window
		}
		fitted[i] = intercept + slope*float64(w)
	}
	return fitted
}

func (s *trendStrategy) Forecast(values []float64, horizon int) []float64 {
	out := make([]float64, horizon)
	window := tail(values, s.window)
	slope, intercept := fitLine(window)
	n := float64(len(window))
	for h := 1; h <= horizon; h++ {
		out[h-1] = intercept + slope*(n-1+float64(h))
	}
	return out
}

// fitLine computes least-squares slope and intercept over indices 0..n-1.
func fitLine(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	if n == 1 {
		return 0, values[0]
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
