package forecast

// holtStrategy is Holt's double exponential smoothing: a smoothed level plus a
// smoothed trend. Damps single-day spikes that throw the line fit off.
type holtStrategy struct {
	alpha float64 // level smoothing
	beta  float64 // trend smoothing
}

// NewHoltStrategy creates a double exponential smoothing strategy.
func NewHoltStrategy(alpha, beta float64) Strategy {
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.4
	}
	if beta <= 0 || beta >= 1 {
		beta = 0.2
	}
	return &holtStrategy{alpha: alpha, beta: beta}
}

func (s *holtStrategy) Name() string { return "holt" }

func (s *holtStrategy) Applicable(n int) bool { return n >= 2 }

func (s *holtStrategy) Fitted(values []float64) []float64 {
	fitted := make([]float64, len(values))
	if len(values) == 0 {
		return fitted
	}

	level := values[0]
	trend := 0.0
	if len(values) > 1 {
		trend = values[1] - values[0]
	}

	fitted[0] = values[0]
	for i := 1; i < len(values); i++ {
		fitted[i] = level + trend
		prevLevel := level
		level = s.alpha*values[i] + (1-s.alpha)*(level+trend)
		trend = s.beta*(level-prevLevel) + (1-s.beta)*trend
	}
	return fitted
}

func (s *holtStrategy) Forecast(values []float64, horizon int) []float64 {
	out := make([]float64, horizon)
	if len(values) == 0 {
		return out
	}

	level := values[0]
	trend := 0.0
	if len(values) > 1 {
		trend = values[1] - values[0]
	}
	for i := 1; i < len(values); i++ {
		prevLevel := level
		level = s.alpha*values[i] + (1-s.alpha)*(level+trend)
		trend = s.beta*(level-prevLevel) + (1-s.beta)*trend
	}

	for h := 1; h <= horizon; h++ {
		out[h-1] = level + float64(h)*trend
	}
	return out
}
