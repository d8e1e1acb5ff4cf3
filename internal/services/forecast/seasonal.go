package forecast

// seasonalStrategy layers a weekly profile on top of the recent mean: the
// forecast for a step is the base level plus the average deviation seen on
// that weekday position. Needs at least two full weeks to say anything.
type seasonalStrategy struct {
	period int
}

// NewSeasonalStrategy creates a weekly seasonal adjustment strategy.
func NewSeasonalStrategy() Strategy {
	return &seasonalStrategy{period: 7}
}

func (s *seasonalStrategy) Name() string { return "seasonal" }

func (s *seasonalStrategy) Applicable(n int) bool { return n >= 2*s.period }

func (s *seasonalStrategy) Fitted(values []float64) []float64 {
	fitted := make([]float64, len(values))
	for i, v := range values {
		if i < 2*s.period {
			fitted[i] = v
			continue
		}
		base := mean(tail(values[:i], 2*s.period))
		fitted[i] = base + s.offsetAt(values[:i], i%s.period)
	}
	return fitted
}

func (s *seasonalStrategy) Forecast(values []float64, horizon int) []float64 {
	out := make([]float64, horizon)
	base := mean(tail(values, 2*s.period))
	for h := 1; h <= horizon; h++ {
		out[h-1] = base + s.offsetAt(values, (len(values)+h-1)%s.period)
	}
	return out
}

// offsetAt is the mean deviation from the local base for one weekday slot.
func (s *seasonalStrategy) offsetAt(values []float64, slot int) float64 {
	base := mean(tail(values, 2*s.period))
	var sum float64
	var count int
	for i := slot; i < len(values); i += s.period {
		sum += values[i] - base
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
