package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TrendDuel/internal/domain/models"
	domsvc "TrendDuel/internal/domain/service"
)

// PackBuilder computes the full forecast pack for a comparison: both terms
// forecast over the same horizon, merged with the head-to-head summary.
type PackBuilder struct {
	forecaster  domsvc.Forecaster
	horizonDays int
}

func NewPackBuilder(forecaster domsvc.Forecaster, horizonDays int) *PackBuilder {
	if horizonDays <= 0 {
		horizonDays = 30
	}
	return &PackBuilder{forecaster: forecaster, horizonDays: horizonDays}
}

// Build runs the prediction engine for both terms concurrently. Either term
// failing fails the whole pack; a half-computed comparison is not servable.
func (b *PackBuilder) Build(ctx context.Context, series *models.ComparisonSeries, dataHash string) (*models.ForecastPack, error) {
	if series.TermA == "" || series.TermB == "" {
		return nil, fmt.Errorf("comparison %s missing term names", series.Slug)
	}

	type item struct {
		term string
		fc   *models.TermForecast
		err  error
	}
	ch := make(chan item, 2)
	var wg sync.WaitGroup

	for _, term := range []string{series.TermA, series.TermB} {
		wg.Add(1)
		go func(term string) {
			defer wg.Done()
			fc, err := b.forecaster.Predict(ctx, term, series.TermValues(term), b.horizonDays)
			ch <- item{term, fc, err}
		}(term)
	}

	go func() { wg.Wait(); close(ch) }()

	pack := &models.ForecastPack{
		Slug:        series.Slug,
		Timeframe:   series.Timeframe,
		Geo:         series.Geo,
		HorizonDays: b.horizonDays,
		DataHash:    dataHash,
		ComputedAt:  time.Now().UTC(),
	}

	for it := range ch {
		if it.err != nil {
			return nil, fmt.Errorf("forecast %q: %w", it.term, it.err)
		}
		if it.term == series.TermA {
			pack.TermA = *it.fc
		} else {
			pack.TermB = *it.fc
		}
	}

	pack.TermA.ComputedAt = pack.ComputedAt
	pack.TermB.ComputedAt = pack.ComputedAt
	pack.HeadToHead = headToHead(pack.TermA, pack.TermB)
	return pack, nil
}

// headToHead scores which term the forecast expects to stay higher: the share
// of horizon days where A's central estimate beats B's, ties split evenly.
func headToHead(a, b models.TermForecast) models.HeadToHead {
	n := len(a.Points)
	if len(b.Points) < n {
		n = len(b.Points)
	}
	if n == 0 {
		return models.HeadToHead{WinnerProbability: 0.5, PredictedWinner: a.Term}
	}

	var score float64
	for i := 0; i < n; i++ {
		switch {
		case a.Points[i].Value > b.Points[i].Value:
			score += 1
		case a.Points[i].Value == b.Points[i].Value:
			score += 0.5
		}
	}

	h := models.HeadToHead{WinnerProbability: score / float64(n)}
	if h.WinnerProbability >= 0.5 {
		h.PredictedWinner = a.Term
	} else {
		h.PredictedWinner = b.Term
	}
	return h
}
