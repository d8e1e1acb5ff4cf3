package series

import (
	"context"
	"fmt"
	"sort"
	"time"

	"TrendDuel/internal/domain/models"
	domrepo "TrendDuel/internal/domain/repository"
	"TrendDuel/pkg/config"
	xhttp "TrendDuel/pkg/http"
	"TrendDuel/pkg/util"
)

// HTTPSeriesProvider reads comparison series from the upstream interest-data
// accessor over HTTP. Read-only; the accessor owns normalization.
type HTTPSeriesProvider struct {
	baseURL string
	apiKey  string
	client  *xhttp.Client
}

// NewHTTPSeriesProvider builds the provider from config.
func NewHTTPSeriesProvider(cfg *config.Config) *HTTPSeriesProvider {
	timeout := cfg.Series.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSeriesProvider{
		baseURL: cfg.Series.BaseURL,
		apiKey:  cfg.Series.APIKey,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

var _ domrepo.SeriesProvider = (*HTTPSeriesProvider)(nil)

type seriesPointWire struct {
	Date   string             `json:"date"`
	Values map[string]float64 `json:"values"`
}

type seriesResponseWire struct {
	Slug   string            `json:"slug"`
	TermA  string            `json:"term_a"`
	TermB  string            `json:"term_b"`
	Points []seriesPointWire `json:"points"`
}

// FetchSeries fetches the full available daily series for a comparison.
func (p *HTTPSeriesProvider) FetchSeries(ctx context.Context, slug, timeframe, geo string) (*models.ComparisonSeries, error) {
	if p.client == nil || p.baseURL == "" {
		return nil, fmt.Errorf("series http client not initialized")
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["X-Api-Key"] = p.apiKey
	}

	var wire seriesResponseWire
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     p.baseURL + "/v1/series",
		Headers: headers,
		QueryParams: map[string][]string{
			"slug":      {slug},
			"timeframe": {timeframe},
			"geo":       {geo},
		},
	}, &wire)
	if err != nil {
		return nil, fmt.Errorf("fetch series %s: %w", slug, err)
	}

	out := &models.ComparisonSeries{
		Slug:      slug,
		Timeframe: timeframe,
		Geo:       geo,
		TermA:     wire.TermA,
		TermB:     wire.TermB,
		Points:    make([]models.SeriesPoint, 0, len(wire.Points)),
	}
	for _, wp := range wire.Points {
		d, ok := util.ParseDay(wp.Date)
		if !ok {
			continue
		}
		out.Points = append(out.Points, models.SeriesPoint{Date: d, Values: wp.Values})
	}
	sort.Slice(out.Points, func(i, j int) bool { return out.Points[i].Date.Before(out.Points[j].Date) })

	return out, nil
}
