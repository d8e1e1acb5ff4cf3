package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"TrendDuel/internal/domain/models"
	domrepo "TrendDuel/internal/domain/repository"
	"TrendDuel/pkg/cache"
	"TrendDuel/pkg/config"
	"TrendDuel/pkg/logger"
	"TrendDuel/pkg/util"
)

// TrustPeriodAllTime is the single trust-stats row the rollup maintains.
const TrustPeriodAllTime = "all-time"

// evalBatchLockKey guards against overlapping evaluation batches. The batch
// is idempotent, so a lost lock costs duplicate work, not correctness; the
// TTL frees the slot if a holder dies mid-batch.
const (
	evalBatchLockKey = "evaluate:batch-lock"
	evalBatchLockTTL = 10 * time.Minute
)

// Evaluator scores completed forecast runs against realized data and keeps
// the trust statistics current. Invoked as a scheduled bounded batch.
type Evaluator struct {
	runs    domrepo.RunStore
	evals   domrepo.EvaluationStore
	cache   cache.Service
	series  domrepo.SeriesProvider
	events  domrepo.EventPublisher
	metrics domrepo.Metrics
	log     *logger.Logger

	batchSize  int
	bufferDays int
}

func NewEvaluator(
	cfg *config.Config,
	runs domrepo.RunStore,
	evals domrepo.EvaluationStore,
	c cache.Service,
	series domrepo.SeriesProvider,
	events domrepo.EventPublisher,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Evaluator {
	return &Evaluator{
		runs:       runs,
		evals:      evals,
		cache:      c,
		series:     series,
		events:     events,
		metrics:    metrics,
		log:        log,
		batchSize:  cfg.Evaluation.BatchSize,
		bufferDays: cfg.Evaluation.BufferDays,
	}
}

// RunBatch evaluates one bounded batch of eligible runs, then fully recomputes
// the trust stats. Per-run failures are logged and skipped; only a store
// failure before the loop aborts the batch.
func (e *Evaluator) RunBatch(ctx context.Context) (*models.EvaluateResult, error) {
	now := time.Now().UTC()

	locked, err := e.cache.TryLock(ctx, evalBatchLockKey, evalBatchLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire evaluation lock: %w", err)
	}
	if !locked {
		e.log.Info("evaluation batch already running, skipping")
		return &models.EvaluateResult{}, nil
	}
	defer func() {
		if err := e.cache.Unlock(ctx, evalBatchLockKey); err != nil {
			e.log.Warn("release evaluation lock", logger.Error(err))
		}
	}()

	eligible, err := e.runs.FindEvaluable(ctx, now, e.bufferDays, e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("find evaluable runs: %w", err)
	}

	res := &models.EvaluateResult{TotalFound: len(eligible)}
	for i := range eligible {
		run := &eligible[i]
		scored, err := e.evaluateRun(ctx, run, now)
		if err != nil {
			e.metrics.RecordError("evaluate_run")
			e.log.Error("evaluate run",
				logger.Int64("run_id", run.ID),
				logger.String("slug", run.Slug),
				logger.Error(err))
			continue
		}
		if scored {
			res.Evaluated++
			e.metrics.RecordRunEvaluated()
		}
	}

	if err := e.recomputeTrust(ctx, now); err != nil {
		e.log.Error("recompute trust stats", logger.Error(err))
	}

	if e.events != nil && res.TotalFound > 0 {
		ev := domrepo.JobEvent{Kind: "evaluation_batch", Evaluated: res.Evaluated, At: now}
		if err := e.events.PublishJobEvent(ctx, ev); err != nil {
			e.log.Warn("publish evaluation event", logger.Error(err))
		}
	}

	e.log.Info("evaluation batch done",
		logger.Int("found", res.TotalFound),
		logger.Int("evaluated", res.Evaluated))
	return res, nil
}

// evaluateRun scores a single run. Returns true when a new evaluation record
// was written. Runs with no matched realized dates are marked evaluated but
// get no record.
func (e *Evaluator) evaluateRun(ctx context.Context, run *models.ForecastRun, now time.Time) (bool, error) {
	exists, err := e.evals.HasEvaluation(ctx, run.ID)
	if err != nil {
		return false, fmt.Errorf("check evaluation: %w", err)
	}
	if exists {
		// A crash between CreateEvaluation and MarkEvaluated leaves the run
		// reselectable; finish the marking and move on.
		if err := e.runs.MarkEvaluated(ctx, run.ID, now); err != nil {
			return false, fmt.Errorf("mark evaluated: %w", err)
		}
		return false, nil
	}

	points, err := e.runs.PointsForRun(ctx, run.ID)
	if err != nil {
		return false, fmt.Errorf("load points: %w", err)
	}

	realized, err := e.series.FetchSeries(ctx, run.Slug, run.Timeframe, run.Geo)
	if err != nil {
		return false, fmt.Errorf("fetch realized series: %w", err)
	}
	byDay := realizedByDay(realized)

	scoreA := scoreTerm(termPoints(points, run.TermA), run.TermA, byDay)
	scoreB := scoreTerm(termPoints(points, run.TermB), run.TermB, byDay)

	if scoreA.matched == 0 && scoreB.matched == 0 {
		// Nothing realized to compare against; no zero record, but the run is
		// done as far as evaluation goes.
		if err := e.runs.MarkEvaluated(ctx, run.ID, now); err != nil {
			return false, fmt.Errorf("mark evaluated: %w", err)
		}
		e.log.Warn("no realized data for run",
			logger.Int64("run_id", run.ID),
			logger.String("slug", run.Slug))
		return false, nil
	}

	eval := &models.ForecastEvaluation{
		ForecastRunID:      run.ID,
		WinnerCorrect:      run.PredictedWinner() == realizedWinner(run, scoreA, scoreB),
		DirectionAccuracyA: scoreA.directionAccuracy(),
		DirectionAccuracyB: scoreB.directionAccuracy(),
		IntervalHitRate80:  crossTermAvg(scoreA, scoreB, termScore.hitRate80),
		IntervalHitRate95:  crossTermAvg(scoreA, scoreB, termScore.hitRate95),
		MAE:                crossTermAvg(scoreA, scoreB, termScore.mae),
		MAPE:               crossTermAvg(scoreA, scoreB, termScore.mape),
		EvaluatedPoints:    scoreA.matched + scoreB.matched,
		CreatedAt:          now,
	}

	if err := e.evals.CreateEvaluation(ctx, eval); err != nil {
		return false, fmt.Errorf("create evaluation: %w", err)
	}
	if err := e.runs.MarkEvaluated(ctx, run.ID, now); err != nil {
		return false, fmt.Errorf("mark evaluated: %w", err)
	}
	return true, nil
}

// recomputeTrust rebuilds the trust stats from every persisted evaluation.
// Full recomputation keeps repeated passes idempotent; an incremental counter
// would drift.
func (e *Evaluator) recomputeTrust(ctx context.Context, now time.Time) error {
	records, err := e.evals.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list evaluations: %w", err)
	}

	stats := &models.ForecastTrustStats{
		Period:         TrustPeriodAllTime,
		TotalEvaluated: len(records),
		UpdatedAt:      now,
	}

	if len(records) > 0 {
		var winners int
		var coverage float64
		var recentTotal, recentWinners int
		cutoff := now.AddDate(0, 0, -90)

		for _, r := range records {
			if r.WinnerCorrect {
				winners++
			}
			coverage += (r.IntervalHitRate80 + r.IntervalHitRate95) / 2
			if r.RunComputedAt.After(cutoff) {
				recentTotal++
				if r.WinnerCorrect {
					recentWinners++
				}
			}
		}

		stats.WinnerAccuracyPercent = 100 * float64(winners) / float64(len(records))
		stats.IntervalCoveragePercent = coverage / float64(len(records))
		if recentTotal > 0 {
			stats.Last90DaysAccuracy = 100 * float64(recentWinners) / float64(recentTotal)
		}
	}

	return e.evals.UpsertTrustStats(ctx, stats)
}

// termScore accumulates one term's comparison against realized data.
type termScore struct {
	matched      int
	absErrSum    float64
	pctErrSum    float64
	hits80       int
	hits95       int
	dirTotal     int
	dirCorrect   int
	finalValue   float64 // realized value on the last matched date
	hasRealized  bool
}

func (s termScore) mae() (float64, bool) {
	if s.matched == 0 {
		return 0, false
	}
	return s.absErrSum / float64(s.matched), true
}

func (s termScore) mape() (float64, bool) {
	if s.matched == 0 {
		return 0, false
	}
	return 100 * s.pctErrSum / float64(s.matched), true
}

func (s termScore) hitRate80() (float64, bool) {
	if s.matched == 0 {
		return 0, false
	}
	return 100 * float64(s.hits80) / float64(s.matched), true
}

func (s termScore) hitRate95() (float64, bool) {
	if s.matched == 0 {
		return 0, false
	}
	return 100 * float64(s.hits95) / float64(s.matched), true
}

// directionAccuracy is nil when no consecutive matched pair exists.
func (s termScore) directionAccuracy() *float64 {
	if s.dirTotal == 0 {
		return nil
	}
	v := 100 * float64(s.dirCorrect) / float64(s.dirTotal)
	return &v
}

// scoreTerm walks one term's forecast points in date order and accumulates
// errors, band hits and day-over-day direction agreement against realized
// values.
func scoreTerm(points []models.ForecastPoint, term string, byDay map[string]map[string]float64) termScore {
	var s termScore
	prevMatched := false
	var prevForecast, prevRealized float64

	for _, p := range points {
		day, ok := byDay[util.FormatDay(p.Date)]
		if !ok {
			prevMatched = false
			continue
		}
		actual, ok := day[term]
		if !ok {
			prevMatched = false
			continue
		}

		s.matched++
		s.finalValue = actual
		s.hasRealized = true

		diff := math.Abs(actual - p.Value)
		s.absErrSum += diff
		denom := math.Abs(actual)
		if denom < 1 {
			denom = 1
		}
		s.pctErrSum += diff / denom

		if actual >= p.Lower80 && actual <= p.Upper80 {
			s.hits80++
		}
		if actual >= p.Lower95 && actual <= p.Upper95 {
			s.hits95++
		}

		if prevMatched {
			s.dirTotal++
			if sign(p.Value-prevForecast) == sign(actual-prevRealized) {
				s.dirCorrect++
			}
		}
		prevMatched = true
		prevForecast = p.Value
		prevRealized = actual
	}
	return s
}

// crossTermAvg averages one metric across the two terms, falling back to the
// single term with matches when the other has none.
func crossTermAvg(a, b termScore, metric func(termScore) (float64, bool)) float64 {
	va, oka := metric(a)
	vb, okb := metric(b)
	switch {
	case oka && okb:
		return (va + vb) / 2
	case oka:
		return va
	case okb:
		return vb
	default:
		return 0
	}
}

// realizedWinner is the term whose last realized value within the horizon is
// higher. A term with no realized data cannot win; ties go to term A, matching
// the predicted-winner tie-break.
func realizedWinner(run *models.ForecastRun, a, b termScore) string {
	switch {
	case a.hasRealized && b.hasRealized:
		if a.finalValue >= b.finalValue {
			return run.TermA
		}
		return run.TermB
	case a.hasRealized:
		return run.TermA
	default:
		return run.TermB
	}
}

func termPoints(points []models.ForecastPoint, term string) []models.ForecastPoint {
	out := make([]models.ForecastPoint, 0, len(points))
	for _, p := range points {
		if p.Term == term {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func realizedByDay(series *models.ComparisonSeries) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(series.Points))
	for _, p := range series.Points {
		out[util.FormatDay(p.Date)] = p.Values
	}
	return out
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
