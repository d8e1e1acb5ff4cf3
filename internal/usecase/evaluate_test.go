package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"TrendDuel/internal/domain/models"
	"TrendDuel/pkg/cache"
)

type evalEnv struct {
	evaluator *Evaluator
	runs      *memRunStore
	evals     *memEvalStore
	series    *fakeSeries
	events    *recordPublisher
	cache     *cache.MemoryCache
}

func newEvalEnv(t *testing.T) *evalEnv {
	t.Helper()
	runs := newMemRunStore()
	env := &evalEnv{
		runs:   runs,
		evals:  newMemEvalStore(runs),
		series: newFakeSeries(),
		events: &recordPublisher{},
		cache:  cache.NewMemoryCache(),
	}
	env.evaluator = NewEvaluator(testConfig(), env.runs, env.evals, env.cache,
		env.series, env.events, nopMetrics{}, testLogger())
	return env
}

// seedRun stores a run computed daysAgo days ago with the given horizon, with
// flat centrals and fixed bands for both terms.
func (env *evalEnv) seedRun(t *testing.T, daysAgo, horizon int, winnerProb float64) *models.ForecastRun {
	t.Helper()
	computed := time.Now().UTC().AddDate(0, 0, -daysAgo)
	run := &models.ForecastRun{
		Slug: "coffee-vs-tea", Timeframe: "12m", Geo: "GLOBAL",
		TermA: "coffee", TermB: "tea",
		DataHash: "hash", HorizonDays: horizon,
		WinnerProbability: winnerProb, ComputedAt: computed,
	}
	var points []models.ForecastPoint
	for h := 1; h <= horizon; h++ {
		date := computed.Truncate(24 * time.Hour).AddDate(0, 0, h)
		for _, term := range []string{"coffee", "tea"} {
			points = append(points, models.ForecastPoint{
				Date: date, Term: term, Value: 55,
				Lower80: 45, Upper80: 65, Lower95: 40, Upper95: 70,
			})
		}
	}
	if err := env.runs.CreateRun(context.Background(), run, points); err != nil {
		t.Fatalf("seed run: %v", err)
	}
	return run
}

// seedRealized publishes realized values for every day the run's points span.
func (env *evalEnv) seedRealized(run *models.ForecastRun, coffee, tea func(h int) float64) {
	s := &models.ComparisonSeries{
		Slug: run.Slug, Timeframe: run.Timeframe, Geo: run.Geo,
		TermA: run.TermA, TermB: run.TermB,
	}
	base := run.ComputedAt.Truncate(24 * time.Hour)
	for h := 1; h <= run.HorizonDays; h++ {
		s.Points = append(s.Points, models.SeriesPoint{
			Date:   base.AddDate(0, 0, h),
			Values: map[string]float64{"coffee": coffee(h), "tea": tea(h)},
		})
	}
	env.series.put(s)
}

func TestEvaluateEligibilityAndIdempotence(t *testing.T) {
	env := newEvalEnv(t)
	ctx := context.Background()

	// Old enough to evaluate (40 days ago, 28-day horizon, 2-day buffer).
	old := env.seedRun(t, 40, 28, 0.8)
	env.seedRealized(old, func(int) float64 { return 60 }, func(int) float64 { return 50 })

	// Too recent: horizon has not elapsed.
	recent := env.seedRun(t, 10, 28, 0.8)

	res, err := env.evaluator.RunBatch(ctx)
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if res.TotalFound != 1 || res.Evaluated != 1 {
		t.Fatalf("expected 1/1, got %+v", res)
	}

	if env.runs.get(old.ID).EvaluatedAt == nil {
		t.Fatalf("evaluated run not marked")
	}
	if env.runs.get(recent.ID).EvaluatedAt != nil {
		t.Fatalf("recent run must not be touched")
	}
	if ok, _ := env.evals.HasEvaluation(ctx, old.ID); !ok {
		t.Fatalf("evaluation record missing")
	}

	// A second pass finds nothing and writes nothing.
	res, err = env.evaluator.RunBatch(ctx)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if res.TotalFound != 0 || res.Evaluated != 0 {
		t.Fatalf("second pass should be empty, got %+v", res)
	}
	if all, _ := env.evals.ListAll(ctx); len(all) != 1 {
		t.Fatalf("expected exactly one evaluation, got %d", len(all))
	}
}

func TestEvaluateExistingEvaluationShortCircuits(t *testing.T) {
	env := newEvalEnv(t)
	ctx := context.Background()

	run := env.seedRun(t, 40, 28, 0.8)
	env.seedRealized(run, func(int) float64 { return 60 }, func(int) float64 { return 50 })

	if _, err := env.evaluator.RunBatch(ctx); err != nil {
		t.Fatalf("first batch: %v", err)
	}

	// Simulate a crash that wrote the evaluation but lost the marking.
	env.runs.mu.Lock()
	env.runs.runs[0].EvaluatedAt = nil
	env.runs.mu.Unlock()

	res, err := env.evaluator.RunBatch(ctx)
	if err != nil {
		t.Fatalf("recovery batch: %v", err)
	}
	if res.Evaluated != 0 {
		t.Fatalf("short-circuit must not rescore, got %+v", res)
	}
	if env.runs.get(run.ID).EvaluatedAt == nil {
		t.Fatalf("recovery batch must finish the marking")
	}
	if all, _ := env.evals.ListAll(ctx); len(all) != 1 {
		t.Fatalf("expected one evaluation after recovery, got %d", len(all))
	}
}

func TestEvaluateScoring(t *testing.T) {
	env := newEvalEnv(t)
	ctx := context.Background()

	// Centrals at 55, bands [45,65]/[40,70]. Realized alternating 50/60:
	// every error is 5, every value inside both bands.
	run := env.seedRun(t, 40, 28, 0.8)
	realized := func(h int) float64 {
		if h%2 == 1 {
			return 50
		}
		return 60
	}
	env.seedRealized(run, realized, realized)

	if _, err := env.evaluator.RunBatch(ctx); err != nil {
		t.Fatalf("run batch: %v", err)
	}

	all, _ := env.evals.ListAll(ctx)
	if len(all) != 1 {
		t.Fatalf("expected one evaluation, got %d", len(all))
	}
	eval := all[0]

	if eval.MAE != 5 {
		t.Fatalf("expected MAE 5, got %.4f", eval.MAE)
	}
	if eval.IntervalHitRate80 != 100 || eval.IntervalHitRate95 != 100 {
		t.Fatalf("expected full band coverage, got %.1f/%.1f", eval.IntervalHitRate80, eval.IntervalHitRate95)
	}
	if eval.EvaluatedPoints != 2*run.HorizonDays {
		t.Fatalf("expected %d evaluated points, got %d", 2*run.HorizonDays, eval.EvaluatedPoints)
	}

	// MAPE: alternating 5/50 and 5/60 errors.
	wantMAPE := 100 * (5.0/50 + 5.0/60) / 2
	if math.Abs(eval.MAPE-wantMAPE) > 0.01 {
		t.Fatalf("expected MAPE %.4f, got %.4f", wantMAPE, eval.MAPE)
	}

	// Realized final values are equal, so the tie goes to term A; the run
	// predicted term A (probability 0.8).
	if !eval.WinnerCorrect {
		t.Fatalf("expected winner correct on tie-to-A")
	}
}

func TestEvaluateIntervalSanity(t *testing.T) {
	env := newEvalEnv(t)
	ctx := context.Background()

	// Realized data equal to the central forecast: both hit rates 100, MAE 0.
	run := env.seedRun(t, 40, 28, 0.3)
	env.seedRealized(run, func(int) float64 { return 55 }, func(int) float64 { return 55 })

	if _, err := env.evaluator.RunBatch(ctx); err != nil {
		t.Fatalf("run batch: %v", err)
	}

	all, _ := env.evals.ListAll(ctx)
	eval := all[0]
	if eval.MAE != 0 || eval.IntervalHitRate80 != 100 || eval.IntervalHitRate95 != 100 {
		t.Fatalf("exact realized data should score perfectly, got %+v", eval.ForecastEvaluation)
	}
}

func TestEvaluateWinnerCorrectness(t *testing.T) {
	tests := []struct {
		name        string
		winnerProb  float64
		coffeeFinal float64
		teaFinal    float64
		want        bool
	}{
		{"predicted A, A wins", 0.8, 70, 30, true},
		{"predicted A, B wins", 0.8, 30, 70, false},
		{"predicted B, B wins", 0.2, 30, 70, true},
		{"predicted B, A wins", 0.2, 70, 30, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEvalEnv(t)
			run := env.seedRun(t, 40, 28, tt.winnerProb)
			env.seedRealized(run,
				func(int) float64 { return tt.coffeeFinal },
				func(int) float64 { return tt.teaFinal })

			if _, err := env.evaluator.RunBatch(context.Background()); err != nil {
				t.Fatalf("run batch: %v", err)
			}
			all, _ := env.evals.ListAll(context.Background())
			if got := all[0].WinnerCorrect; got != tt.want {
				t.Fatalf("winner correct = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateDirectionAccuracy(t *testing.T) {
	env := newEvalEnv(t)
	ctx := context.Background()

	// Flat centrals vs rising realized coffee: forecast direction is flat
	// (zero) while realized rises, so coffee's accuracy is 0. Flat realized
	// tea agrees with the flat forecast on every step.
	run := env.seedRun(t, 40, 28, 0.8)
	env.seedRealized(run,
		func(h int) float64 { return 30 + float64(h) },
		func(int) float64 { return 55 })

	if _, err := env.evaluator.RunBatch(ctx); err != nil {
		t.Fatalf("run batch: %v", err)
	}

	all, _ := env.evals.ListAll(ctx)
	eval := all[0]
	if eval.DirectionAccuracyA == nil || *eval.DirectionAccuracyA != 0 {
		t.Fatalf("coffee direction accuracy should be 0, got %v", eval.DirectionAccuracyA)
	}
	if eval.DirectionAccuracyB == nil || *eval.DirectionAccuracyB != 100 {
		t.Fatalf("tea direction accuracy should be 100, got %v", eval.DirectionAccuracyB)
	}
}

func TestEvaluateSkipRuleNoRealizedData(t *testing.T) {
	env := newEvalEnv(t)
	ctx := context.Background()

	run := env.seedRun(t, 40, 28, 0.8)
	// Realized series exists but covers none of the forecast dates.
	env.series.put(&models.ComparisonSeries{
		Slug: run.Slug, Timeframe: run.Timeframe, Geo: run.Geo,
		TermA: run.TermA, TermB: run.TermB,
	})

	res, err := env.evaluator.RunBatch(ctx)
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if res.TotalFound != 1 || res.Evaluated != 0 {
		t.Fatalf("expected found without scoring, got %+v", res)
	}
	if all, _ := env.evals.ListAll(ctx); len(all) != 0 {
		t.Fatalf("skip rule must write no record, got %d", len(all))
	}
	// Marked anyway so the batch does not reselect it forever.
	if env.runs.get(run.ID).EvaluatedAt == nil {
		t.Fatalf("skipped run should still be marked evaluated")
	}
}

func TestEvaluateSingleTermFallback(t *testing.T) {
	env := newEvalEnv(t)
	ctx := context.Background()

	// Only coffee has realized values; the combined scalars must equal
	// coffee's own rather than averaging with an empty term.
	run := env.seedRun(t, 40, 28, 0.8)
	s := &models.ComparisonSeries{
		Slug: run.Slug, Timeframe: run.Timeframe, Geo: run.Geo,
		TermA: run.TermA, TermB: run.TermB,
	}
	base := run.ComputedAt.Truncate(24 * time.Hour)
	for h := 1; h <= run.HorizonDays; h++ {
		s.Points = append(s.Points, models.SeriesPoint{
			Date:   base.AddDate(0, 0, h),
			Values: map[string]float64{"coffee": 52},
		})
	}
	env.series.put(s)

	if _, err := env.evaluator.RunBatch(ctx); err != nil {
		t.Fatalf("run batch: %v", err)
	}

	all, _ := env.evals.ListAll(ctx)
	eval := all[0]
	if eval.MAE != 3 {
		t.Fatalf("expected coffee-only MAE 3, got %.4f", eval.MAE)
	}
	if eval.DirectionAccuracyB != nil {
		t.Fatalf("tea has no data, direction accuracy must be nil")
	}
	if eval.EvaluatedPoints != run.HorizonDays {
		t.Fatalf("expected %d points, got %d", run.HorizonDays, eval.EvaluatedPoints)
	}
	// Only coffee realized anything, so coffee is the realized winner and the
	// run predicted coffee.
	if !eval.WinnerCorrect {
		t.Fatalf("expected winner correct")
	}
}

func TestEvaluateTrustRollup(t *testing.T) {
	env := newEvalEnv(t)
	ctx := context.Background()

	// Two runs: one correct winner call, one wrong.
	right := env.seedRun(t, 40, 28, 0.8)
	env.seedRealized(right, func(int) float64 { return 70 }, func(int) float64 { return 30 })

	wrong := &models.ForecastRun{
		Slug: "dogs-vs-cats", Timeframe: "12m", Geo: "GLOBAL",
		TermA: "dogs", TermB: "cats",
		DataHash: "hash2", HorizonDays: 28,
		WinnerProbability: 0.9, ComputedAt: time.Now().UTC().AddDate(0, 0, -40),
	}
	var points []models.ForecastPoint
	base := wrong.ComputedAt.Truncate(24 * time.Hour)
	for h := 1; h <= 28; h++ {
		for _, term := range []string{"dogs", "cats"} {
			points = append(points, models.ForecastPoint{
				Date: base.AddDate(0, 0, h), Term: term, Value: 55,
				Lower80: 45, Upper80: 65, Lower95: 40, Upper95: 70,
			})
		}
	}
	if err := env.runs.CreateRun(ctx, wrong, points); err != nil {
		t.Fatalf("seed wrong run: %v", err)
	}
	ws := &models.ComparisonSeries{
		Slug: wrong.Slug, Timeframe: wrong.Timeframe, Geo: wrong.Geo,
		TermA: wrong.TermA, TermB: wrong.TermB,
	}
	for h := 1; h <= 28; h++ {
		ws.Points = append(ws.Points, models.SeriesPoint{
			Date:   base.AddDate(0, 0, h),
			Values: map[string]float64{"dogs": 30, "cats": 70},
		})
	}
	env.series.put(ws)

	if _, err := env.evaluator.RunBatch(ctx); err != nil {
		t.Fatalf("run batch: %v", err)
	}

	stats, err := env.evals.GetTrustStats(ctx, TrustPeriodAllTime)
	if err != nil {
		t.Fatalf("get trust stats: %v", err)
	}
	if stats == nil {
		t.Fatalf("trust stats not upserted")
	}
	if stats.TotalEvaluated != 2 {
		t.Fatalf("expected 2 evaluated, got %d", stats.TotalEvaluated)
	}
	if stats.WinnerAccuracyPercent != 50 {
		t.Fatalf("expected 50%% winner accuracy, got %.1f", stats.WinnerAccuracyPercent)
	}
	if stats.IntervalCoveragePercent == 0 {
		t.Fatalf("interval coverage should be positive")
	}
	// Both runs computed within the rolling window.
	if stats.Last90DaysAccuracy != 50 {
		t.Fatalf("expected 50%% rolling accuracy, got %.1f", stats.Last90DaysAccuracy)
	}

	// Re-running the rollup over the same evaluations changes nothing.
	if _, err := env.evaluator.RunBatch(ctx); err != nil {
		t.Fatalf("second batch: %v", err)
	}
	again, _ := env.evals.GetTrustStats(ctx, TrustPeriodAllTime)
	if again.TotalEvaluated != 2 || again.WinnerAccuracyPercent != 50 {
		t.Fatalf("rollup drifted on rerun: %+v", again)
	}
}

func TestEvaluateBatchSingleFlight(t *testing.T) {
	env := newEvalEnv(t)
	ctx := context.Background()

	run := env.seedRun(t, 40, 28, 0.7)
	env.seedRealized(run, func(int) float64 { return 55 }, func(int) float64 { return 55 })

	// Another batch holds the lock: this pass must not touch any run.
	held, err := env.cache.TryLock(ctx, evalBatchLockKey, time.Minute)
	if err != nil || !held {
		t.Fatalf("pre-acquire lock: held=%v err=%v", held, err)
	}
	res, err := env.evaluator.RunBatch(ctx)
	if err != nil {
		t.Fatalf("locked batch: %v", err)
	}
	if res.TotalFound != 0 || res.Evaluated != 0 {
		t.Fatalf("locked batch did work: %+v", res)
	}

	// Lock released: the same run evaluates normally.
	if err := env.cache.Unlock(ctx, evalBatchLockKey); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	res, err = env.evaluator.RunBatch(ctx)
	if err != nil {
		t.Fatalf("unlocked batch: %v", err)
	}
	if res.Evaluated != 1 {
		t.Fatalf("expected 1 evaluated after unlock, got %+v", res)
	}
}
