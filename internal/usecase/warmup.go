package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"TrendDuel/internal/domain/models"
	domrepo "TrendDuel/internal/domain/repository"
	"TrendDuel/internal/services/keys"
	"TrendDuel/internal/services/forecast"
	"TrendDuel/pkg/cache"
	"TrendDuel/pkg/config"
	"TrendDuel/pkg/logger"
)

// maxErrorLen bounds the error text persisted on a failed job and in the
// diagnostic cache record.
const maxErrorLen = 500

// Warmup owns the forecast warmup flow: cache-first reads, idempotent
// enqueueing on miss, and single-job execution for the external dispatcher.
type Warmup struct {
	jobs    domrepo.JobStore
	runs    domrepo.RunStore
	cache   cache.Service
	series  domrepo.SeriesProvider
	builder *PackBuilder
	events  domrepo.EventPublisher
	metrics domrepo.Metrics
	log     *logger.Logger

	historyDays      int
	algorithmVersion string
	freshTTL         time.Duration
	staleTTL         time.Duration
	jobTimeout       time.Duration
	errorTTL         time.Duration
	debugTTL         time.Duration
}

func NewWarmup(
	cfg *config.Config,
	jobs domrepo.JobStore,
	runs domrepo.RunStore,
	c cache.Service,
	series domrepo.SeriesProvider,
	builder *PackBuilder,
	events domrepo.EventPublisher,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Warmup {
	return &Warmup{
		jobs:             jobs,
		runs:             runs,
		cache:            c,
		series:           series,
		builder:          builder,
		events:           events,
		metrics:          metrics,
		log:              log,
		historyDays:      cfg.Forecast.HistoryDays,
		algorithmVersion: cfg.Forecast.AlgorithmVersion,
		freshTTL:         cfg.Forecast.FreshTTL,
		staleTTL:         cfg.Forecast.StaleTTL,
		jobTimeout:       cfg.Warmup.JobTimeout,
		errorTTL:         cfg.Warmup.ErrorTTL,
		debugTTL:         cfg.Warmup.DebugTTL,
	}
}

// ForecastView is the consumer-facing forecast read result. Status "ready"
// carries the pack (possibly stale); "pending" carries the queued job.
type ForecastView struct {
	Status string               `json:"status"` // ready | pending
	Stale  bool                 `json:"stale,omitempty"`
	Pack   *models.ForecastPack `json:"pack,omitempty"`
	Job    *models.WarmupJob    `json:"job,omitempty"`
}

// WarmupStatus reports where a comparison's warmup stands, with the
// short-lived diagnostics when present.
type WarmupStatus struct {
	Status    string `json:"status"` // none | queued | running | ready | failed
	JobID     int64  `json:"job_id,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
	LastError string `json:"last_error,omitempty"`
	DebugID   string `json:"debug_id,omitempty"`
	DataHash  string `json:"data_hash"`
}

// warmupErrorRecord is the diagnostic record cached on job failure.
type warmupErrorRecord struct {
	JobID int64     `json:"job_id"`
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

// GetForecast serves a comparison's forecast cache-first: both term keys
// present means ready (stale flagged past the fresh window); any miss means an
// idempotent enqueue and a pending response.
func (w *Warmup) GetForecast(ctx context.Context, slug, timeframe, geo string) (*ForecastView, error) {
	series, _, dataHash, err := w.resolve(ctx, slug, timeframe, geo)
	if err != nil {
		return nil, err
	}

	var a, b models.TermForecast
	freshA, errA := cache.GetWithFreshness(ctx, w.cache, keys.ForecastKey(slug, series.TermA, timeframe, geo, dataHash), &a)
	freshB, errB := cache.GetWithFreshness(ctx, w.cache, keys.ForecastKey(slug, series.TermB, timeframe, geo, dataHash), &b)

	if errA == nil && errB == nil {
		stale := !freshA || !freshB
		if stale {
			w.metrics.RecordCacheLookup("hit_stale")
		} else {
			w.metrics.RecordCacheLookup("hit_fresh")
		}
		return &ForecastView{
			Status: "ready",
			Stale:  stale,
			Pack: &models.ForecastPack{
				Slug:        slug,
				Timeframe:   timeframe,
				Geo:         geo,
				TermA:       a,
				TermB:       b,
				HeadToHead:  headToHead(a, b),
				HorizonDays: w.builder.horizonDays,
				DataHash:    dataHash,
				ComputedAt:  packComputedAt(a, b),
			},
		}, nil
	}
	if (errA != nil && !errors.Is(errA, cache.ErrCacheMiss)) ||
		(errB != nil && !errors.Is(errB, cache.ErrCacheMiss)) {
		return nil, fmt.Errorf("forecast cache read %s: %w", slug, errors.Join(errA, errB))
	}

	w.metrics.RecordCacheLookup("miss")
	job, created, err := w.jobs.Enqueue(ctx, &models.WarmupJob{
		Slug:      slug,
		Timeframe: timeframe,
		Geo:       geo,
		DataHash:  dataHash,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue warmup %s: %w", slug, err)
	}
	if created {
		w.log.Info("warmup job enqueued",
			logger.String("slug", slug),
			logger.Int64("job_id", job.ID),
			logger.String("data_hash", dataHash))
	}
	return &ForecastView{Status: "pending", Job: job}, nil
}

// Status reports the latest job for the comparison's current fingerprint,
// along with the cached error and debug records when still alive.
func (w *Warmup) Status(ctx context.Context, slug, timeframe, geo string) (*WarmupStatus, error) {
	_, _, dataHash, err := w.resolve(ctx, slug, timeframe, geo)
	if err != nil {
		return nil, err
	}

	st := &WarmupStatus{Status: "none", DataHash: dataHash}

	job, err := w.jobs.FindLatest(ctx, slug, timeframe, geo, dataHash)
	if err != nil {
		return nil, fmt.Errorf("find warmup job %s: %w", slug, err)
	}
	if job != nil {
		st.Status = string(job.Status)
		st.JobID = job.ID
		st.Attempts = job.Attempts
		st.LastError = job.LastError
		st.DebugID = job.DebugID
	}

	// The cached error record can outlive a successful re-run by up to its
	// TTL; it only speaks for the latest job when that job actually failed.
	if job == nil || job.Status == models.JobFailed {
		var rec warmupErrorRecord
		if err := w.cache.Get(ctx, keys.WarmupErrorKey(slug, timeframe, geo, dataHash), &rec); err == nil {
			st.LastError = rec.Error
		}
	}
	var debugID string
	if err := w.cache.Get(ctx, keys.WarmupDebugKey(slug, timeframe, geo, dataHash), &debugID); err == nil {
		st.DebugID = debugID
	}
	return st, nil
}

// RunOne dequeues and executes exactly one job. An empty queue is a success
// with no job id. Execution failures finish the job as failed and still
// return a result rather than an error; only the dequeue itself can error.
func (w *Warmup) RunOne(ctx context.Context) (*models.WarmupRunResult, error) {
	job, err := w.jobs.Dequeue(ctx)
	if err != nil {
		return nil, fmt.Errorf("dequeue warmup job: %w", err)
	}
	if job == nil {
		return &models.WarmupRunResult{Success: true}, nil
	}

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	debugID, err := w.execute(runCtx, job)
	w.metrics.RecordLatency("warmup_execute", time.Since(start).Seconds())

	if err != nil {
		w.fail(ctx, job, err)
		return &models.WarmupRunResult{
			Success: false,
			JobID:   job.ID,
			Slug:    job.Slug,
			Error:   truncate(err.Error(), maxErrorLen),
		}, nil
	}

	if err := w.jobs.MarkReady(ctx, job.ID, debugID); err != nil {
		w.log.Error("mark job ready", logger.Int64("job_id", job.ID), logger.Error(err))
	}
	w.metrics.RecordJobProcessed("ready")
	w.publish(ctx, domrepo.JobEvent{
		Kind: "job_ready", JobID: job.ID, Slug: job.Slug,
		Timeframe: job.Timeframe, Geo: job.Geo, DebugID: debugID, At: time.Now().UTC(),
	})
	w.log.Info("warmup job ready",
		logger.Int64("job_id", job.ID),
		logger.String("slug", job.Slug),
		logger.String("debug_id", debugID),
		logger.Duration("took", time.Since(start)))

	return &models.WarmupRunResult{Success: true, JobID: job.ID, Slug: job.Slug, DebugID: debugID}, nil
}

// execute computes the pack, writes and verifies the cache entries, stores the
// debug id, and persists the run. Returns the debug id on success.
func (w *Warmup) execute(ctx context.Context, job *models.WarmupJob) (string, error) {
	series, window, dataHash, err := w.resolve(ctx, job.Slug, job.Timeframe, job.Geo)
	if err != nil {
		return "", err
	}
	series.Points = window

	pack, err := w.builder.Build(ctx, series, dataHash)
	if err != nil {
		return "", fmt.Errorf("build pack: %w", err)
	}

	keyA := keys.ForecastKey(job.Slug, series.TermA, job.Timeframe, job.Geo, dataHash)
	keyB := keys.ForecastKey(job.Slug, series.TermB, job.Timeframe, job.Geo, dataHash)
	if err := cache.SetWithFreshness(ctx, w.cache, keyA, pack.TermA, w.freshTTL, w.staleTTL); err != nil {
		return "", fmt.Errorf("cache write %s: %w", keyA, err)
	}
	if err := cache.SetWithFreshness(ctx, w.cache, keyB, pack.TermB, w.freshTTL, w.staleTTL); err != nil {
		return "", fmt.Errorf("cache write %s: %w", keyB, err)
	}

	// A write the next read cannot see is a failure, not a success.
	for _, key := range []string{keyA, keyB} {
		var back models.TermForecast
		if _, err := cache.GetWithFreshness(ctx, w.cache, key, &back); err != nil {
			return "", fmt.Errorf("cache verify %s: %w", key, err)
		}
	}

	debugID := uuid.NewString()
	if err := w.cache.Set(ctx, keys.WarmupDebugKey(job.Slug, job.Timeframe, job.Geo, dataHash), debugID, w.debugTTL); err != nil {
		w.log.Warn("store debug id", logger.Int64("job_id", job.ID), logger.Error(err))
	}

	run := &models.ForecastRun{
		Slug:              job.Slug,
		Timeframe:         job.Timeframe,
		Geo:               job.Geo,
		TermA:             series.TermA,
		TermB:             series.TermB,
		DataHash:          dataHash,
		HorizonDays:       pack.HorizonDays,
		WinnerProbability: pack.HeadToHead.WinnerProbability,
		ComputedAt:        pack.ComputedAt,
	}
	points := make([]models.ForecastPoint, 0, len(pack.TermA.Points)+len(pack.TermB.Points))
	points = append(points, pack.TermA.Points...)
	points = append(points, pack.TermB.Points...)
	if err := w.runs.CreateRun(ctx, run, points); err != nil {
		// The cache is already serving; losing the run only costs evaluation.
		w.log.Error("persist forecast run",
			logger.Int64("job_id", job.ID),
			logger.String("slug", job.Slug),
			logger.Error(err))
	}

	return debugID, nil
}

// fail finishes the job as failed with bounded error text and leaves a
// short-lived diagnostic record in the cache.
func (w *Warmup) fail(ctx context.Context, job *models.WarmupJob, cause error) {
	msg := truncate(cause.Error(), maxErrorLen)

	if err := w.jobs.MarkFailed(ctx, job.ID, msg); err != nil {
		w.log.Error("mark job failed", logger.Int64("job_id", job.ID), logger.Error(err))
	}

	rec := warmupErrorRecord{JobID: job.ID, Error: msg, At: time.Now().UTC()}
	if err := w.cache.Set(ctx, keys.WarmupErrorKey(job.Slug, job.Timeframe, job.Geo, job.DataHash), rec, w.errorTTL); err != nil {
		w.log.Warn("store error record", logger.Int64("job_id", job.ID), logger.Error(err))
	}

	kind := "job_execute"
	if errors.Is(cause, forecast.ErrInsufficientData) {
		kind = "insufficient_data"
	}
	w.metrics.RecordJobProcessed("failed")
	w.metrics.RecordError(kind)
	w.publish(ctx, domrepo.JobEvent{
		Kind: "job_failed", JobID: job.ID, Slug: job.Slug,
		Timeframe: job.Timeframe, Geo: job.Geo, Error: msg, At: time.Now().UTC(),
	})
	w.log.Error("warmup job failed",
		logger.Int64("job_id", job.ID),
		logger.String("slug", job.Slug),
		logger.String("cause", msg))
}

// resolve fetches the comparison series and derives the history window plus
// its fingerprint.
func (w *Warmup) resolve(ctx context.Context, slug, timeframe, geo string) (*models.ComparisonSeries, []models.SeriesPoint, string, error) {
	series, err := w.series.FetchSeries(ctx, slug, timeframe, geo)
	if err != nil {
		return nil, nil, "", fmt.Errorf("fetch series %s: %w", slug, err)
	}

	window := series.Points
	if w.historyDays > 0 && len(window) > w.historyDays {
		window = window[len(window)-w.historyDays:]
	}
	return series, window, keys.DataHash("", window, w.algorithmVersion), nil
}

func (w *Warmup) publish(ctx context.Context, ev domrepo.JobEvent) {
	if w.events == nil {
		return
	}
	if err := w.events.PublishJobEvent(ctx, ev); err != nil {
		w.log.Warn("publish job event", logger.String("kind", ev.Kind), logger.Error(err))
	}
}

// packComputedAt recovers the computation time of a cache-served pack. Both
// terms carry the same stamp when written together; the later one wins if the
// keys were ever written by different runs.
func packComputedAt(a, b models.TermForecast) time.Time {
	if b.ComputedAt.After(a.ComputedAt) {
		return b.ComputedAt
	}
	return a.ComputedAt
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
