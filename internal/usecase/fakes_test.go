package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TrendDuel/internal/domain/models"
	domrepo "TrendDuel/internal/domain/repository"
	"TrendDuel/pkg/config"
	"TrendDuel/pkg/logger"
)

// In-memory stands-ins for the Postgres stores, preserving the store-level
// semantics the use cases rely on (active-job uniqueness, running-only
// transitions, evaluate-once marking).

type memJobStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   []*models.WarmupJob
}

func newMemJobStore() *memJobStore { return &memJobStore{} }

func (s *memJobStore) Enqueue(_ context.Context, job *models.WarmupJob) (*models.WarmupJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Slug == job.Slug && j.Timeframe == job.Timeframe && j.Geo == job.Geo &&
			j.DataHash == job.DataHash && j.Status.Active() {
			cp := *j
			return &cp, false, nil
		}
	}
	s.nextID++
	row := &models.WarmupJob{
		ID: s.nextID, Slug: job.Slug, Timeframe: job.Timeframe, Geo: job.Geo,
		DataHash: job.DataHash, Status: models.JobQueued,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	s.jobs = append(s.jobs, row)
	cp := *row
	return &cp, true, nil
}

func (s *memJobStore) Dequeue(context.Context) (*models.WarmupJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Status == models.JobQueued {
			now := time.Now()
			j.Status = models.JobRunning
			j.Attempts++
			j.StartedAt = &now
			j.UpdatedAt = now
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memJobStore) MarkReady(_ context.Context, id int64, debugID string) error {
	return s.finish(id, models.JobReady, debugID, "")
}

func (s *memJobStore) MarkFailed(_ context.Context, id int64, lastError string) error {
	return s.finish(id, models.JobFailed, "", lastError)
}

func (s *memJobStore) finish(id int64, status models.JobStatus, debugID, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == id {
			if j.Status != models.JobRunning {
				return fmt.Errorf("job %d is not running", id)
			}
			now := time.Now()
			j.Status = status
			j.DebugID = debugID
			j.LastError = lastError
			j.FinishedAt = &now
			j.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("job %d not found", id)
}

func (s *memJobStore) FindLatest(_ context.Context, slug, timeframe, geo, dataHash string) (*models.WarmupJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.jobs) - 1; i >= 0; i-- {
		j := s.jobs[i]
		if j.Slug == slug && j.Timeframe == timeframe && j.Geo == geo && j.DataHash == dataHash {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memJobStore) ReclaimStuck(_ context.Context, runningFor time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	cutoff := time.Now().Add(-runningFor)
	for _, j := range s.jobs {
		if j.Status == models.JobRunning && j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			j.Status = models.JobQueued
			j.StartedAt = nil
			n++
		}
	}
	return n, nil
}

func (s *memJobStore) get(id int64) *models.WarmupJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == id {
			cp := *j
			return &cp
		}
	}
	return nil
}

func (s *memJobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

type memRunStore struct {
	mu     sync.Mutex
	nextID int64
	runs   []*models.ForecastRun
	points map[int64][]models.ForecastPoint
}

func newMemRunStore() *memRunStore {
	return &memRunStore{points: map[int64][]models.ForecastPoint{}}
}

func (s *memRunStore) CreateRun(_ context.Context, run *models.ForecastRun, points []models.ForecastPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	run.ID = s.nextID
	cp := *run
	s.runs = append(s.runs, &cp)
	s.points[run.ID] = append([]models.ForecastPoint(nil), points...)
	return nil
}

func (s *memRunStore) FindEvaluable(_ context.Context, now time.Time, bufferDays, limit int) ([]models.ForecastRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ForecastRun
	for _, r := range s.runs {
		if r.EvaluatedAt != nil {
			continue
		}
		if r.ComputedAt.Before(now.AddDate(0, 0, -(r.HorizonDays + bufferDays))) {
			out = append(out, *r)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memRunStore) PointsForRun(_ context.Context, runID int64) ([]models.ForecastPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ForecastPoint(nil), s.points[runID]...), nil
}

func (s *memRunStore) MarkEvaluated(_ context.Context, runID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ID == runID && r.EvaluatedAt == nil {
			t := at
			r.EvaluatedAt = &t
		}
	}
	return nil
}

func (s *memRunStore) get(id int64) *models.ForecastRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ID == id {
			cp := *r
			return &cp
		}
	}
	return nil
}

type memEvalStore struct {
	mu     sync.Mutex
	nextID int64
	evals  map[int64]*models.EvaluationRecord
	trust  map[string]*models.ForecastTrustStats
	runs   *memRunStore
}

func newMemEvalStore(runs *memRunStore) *memEvalStore {
	return &memEvalStore{
		evals: map[int64]*models.EvaluationRecord{},
		trust: map[string]*models.ForecastTrustStats{},
		runs:  runs,
	}
}

func (s *memEvalStore) HasEvaluation(_ context.Context, runID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.evals[runID]
	return ok, nil
}

func (s *memEvalStore) CreateEvaluation(_ context.Context, eval *models.ForecastEvaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.evals[eval.ForecastRunID]; ok {
		return fmt.Errorf("run %d already evaluated", eval.ForecastRunID)
	}
	s.nextID++
	eval.ID = s.nextID
	rec := &models.EvaluationRecord{ForecastEvaluation: *eval}
	if run := s.runs.get(eval.ForecastRunID); run != nil {
		rec.RunComputedAt = run.ComputedAt
	}
	s.evals[eval.ForecastRunID] = rec
	return nil
}

func (s *memEvalStore) ListAll(context.Context) ([]models.EvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EvaluationRecord, 0, len(s.evals))
	for _, r := range s.evals {
		out = append(out, *r)
	}
	return out, nil
}

func (s *memEvalStore) UpsertTrustStats(_ context.Context, stats *models.ForecastTrustStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *stats
	s.trust[stats.Period] = &cp
	return nil
}

func (s *memEvalStore) GetTrustStats(_ context.Context, period string) (*models.ForecastTrustStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.trust[period]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

// fakeSeries serves a fixed comparison series per fingerprint.
type fakeSeries struct {
	mu     sync.Mutex
	series map[string]*models.ComparisonSeries
	err    error
}

func newFakeSeries() *fakeSeries {
	return &fakeSeries{series: map[string]*models.ComparisonSeries{}}
}

func (f *fakeSeries) put(s *models.ComparisonSeries) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.series[s.Slug+"|"+s.Timeframe+"|"+s.Geo] = s
}

func (f *fakeSeries) FetchSeries(_ context.Context, slug, timeframe, geo string) (*models.ComparisonSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.series[slug+"|"+timeframe+"|"+geo]
	if !ok {
		return nil, fmt.Errorf("unknown comparison %s", slug)
	}
	return s, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordJobProcessed(string)    {}
func (nopMetrics) RecordError(string)           {}
func (nopMetrics) RecordCacheLookup(string)     {}
func (nopMetrics) RecordRunEvaluated()          {}
func (nopMetrics) RecordLatency(string, float64) {}

// recordPublisher captures emitted events for assertions.
type recordPublisher struct {
	mu     sync.Mutex
	events []domrepo.JobEvent
}

func (p *recordPublisher) PublishJobEvent(_ context.Context, ev domrepo.JobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordPublisher) Close() error { return nil }

func (p *recordPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Forecast.HorizonDays = 5
	cfg.Forecast.HistoryDays = 90
	cfg.Forecast.AlgorithmVersion = "v1"
	cfg.Forecast.FreshTTL = time.Hour
	cfg.Forecast.StaleTTL = 24 * time.Hour
	cfg.Warmup.JobTimeout = time.Minute
	cfg.Warmup.ErrorTTL = time.Hour
	cfg.Warmup.DebugTTL = 15 * time.Minute
	cfg.Evaluation.BatchSize = 100
	cfg.Evaluation.BufferDays = 2
	return cfg
}

func testLogger() *logger.Logger {
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		panic(err)
	}
	return l
}
