package di

import (
	"context"
	"fmt"
	"time"

	"TrendDuel/internal/domain/repository"
	"TrendDuel/internal/handler/api"
	internalrepo "TrendDuel/internal/repository"
	"TrendDuel/internal/services/forecast"
	"TrendDuel/internal/services/series"
	"TrendDuel/internal/usecase"
	pkgcache "TrendDuel/pkg/cache"
	"TrendDuel/pkg/config"
	pkgkafka "TrendDuel/pkg/kafka"
	applogger "TrendDuel/pkg/logger"
	"TrendDuel/pkg/metrics"
	"TrendDuel/pkg/postgres"
	"TrendDuel/pkg/server"
)

// storeTimeout bounds every single store call; the per-job wall clock lives in
// the warmup use case.
const storeTimeout = 10 * time.Second

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvidePostgresClient creates the Postgres client and applies the schema.
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, error) {
	client, err := postgres.NewClient(
		postgres.WithHost(cfg.Postgres.Host),
		postgres.WithPort(cfg.Postgres.Port),
		postgres.WithDatabase(cfg.Postgres.Database),
		postgres.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		postgres.WithSSLMode(cfg.Postgres.SSLMode),
		postgres.WithMaxConnections(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns),
		postgres.WithDialTimeout(cfg.Postgres.DialTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return client, nil
}

// ProvideCache creates the Redis cache client.
func ProvideCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideEventPublisher creates the Kafka publisher, or a no-op when no
// brokers are configured.
func ProvideEventPublisher(cfg *config.Config) (repository.EventPublisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return internalrepo.NopPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideJobStore creates the warmup job queue store.
func ProvideJobStore(pg *postgres.Client) repository.JobStore {
	return internalrepo.NewJobStore(pg.DB(), storeTimeout)
}

// ProvideRunStore creates the forecast run store.
func ProvideRunStore(pg *postgres.Client) repository.RunStore {
	return internalrepo.NewRunStore(pg.DB(), storeTimeout)
}

// ProvideEvaluationStore creates the evaluation store.
func ProvideEvaluationStore(pg *postgres.Client) repository.EvaluationStore {
	return internalrepo.NewEvaluationStore(pg.DB(), storeTimeout)
}

// ProvideSeriesProvider creates the upstream series accessor client.
func ProvideSeriesProvider(cfg *config.Config) repository.SeriesProvider {
	return series.NewHTTPSeriesProvider(cfg)
}

// ProvidePackBuilder creates the pack builder over the prediction engine.
func ProvidePackBuilder(cfg *config.Config) *usecase.PackBuilder {
	return usecase.NewPackBuilder(forecast.NewEngine(), cfg.Forecast.HorizonDays)
}

// ProvideWarmup creates the warmup use case.
func ProvideWarmup(
	cfg *config.Config,
	jobs repository.JobStore,
	runs repository.RunStore,
	c *pkgcache.RedisCache,
	sp repository.SeriesProvider,
	builder *usecase.PackBuilder,
	events repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Warmup {
	return usecase.NewWarmup(cfg, jobs, runs, c, sp, builder, events, m, l)
}

// ProvideEvaluator creates the evaluation use case.
func ProvideEvaluator(
	cfg *config.Config,
	runs repository.RunStore,
	evals repository.EvaluationStore,
	c *pkgcache.RedisCache,
	sp repository.SeriesProvider,
	events repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Evaluator {
	return usecase.NewEvaluator(cfg, runs, evals, c, sp, events, m, l)
}

// ProvideHandler creates the Echo handler with its health checkers.
func ProvideHandler(
	l *applogger.Logger,
	cfg *config.Config,
	warmup *usecase.Warmup,
	evaluator *usecase.Evaluator,
	evals repository.EvaluationStore,
	pg *postgres.Client,
	c *pkgcache.RedisCache,
) *api.ForecastEchoHandler {
	return api.NewForecastEchoHandler(l, cfg, warmup, evaluator, evals, map[string]api.HealthChecker{
		"postgres": pg,
		"redis":    c,
	})
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.ForecastEchoHandler,
	jobs repository.JobStore,
	pg *postgres.Client,
	c *pkgcache.RedisCache,
	events repository.EventPublisher,
) *server.App {
	return server.New(cfg, l, handler, jobs, pg, c, events)
}
