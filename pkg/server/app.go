package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "TrendDuel/internal/domain/repository"
	pkgcache "TrendDuel/pkg/cache"
	"TrendDuel/pkg/config"
	xhttp "TrendDuel/pkg/http"
	applogger "TrendDuel/pkg/logger"
	"TrendDuel/pkg/postgres"
)

// App encapsulates the application lifecycle: HTTP serving, the optional
// stuck-job reaper, and graceful teardown of infrastructure clients.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	handler    xhttp.Handler
	jobs       domrepo.JobStore
	pg         *postgres.Client
	cache      *pkgcache.RedisCache
	events     domrepo.EventPublisher
	httpServer *xhttp.Server
}

// New creates the App with all dependencies injected.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	handler xhttp.Handler,
	jobs domrepo.JobStore,
	pg *postgres.Client,
	cache *pkgcache.RedisCache,
	events domrepo.EventPublisher,
) *App {
	return &App{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
		jobs:    jobs,
		pg:      pg,
		cache:   cache,
		events:  events,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.cfg.Warmup.ReclaimAfter > 0 {
		go a.runReaper(ctx, a.cfg.Warmup.ReclaimAfter)
		a.logger.Info("stuck-job reaper enabled",
			applogger.Duration("reclaim_after", a.cfg.Warmup.ReclaimAfter))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("environment", a.cfg.Environment))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// runReaper periodically requeues jobs left running by crashed workers.
func (a *App) runReaper(ctx context.Context, after time.Duration) {
	ticker := time.NewTicker(after)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.jobs.ReclaimStuck(ctx, after)
			if err != nil {
				a.logger.Warn("reclaim stuck jobs", applogger.Error(err))
				continue
			}
			if n > 0 {
				a.logger.Warn("requeued stuck jobs", applogger.Int64("count", n))
			}
		}
	}
}

// shutdown stops the HTTP server first, then closes the clients.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Warn("event publisher close error", applogger.Error(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("redis close error", applogger.Error(err))
		}
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			a.logger.Warn("postgres close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
