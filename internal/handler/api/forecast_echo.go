// Package api exposes the forecast pipeline over HTTP: consumer reads plus
// the scheduler-facing warmup and evaluation triggers.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"TrendDuel/internal/domain/models"
	domrepo "TrendDuel/internal/domain/repository"
	"TrendDuel/internal/usecase"
	"TrendDuel/pkg/config"
	xhttp "TrendDuel/pkg/http"
	xlogger "TrendDuel/pkg/logger"
)

// HealthChecker pings one dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ForecastEchoHandler wires the use cases to Echo routes.
type ForecastEchoHandler struct {
	logger    *xlogger.Logger
	warmup    *usecase.Warmup
	evaluator *usecase.Evaluator
	evals     domrepo.EvaluationStore

	warmupSecret     string
	evaluationSecret string

	health map[string]HealthChecker
}

func NewForecastEchoHandler(
	logger *xlogger.Logger,
	cfg *config.Config,
	warmup *usecase.Warmup,
	evaluator *usecase.Evaluator,
	evals domrepo.EvaluationStore,
	health map[string]HealthChecker,
) *ForecastEchoHandler {
	return &ForecastEchoHandler{
		logger:           logger,
		warmup:           warmup,
		evaluator:        evaluator,
		evals:            evals,
		warmupSecret:     cfg.Warmup.Secret,
		evaluationSecret: cfg.Evaluation.Secret,
		health:           health,
	}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)
	g.GET("/warmup/status", h.WarmupStatus)
	g.POST("/warmup/run", h.WarmupRun)
	g.POST("/evaluate", h.Evaluate)
	g.GET("/trust", h.Trust)

	e.GET("/health", h.Health)
}

// Forecast serves the cached pack when present, otherwise enqueues a warmup
// job and answers pending. Stale data is served with stale: true.
func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	view, err := h.warmup.GetForecast(c.Request().Context(), req.Slug, req.Timeframe, req.Geo)
	if err != nil {
		h.logger.Error("forecast lookup error", xlogger.String("slug", req.Slug), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if view.Status == "pending" {
		return xhttp.DataResponse(c, http.StatusAccepted, view)
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *ForecastEchoHandler) WarmupStatus(c echo.Context) error {
	req := &models.WarmupStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	st, err := h.warmup.Status(c.Request().Context(), req.Slug, req.Timeframe, req.Geo)
	if err != nil {
		h.logger.Error("warmup status error", xlogger.String("slug", req.Slug), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, st)
}

// WarmupRun dequeues and executes exactly one job for the external
// dispatcher. An unconfigured secret refuses service rather than running open.
func (h *ForecastEchoHandler) WarmupRun(c echo.Context) error {
	if h.warmupSecret == "" {
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("warmup_disabled", "", "warmup secret not configured", http.StatusServiceUnavailable))
	}
	if !secretEqual(c.Request().Header.Get("X-Warmup-Secret"), h.warmupSecret) {
		return xhttp.UnauthorizedResponse(c, "invalid warmup secret")
	}

	res, err := h.warmup.RunOne(c.Request().Context())
	if err != nil {
		h.logger.Error("warmup run error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Evaluate runs one bounded evaluation batch under the bearer secret.
func (h *ForecastEchoHandler) Evaluate(c echo.Context) error {
	if h.evaluationSecret == "" {
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("evaluation_disabled", "", "evaluation secret not configured", http.StatusServiceUnavailable))
	}
	if !secretEqual(bearerToken(c.Request().Header.Get(echo.HeaderAuthorization)), h.evaluationSecret) {
		return xhttp.UnauthorizedResponse(c, "invalid evaluation secret")
	}

	res, err := h.evaluator.RunBatch(c.Request().Context())
	if err != nil {
		h.logger.Error("evaluation batch error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Trust(c echo.Context) error {
	req := &models.TrustRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	stats, err := h.evals.GetTrustStats(c.Request().Context(), req.Period)
	if err != nil {
		h.logger.Error("trust stats error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if stats == nil {
		return xhttp.NotFoundResponse(c, "no trust stats for period "+req.Period)
	}
	return xhttp.SuccessResponse(c, stats)
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	ctx := c.Request().Context()
	status := map[string]string{}
	healthy := true
	for name, dep := range h.health {
		if err := dep.Health(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func secretEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
