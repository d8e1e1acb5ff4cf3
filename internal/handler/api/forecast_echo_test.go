package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"TrendDuel/pkg/config"
	xlogger "TrendDuel/pkg/logger"
)

func testHandler(t *testing.T, warmupSecret, evalSecret string) *ForecastEchoHandler {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cfg := &config.Config{}
	cfg.Warmup.Secret = warmupSecret
	cfg.Evaluation.Secret = evalSecret
	return NewForecastEchoHandler(l, cfg, nil, nil, nil, nil)
}

func doRequest(h *ForecastEchoHandler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestWarmupRunSecretGating(t *testing.T) {
	// Unconfigured secret refuses service entirely.
	unconfigured := testHandler(t, "", "")
	if rec := doRequest(unconfigured, http.MethodPost, "/api/warmup/run", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured secret: expected 503, got %d", rec.Code)
	}

	configured := testHandler(t, "topsecret", "")
	if rec := doRequest(configured, http.MethodPost, "/api/warmup/run", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401, got %d", rec.Code)
	}
	headers := map[string]string{"X-Warmup-Secret": "wrong"}
	if rec := doRequest(configured, http.MethodPost, "/api/warmup/run", headers); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", rec.Code)
	}
}

func TestEvaluateSecretGating(t *testing.T) {
	unconfigured := testHandler(t, "", "")
	if rec := doRequest(unconfigured, http.MethodPost, "/api/evaluate", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured secret: expected 503, got %d", rec.Code)
	}

	configured := testHandler(t, "", "topsecret")
	headers := map[string]string{echo.HeaderAuthorization: "Bearer wrong"}
	if rec := doRequest(configured, http.MethodPost, "/api/evaluate", headers); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong bearer: expected 401, got %d", rec.Code)
	}
	headers = map[string]string{echo.HeaderAuthorization: "topsecret"}
	if rec := doRequest(configured, http.MethodPost, "/api/evaluate", headers); rec.Code != http.StatusUnauthorized {
		t.Fatalf("non-bearer header: expected 401, got %d", rec.Code)
	}
}

func TestForecastRequestValidation(t *testing.T) {
	h := testHandler(t, "", "")

	if rec := doRequest(h, http.MethodGet, "/api/forecast", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing slug: expected 400, got %d", rec.Code)
	}
	if rec := doRequest(h, http.MethodGet, "/api/forecast?slug=coffee-vs-tea&timeframe=2w", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad timeframe: expected 400, got %d", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := bearerToken(tt.header); got != tt.want {
			t.Fatalf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

type failingDep struct{ err error }

func (d failingDep) Health(context.Context) error { return d.err }

func TestHealthAggregation(t *testing.T) {
	l, _ := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	cfg := &config.Config{}

	healthy := NewForecastEchoHandler(l, cfg, nil, nil, nil, map[string]HealthChecker{
		"postgres": failingDep{nil},
		"redis":    failingDep{nil},
	})
	if rec := doRequest(healthy, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthy deps: expected 200, got %d", rec.Code)
	}

	degraded := NewForecastEchoHandler(l, cfg, nil, nil, nil, map[string]HealthChecker{
		"postgres": failingDep{nil},
		"redis":    failingDep{errors.New("connection refused")},
	})
	if rec := doRequest(degraded, http.MethodGet, "/health", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing dep: expected 503, got %d", rec.Code)
	}
}
