package health_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carlosbmello/echef-caixa-web/internal/health"
)

type stubChecker struct {
	backendErr error
	redisErr   error
}

func (s stubChecker) PingBackend(context.Context, time.Duration) error { return s.backendErr }
func (s stubChecker) PingRedis(context.Context, time.Duration) error   { return s.redisErr }

func TestLiveAlwaysOK(t *testing.T) {
	rec := httptest.NewRecorder()
	health.Handler{}.Live(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyWhenDependenciesHealthy(t *testing.T) {
	handler := health.Handler{Checker: stubChecker{}}
	rec := httptest.NewRecorder()
	handler.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"backend":"ok"`)
}

func TestReadyReportsBackendFailure(t *testing.T) {
	handler := health.Handler{Checker: stubChecker{backendErr: errors.New("connection refused")}}
	rec := httptest.NewRecorder()
	handler.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "connection refused")
}

func TestReadinessAfterShutdown(t *testing.T) {
	handler := health.Handler{Checker: stubChecker{}}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	health.SetReady(true)
	rec := httptest.NewRecorder()
	handler.Ready(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	health.SetReady(false)
	t.Cleanup(func() { health.SetReady(true) })
	rec = httptest.NewRecorder()
	handler.Ready(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
