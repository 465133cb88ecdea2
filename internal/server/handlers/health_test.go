package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	err error
}

func (s stubChecker) CheckHealth(ctx context.Context) error {
	return s.err
}

func TestHealthHandlerReturnsHealthyStatus(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("ok", stubChecker{err: nil})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	manager.HealthHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, StatusHealthy, resp.Checks["ok"])
}

func TestHealthHandlerReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("node", stubChecker{err: errors.New("down")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	manager.HealthHandler(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Error struct {
			Code    string                 `json:"code"`
			Message string                 `json:"message"`
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)

	checks, ok := resp.Error.Details["checks"].(map[string]interface{})
	require.True(t, ok, "expected checks in error details")
	assert.Equal(t, StatusUnhealthy, checks["node"])
}

func TestHealthHandlerReportsDegradedWithOK(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("chaininfo", HealthCheckerFunc(func(context.Context) error {
		return Degraded("snapshot is 2m old")
	}))
	manager.RegisterChecker("telemetry", stubChecker{})

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, StatusDegraded, resp.Checks["chaininfo"])
	assert.Equal(t, StatusHealthy, resp.Checks["telemetry"])
}

func TestDegradedIsDetectedThroughWrapping(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("wrapped", stubChecker{err: errors.Join(errors.New("context"), Degraded("stale"))})

	checks := manager.runHealthChecks(context.Background())
	assert.Equal(t, StatusDegraded, checks["wrapped"])
}

func TestProbeHandlersReturnProbeResponse(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("ok", stubChecker{})

	handlers := map[string]http.HandlerFunc{
		"live":    manager.LivenessHandler,
		"ready":   manager.ReadinessHandler,
		"startup": manager.StartupHandler,
	}

	for name, handler := range handlers {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/health/"+name, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var resp ProbeResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, StatusHealthy, resp.Status)
			assert.False(t, resp.Timestamp.IsZero())
		})
	}
}

func TestCancelledProbeMarksChecksAsTimeout(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("node", stubChecker{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checks := manager.runHealthChecks(ctx)
	assert.Equal(t, StatusTimeout, checks["node"])
	assert.Equal(t, StatusDegraded, manager.determineOverallStatus(checks))
}

func TestDetermineOverallStatusTreatsTimeoutAsDegraded(t *testing.T) {
	manager := NewHealthManager("dev")

	assert.Equal(t, StatusDegraded, manager.determineOverallStatus(map[string]string{
		"node": StatusTimeout,
	}))
	assert.Equal(t, StatusUnhealthy, manager.determineOverallStatus(map[string]string{
		"node":      StatusTimeout,
		"chaininfo": StatusUnhealthy,
	}))
	assert.Equal(t, StatusHealthy, manager.determineOverallStatus(nil))
}
