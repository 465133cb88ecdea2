package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeproxy/nodeproxy/internal/core"
	"github.com/nodeproxy/nodeproxy/internal/core/engine"
	apperrors "github.com/nodeproxy/nodeproxy/internal/errors"
	"github.com/nodeproxy/nodeproxy/internal/server/handlers"
	servermw "github.com/nodeproxy/nodeproxy/internal/server/middleware"
)

type echoForwarder struct{}

func (echoForwarder) Forward(ctx context.Context, method string, params json.RawMessage, useHardThrottle bool) ([]byte, error) {
	return []byte(`{"result":"` + method + `","error":null,"id":"nodeproxy"}`), nil
}

func newTestDispatcher() *engine.Dispatcher {
	return &engine.Dispatcher{
		Allowed:   engine.NewMethodSet([]string{"getinfo", core.MethodImportLightWalletAddress}),
		Throttles: engine.MergeThrottles(nil),
		Limiter:   engine.NewSlidingWindowLimiter(),
		Forwarder: echoForwarder{},
	}
}

func newAdminList(t *testing.T, networks ...string) *servermw.NetworkAllowList {
	t.Helper()
	list, err := servermw.NewNetworkAllowList(networks)
	require.NoError(t, err)
	return list
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestServerProxiesJSONRPC(t *testing.T) {
	dispatcher := newTestDispatcher()
	srv := New("127.0.0.1", 0, WithProxy(handlers.NewProxyHandler(dispatcher, 0)))

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"method":"getinfo","params":[],"id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":"getinfo","error":null,"id":"nodeproxy"}`, rec.Body.String())

	rec = post(`{"method":"stop","params":[],"id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":null,"error":{"code":-2,"message":"Forbidden by safe mode or invalid method name"}}`, rec.Body.String())

	for i := 0; i < 10; i++ {
		rec = post(`{"method":"importlightwalletaddress","params":["t1abc"],"id":1}`)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"result":"importlightwalletaddress"`)
	}
	rec = post(`{"method":"importlightwalletaddress","params":["t1abc"],"id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":-4`)
}

func TestServerLandingRedirect(t *testing.T) {
	srv := New("127.0.0.1", 0, WithLanding("https://example.org"))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.org", rec.Header().Get("Location"))
}

func TestServerAdminRateLimitsRestrictedByNetwork(t *testing.T) {
	dispatcher := newTestDispatcher()
	srv := New("127.0.0.1", 0,
		WithAdmin(dispatcher, newAdminList(t, "127.0.0.0/8"), ""))

	t.Run("loopback allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/ratelimits", nil)
		req.RemoteAddr = "127.0.0.1:40000"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp handlers.RateLimitsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp.RateLimits, 1)
		assert.Equal(t, core.MethodImportLightWalletAddress, resp.RateLimits[0].Method)
	})

	t.Run("remote forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/ratelimits", nil)
		req.RemoteAddr = "203.0.113.9:40000"
		req.Header.Set("X-Forwarded-For", "127.0.0.1")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		var body apperrors.HTTPErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "FORBIDDEN", body.Error.Code)
	})

	t.Run("signal disabled without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/signal", nil)
		req.RemoteAddr = "127.0.0.1:40000"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServerTrustsForwardedHeadersWhenEnabled(t *testing.T) {
	srv := New("127.0.0.1", 0,
		WithAdmin(newTestDispatcher(), newAdminList(t, "10.0.0.0/8"), ""),
		WithTrustForwardedHeaders(true))

	req := httptest.NewRequest(http.MethodGet, "/admin/ratelimits", nil)
	req.RemoteAddr = "203.0.113.9:40000"
	req.Header.Set("X-Forwarded-For", "10.1.2.3")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerAdminDisabledWithoutNetworks(t *testing.T) {
	srv := New("127.0.0.1", 0, WithAdmin(newTestDispatcher(), nil, "token"))

	req := httptest.NewRequest(http.MethodGet, "/admin/ratelimits", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerHealthUsesManager(t *testing.T) {
	manager := handlers.NewHealthManager("9.9.9")
	manager.RegisterChecker("node", handlers.HealthCheckerFunc(func(context.Context) error { return nil }))
	srv := New("127.0.0.1", 0, WithHealth(manager))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp handlers.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "9.9.9", resp.Version)
}

func TestShutdownBeforeStartIsNoop(t *testing.T) {
	srv := New("127.0.0.1", 0)
	assert.NoError(t, srv.Shutdown(context.Background()))
	assert.Equal(t, "127.0.0.1:0", srv.Addr())
}

func TestServerWithoutHealthManagerOmitsProbes(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
