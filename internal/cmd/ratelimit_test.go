package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRateLimits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/ratelimits" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"generated_at":"2026-10-01T12:00:00Z","rate_limits":[
			{"method":"importlightwalletaddress","max_calls":10,"window_seconds":600,"count":3,"reset_in_seconds":250.5},
			{"method":"getinfo","max_calls":5,"window_seconds":60,"count":0,"reset_in_seconds":null}]}`))
	}))
	defer srv.Close()

	statuses, err := fetchRateLimits(context.Background(), srv.URL+"/", time.Second)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, "importlightwalletaddress", statuses[0].Method)
	assert.Equal(t, 3, statuses[0].Count)
	require.NotNil(t, statuses[0].ResetIn)
	assert.Equal(t, 250500*time.Millisecond, *statuses[0].ResetIn)
	assert.Nil(t, statuses[1].ResetIn)
}

func TestFetchRateLimitsNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"FORBIDDEN"}}`))
	}))
	defer srv.Close()

	_, err := fetchRateLimits(context.Background(), srv.URL, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
	assert.Contains(t, err.Error(), "FORBIDDEN")
}
