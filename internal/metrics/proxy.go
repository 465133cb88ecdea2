package metrics

import (
	"time"

	"github.com/nodeproxy/nodeproxy/internal/observability"
)

// Proxy metrics following Prometheus conventions
const (
	// Dispatch metrics
	ProxyRequestsTotal    = "proxy_requests_total"
	ProxyRateLimitedTotal = "proxy_rate_limited_total"

	// Backend metrics
	BackendRequestsTotal   = "proxy_backend_requests_total"
	BackendRequestDuration = "proxy_backend_request_duration_ms"

	// Chain info snapshot metrics
	ChainInfoRefreshTotal    = "proxy_chaininfo_refresh_total"
	ChainInfoRefreshDuration = "proxy_chaininfo_refresh_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
)

// otherMethod replaces client-chosen method names on rejected requests so
// label cardinality stays bounded by the allow-list.
const otherMethod = "other"

// RecordDispatch counts one dispatched request by method and outcome.
func RecordDispatch(method string, outcome string) {
	if observability.TelemetrySystem == nil {
		return
	}
	if outcome == "forbidden" {
		method = otherMethod
	}
	_ = observability.TelemetrySystem.Counter(
		ProxyRequestsTotal,
		1,
		map[string]string{
			"method":  method,
			"outcome": outcome,
		},
	)
}

// RecordRateLimited counts a request rejected by a method throttle.
func RecordRateLimited(method string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ProxyRateLimitedTotal,
			1,
			map[string]string{"method": method},
		)
	}
}

// RecordBackendCall records a forwarded call and how long the node took.
func RecordBackendCall(method string, success bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}

	_ = observability.TelemetrySystem.Counter(
		BackendRequestsTotal,
		1,
		map[string]string{
			"method": method,
			"status": status,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		BackendRequestDuration,
		duration,
		map[string]string{"method": method},
	)
}

// RecordChainInfoRefresh records one snapshot refresh attempt.
func RecordChainInfoRefresh(success bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}

	_ = observability.TelemetrySystem.Counter(
		ChainInfoRefreshTotal,
		1,
		map[string]string{"status": status},
	)
	_ = observability.TelemetrySystem.Histogram(
		ChainInfoRefreshDuration,
		duration,
		nil,
	)
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
