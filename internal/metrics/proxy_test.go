package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeproxy/nodeproxy/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: collector,
	})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() {
		observability.TelemetrySystem = original
	})

	return collector
}

func TestProxyMetricsEmitted(t *testing.T) {
	collector := setupTelemetry(t)

	RecordDispatch("getblock", "forwarded")
	RecordDispatch("whatever", "forbidden")
	RecordRateLimited("importlightwalletaddress")
	RecordBackendCall("getblock", true, 12*time.Millisecond)
	RecordChainInfoRefresh(false, 3*time.Millisecond)
	SetServerStartTime(time.Now().Unix())

	assert.Equal(t, 2, collector.CountMetricsByName(ProxyRequestsTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(ProxyRateLimitedTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(BackendRequestsTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(BackendRequestDuration))
	assert.Equal(t, 1, collector.CountMetricsByName(ChainInfoRefreshTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(ServerStartTime))
}

func TestErrorMetricsEmitted(t *testing.T) {
	collector := setupTelemetry(t)

	RecordError("EXTERNAL_SERVICE_ERROR", 502)
	RecordErrorByEndpoint("/", "EXTERNAL_SERVICE_ERROR")
	RecordPanic()

	assert.Equal(t, 1, collector.CountMetricsByName(ErrorsTotalName))
	assert.Equal(t, 1, collector.CountMetricsByName(ErrorsByEndpointName))
	assert.Equal(t, 1, collector.CountMetricsByName(PanicsTotalName))
}

func TestMetricsNoopWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	RecordDispatch("getblock", "forwarded")
	RecordBackendCall("getblock", false, time.Millisecond)
	RecordChainInfoRefresh(true, time.Millisecond)
}
