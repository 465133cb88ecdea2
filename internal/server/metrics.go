package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/nodeproxy/nodeproxy/internal/observability"
)

var metricsProxyClient = &http.Client{
	Timeout: 5 * time.Second,
}

var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// MetricsHandler serves the Prometheus exporter's output on the main HTTP
// server. fallbackPort is used until the exporter reports its bound port.
func MetricsHandler(fallbackPort int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if observability.PrometheusExporter == nil {
			HandleError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Metrics exporter not initialized"))
			return
		}

		port := observability.GetMetricsPort()
		if port == 0 {
			port = fallbackPort
		}
		metricsURL := fmt.Sprintf("http://127.0.0.1:%d/metrics", port)

		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, metricsURL, nil)
		if err != nil {
			envelope, _ := errors.NewErrorEnvelope("INTERNAL_ERROR", "Unable to construct metrics request").
				WithContext(map[string]interface{}{
					"metrics_url":    metricsURL,
					"original_error": err.Error(),
				})
			HandleError(w, r, envelope)
			return
		}
		if accept := r.Header.Get("Accept"); accept != "" {
			req.Header.Set("Accept", accept)
		}

		resp, err := metricsProxyClient.Do(req)
		if err != nil {
			envelope, _ := errors.NewErrorEnvelope("EXTERNAL_SERVICE_ERROR", "Prometheus exporter unavailable").
				WithContext(map[string]interface{}{
					"metrics_url":    metricsURL,
					"original_error": err.Error(),
				})
			HandleError(w, r, envelope)
			return
		}
		defer func() { _ = resp.Body.Close() }()

		for key, values := range resp.Header {
			if hopByHopHeaders[http.CanonicalHeaderKey(key)] {
				continue
			}
			for _, v := range values {
				w.Header().Add(key, v)
			}
		}
		if resp.Header.Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		}

		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			observability.Logger().Warn("Failed to write metrics response", zap.Error(err))
		}
	}
}
