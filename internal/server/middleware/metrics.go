package middleware

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nodeproxy/nodeproxy/internal/observability"
)

// jsonRPCEndpoint labels POST / so dashboards can separate proxy traffic
// from the landing page.
const jsonRPCEndpoint = "jsonrpc"

// knownEndpoints bounds the endpoint label when chi has no route pattern,
// e.g. for 404s and 405s.
var knownEndpoints = map[string]string{
	"/":                 "/",
	"/health":           "/health",
	"/health/live":      "/health/*",
	"/health/ready":     "/health/*",
	"/health/startup":   "/health/*",
	"/version":          "/version",
	"/metrics":          "/metrics",
	"/admin/ratelimits": "/admin/ratelimits",
	"/admin/signal":     "/admin/signal",
}

// statusRecorder captures the status code and bytes written.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// countingBody counts bytes the handler actually read. The proxy caps
// bodies, so Content-Length alone can overstate what was consumed.
type countingBody struct {
	io.ReadCloser
	n int64
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	return n, err
}

func endpointLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			if pattern == "/" && r.Method == http.MethodPost {
				return jsonRPCEndpoint
			}
			return pattern
		}
	}
	if label, ok := knownEndpoints[r.URL.Path]; ok {
		return label
	}
	return "/unknown"
}

// RequestMetrics emits per-request HTTP telemetry. Labels never include the
// raw path or the JSON-RPC method; proxy-level series live in internal/metrics.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		var body *countingBody
		if r.Body != nil && r.Body != http.NoBody {
			body = &countingBody{ReadCloser: r.Body}
			r.Body = body
		}

		next.ServeHTTP(rec, r)

		var requestBytes int64
		if body != nil {
			requestBytes = body.n
		}
		emitRequestMetrics(r, rec, requestBytes, time.Since(start))
	})
}

func emitRequestMetrics(r *http.Request, rec *statusRecorder, requestBytes int64, elapsed time.Duration) {
	endpoint := endpointLabel(r)
	status := strconv.Itoa(rec.status)
	labels := map[string]string{
		"method":   r.Method,
		"endpoint": endpoint,
		"status":   status,
	}
	sizeLabels := map[string]string{"method": r.Method, "endpoint": endpoint}

	sys := observability.TelemetrySystem
	_ = sys.Counter("http_requests_total", 1, labels)
	_ = sys.Histogram("http_request_duration_ms", elapsed, labels)
	_ = sys.Gauge("http_request_size_bytes", float64(requestBytes), sizeLabels)
	_ = sys.Gauge("http_response_size_bytes", float64(rec.written), sizeLabels)

	if rec.status >= 400 {
		errorType := "client_error"
		if rec.status >= 500 {
			errorType = "server_error"
		}
		_ = sys.Counter("http_errors_total", 1, map[string]string{
			"method":     r.Method,
			"endpoint":   endpoint,
			"status":     status,
			"error_type": errorType,
		})
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Debug("HTTP request completed",
			zap.String("method", r.Method),
			zap.String("endpoint", endpoint),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
			zap.Int64("request_bytes", requestBytes),
			zap.Int64("response_bytes", rec.written),
			zap.String("request_id", GetRequestID(r.Context())),
		)
	}
}
