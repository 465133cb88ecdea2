package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nodeproxy/nodeproxy/internal/core"
	"github.com/nodeproxy/nodeproxy/internal/core/engine"
	apperrors "github.com/nodeproxy/nodeproxy/internal/errors"
	"github.com/nodeproxy/nodeproxy/internal/metrics"
	"github.com/nodeproxy/nodeproxy/internal/observability"
)

// DefaultMaxBodyBytes bounds a JSON-RPC request body when no limit is set.
const DefaultMaxBodyBytes int64 = 1 << 20

// Dispatcher resolves one JSON-RPC request to a reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, req core.RPCRequest) (engine.Reply, error)
}

// ProxyHandler serves POST / by handing decoded requests to a Dispatcher.
// Every dispatch outcome is written as HTTP 200 with a JSON body.
type ProxyHandler struct {
	Dispatcher   Dispatcher
	MaxBodyBytes int64
	Logger       observability.FieldLogger
}

// NewProxyHandler returns a handler with defaults applied.
func NewProxyHandler(dispatcher Dispatcher, maxBodyBytes int64) *ProxyHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &ProxyHandler{Dispatcher: dispatcher, MaxBodyBytes: maxBodyBytes}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	started := time.Now()
	reply, err := h.Dispatcher.Dispatch(ctx, req)
	elapsed := time.Since(started)

	if err != nil {
		h.handleDispatchError(w, r, req.Method, err, elapsed)
		return
	}

	metrics.RecordDispatch(req.Method, string(reply.Outcome))
	switch reply.Outcome {
	case engine.OutcomeForwarded:
		metrics.RecordBackendCall(req.Method, true, elapsed)
	case engine.OutcomeRateLimited:
		metrics.RecordRateLimited(req.Method)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(reply.Body)
}

// decode reads and parses the body. On failure it has already answered.
func (h *ProxyHandler) decode(w http.ResponseWriter, r *http.Request) (core.RPCRequest, bool) {
	var req core.RPCRequest

	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondWithError(w, r, apperrors.WrapPayloadTooLarge(r.Context(), err, "request body too large"))
		case r.Context().Err() != nil:
			// Client is gone; nothing to answer.
		default:
			respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "unable to read request body"))
		}
		return req, false
	}

	if err := json.Unmarshal(body, &req); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body is not a JSON-RPC object"))
		return req, false
	}
	return req, true
}

func (h *ProxyHandler) handleDispatchError(w http.ResponseWriter, r *http.Request, method string, err error, elapsed time.Duration) {
	if r.Context().Err() != nil {
		h.logger().Debug("Client cancelled request",
			zap.String("method", method),
			zap.Duration("elapsed", elapsed))
		return
	}

	metrics.RecordDispatch(method, "backend_error")
	metrics.RecordBackendCall(method, false, elapsed)

	if errors.Is(err, context.DeadlineExceeded) {
		respondWithError(w, r, apperrors.WrapTimeout(r.Context(), err, "backend node timed out"))
		return
	}
	respondWithError(w, r, apperrors.WrapExternalService(r.Context(), err, "backend node request failed"))
}

func (h *ProxyHandler) logger() observability.FieldLogger {
	if h.Logger != nil {
		return h.Logger
	}
	return observability.Logger()
}

// LandingHandler answers GET /. With a target it redirects there (302);
// otherwise it answers 200 with an empty body.
func LandingHandler(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if target != "" {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
