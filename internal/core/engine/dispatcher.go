package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

// Outcome identifies which exit a dispatched request took.
type Outcome string

const (
	OutcomeForbidden   Outcome = "forbidden"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeFastPath    Outcome = "fast_path"
	OutcomeForwarded   Outcome = "forwarded"
)

// Reply is the JSON body produced for one request.
type Reply struct {
	Outcome Outcome
	Body    []byte
}

// Forwarder relays an approved call to the backend node and returns its raw
// response text. Cancelling ctx must abort the backend call.
type Forwarder interface {
	Forward(ctx context.Context, method string, params json.RawMessage, useHardThrottle bool) ([]byte, error)
}

// Logger is the subset of the structured logger used by the dispatcher.
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// Dispatcher orchestrates the allow-list, method throttles, fast paths and
// forwarding for each request. It holds no per-request state.
type Dispatcher struct {
	Allowed      MethodSet
	Throttles    map[string]RateLimit
	Limiter      *SlidingWindowLimiter
	FastPaths    map[string]FastPathFunc
	Snapshot     SnapshotProvider
	Forwarder    Forwarder
	HardThrottle bool
	Logger       Logger
	Clock        func() time.Time
}

// Dispatch resolves req to exactly one reply. Policy rejections and rate
// limiting always produce a reply; forwarder errors and context
// cancellation are returned as-is.
func (d *Dispatcher) Dispatch(ctx context.Context, req core.RPCRequest) (Reply, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}

	method := req.Method

	if !d.Allowed.IsAllowed(method) {
		return Reply{Outcome: OutcomeForbidden, Body: ForbiddenPayload()}, nil
	}

	var (
		reserved   bool
		reservedAt time.Time
	)
	if limit, ok := d.Throttles[method]; ok {
		reservedAt, reserved = d.admit(method, limit)
		if !reserved {
			return Reply{Outcome: OutcomeRateLimited, Body: RateLimitedPayload()}, nil
		}
	}
	release := func() {
		if reserved {
			d.Limiter.Release(method, reservedAt)
		}
	}

	if err := ctx.Err(); err != nil {
		release()
		return Reply{}, err
	}

	if respond, ok := d.FastPaths[method]; ok && respond != nil {
		var snapshot *core.ChainSnapshot
		if d.Snapshot != nil {
			snapshot = d.Snapshot.Current()
		}
		body, err := encodeSuccess(req.ID, respond(snapshot))
		if err != nil {
			return Reply{}, fmt.Errorf("encode %s result: %w", method, err)
		}
		return Reply{Outcome: OutcomeFastPath, Body: body}, nil
	}

	if d.Forwarder == nil {
		release()
		return Reply{}, fmt.Errorf("no forwarder configured for %s", method)
	}

	body, err := d.Forwarder.Forward(ctx, method, req.Params, d.HardThrottle)
	if err != nil {
		// Only calls that reached the node count against the window.
		if errors.Is(err, core.ErrNotSent) {
			release()
		}
		return Reply{}, err
	}
	return Reply{Outcome: OutcomeForwarded, Body: body}, nil
}

func (d *Dispatcher) admit(method string, limit RateLimit) (time.Time, bool) {
	limiter := d.Limiter
	if limiter == nil {
		return time.Time{}, false
	}

	now := d.now()
	at, ok := limiter.Reserve(method, limit, now)
	if !ok {
		if d.Logger != nil {
			fields := []zap.Field{
				zap.String("method", method),
				zap.Int("count", limiter.Count(method, limit.WindowDuration, now)),
				zap.Int("max_calls", limit.RequestsPerWindow),
			}
			if resetIn, ok := limiter.TimeUntilReset(method, limit.WindowDuration, now); ok {
				fields = append(fields, zap.Duration("reset_in", resetIn))
			}
			d.Logger.Warn("Rate limit exceeded", fields...)
		}
		return time.Time{}, false
	}

	if d.Logger != nil {
		d.Logger.Info("Throttled method admitted",
			zap.String("method", method),
			zap.Int("count", limiter.Count(method, limit.WindowDuration, now)),
			zap.Int("max_calls", limit.RequestsPerWindow))
	}
	return at, true
}

// Status reports current usage for every throttled method, sorted by name.
func (d *Dispatcher) Status() []core.RateLimitStatus {
	now := d.now()
	methods := make([]string, 0, len(d.Throttles))
	for method := range d.Throttles {
		methods = append(methods, method)
	}
	sort.Strings(methods)

	statuses := make([]core.RateLimitStatus, 0, len(methods))
	for _, method := range methods {
		limit := d.Throttles[method]
		var (
			count   int
			resetIn time.Duration
			ok      bool
		)
		if d.Limiter != nil {
			count = d.Limiter.Count(method, limit.WindowDuration, now)
			resetIn, ok = d.Limiter.TimeUntilReset(method, limit.WindowDuration, now)
		}
		statuses = append(statuses, core.NewRateLimitStatus(method, limit.RequestsPerWindow, limit.WindowDuration, count, resetIn, ok))
	}
	return statuses
}

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Clock != nil {
		return d.Clock()
	}
	return time.Now().UTC()
}
