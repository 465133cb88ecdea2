package chaininfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

const (
	defaultInterval = 5 * time.Second
	defaultTimeout  = 10 * time.Second
)

// Caller is the node operation the refresher depends on.
type Caller interface {
	Call(ctx context.Context, method string, params json.RawMessage, out any) error
}

// Logger is the subset of the structured logger used by the refresher.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// Refresher keeps a Cache current by polling the node.
type Refresher struct {
	Node     Caller
	Cache    *Cache
	Interval time.Duration
	Timeout  time.Duration
	Logger   Logger
	Clock    func() time.Time

	// OnRefresh, when set, observes each attempt's outcome and duration.
	OnRefresh func(err error, elapsed time.Duration)
}

// Run refreshes immediately and then on every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	if r == nil || r.Node == nil || r.Cache == nil {
		return errors.New("chaininfo refresher is not configured")
	}

	interval := r.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.refreshAndReport(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Refresher) refreshAndReport(ctx context.Context) {
	started := time.Now()
	err := r.Refresh(ctx)
	if r.OnRefresh != nil {
		r.OnRefresh(err, time.Since(started))
	}
	if err != nil && ctx.Err() == nil && r.Logger != nil {
		r.Logger.Warn("Chain info refresh failed; keeping previous snapshot", zap.Error(err))
	}
}

// Refresh performs a single poll. On failure the cached snapshot is left
// untouched.
func (r *Refresher) Refresh(ctx context.Context) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var chainInfo json.RawMessage
	if err := r.Node.Call(ctx, core.MethodGetBlockchainInfo, nil, &chainInfo); err != nil {
		return fmt.Errorf("refresh %s: %w", core.MethodGetBlockchainInfo, err)
	}

	var txids []string
	if err := r.Node.Call(ctx, core.MethodGetRawMempool, nil, &txids); err != nil {
		return fmt.Errorf("refresh %s: %w", core.MethodGetRawMempool, err)
	}

	snapshot := &core.ChainSnapshot{
		ChainInfo:      chainInfo,
		UnconfirmedTxs: make([]core.UnconfirmedTx, 0, len(txids)),
		UpdatedAt:      r.now(),
	}
	for _, txid := range txids {
		snapshot.UnconfirmedTxs = append(snapshot.UnconfirmedTxs, core.UnconfirmedTx{Txid: txid})
	}
	r.Cache.Store(snapshot)

	if r.Logger != nil {
		r.Logger.Debug("Chain info refreshed", zap.Int("mempool_size", len(txids)))
	}
	return nil
}

func (r *Refresher) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
