package chaininfo

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

type fakeNode struct {
	mu        sync.Mutex
	chainInfo string
	mempool   []string
	err       error
	calls     int
}

func (f *fakeNode) Call(ctx context.Context, method string, params json.RawMessage, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	switch method {
	case core.MethodGetBlockchainInfo:
		return json.Unmarshal([]byte(f.chainInfo), out)
	case core.MethodGetRawMempool:
		raw, _ := json.Marshal(f.mempool)
		return json.Unmarshal(raw, out)
	}
	return errors.New("unexpected method " + method)
}

func (f *fakeNode) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func TestRefreshStoresSnapshot(t *testing.T) {
	updated := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	node := &fakeNode{chainInfo: `{"blocks":100}`, mempool: []string{"aa", "bb"}}
	cache := NewCache()
	refresher := &Refresher{Node: node, Cache: cache, Clock: func() time.Time { return updated }}

	require.Nil(t, cache.Current())
	require.NoError(t, refresher.Refresh(context.Background()))

	snapshot := cache.Current()
	require.NotNil(t, snapshot)
	assert.JSONEq(t, `{"blocks":100}`, string(snapshot.ChainInfo))
	assert.Equal(t, []string{"aa", "bb"}, snapshot.Txids())
	assert.Equal(t, updated, snapshot.UpdatedAt)
}

func TestRefreshKeepsPreviousSnapshotOnError(t *testing.T) {
	node := &fakeNode{chainInfo: `{"blocks":100}`}
	cache := NewCache()
	refresher := &Refresher{Node: node, Cache: cache}

	require.NoError(t, refresher.Refresh(context.Background()))
	first := cache.Current()

	node.setErr(errors.New("connection refused"))
	err := refresher.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "getblockchaininfo")
	assert.Same(t, first, cache.Current())
}

func TestRefreshEmptyMempool(t *testing.T) {
	node := &fakeNode{chainInfo: `{}`, mempool: nil}
	cache := NewCache()
	refresher := &Refresher{Node: node, Cache: cache}

	require.NoError(t, refresher.Refresh(context.Background()))
	assert.Equal(t, []string{}, cache.Current().Txids())
}

func TestRunStopsOnCancel(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	node := &fakeNode{err: errors.New("node down")}
	cache := NewCache()

	var attempts int
	var mu sync.Mutex
	refresher := &Refresher{
		Node:     node,
		Cache:    cache,
		Interval: 10 * time.Millisecond,
		Logger:   zap.New(observed),
		OnRefresh: func(err error, elapsed time.Duration) {
			mu.Lock()
			attempts++
			mu.Unlock()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- refresher.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}

	assert.Nil(t, cache.Current())
	assert.GreaterOrEqual(t, logs.FilterLevelExact(zapcore.WarnLevel).Len(), 1)
}

func TestRunRequiresConfiguration(t *testing.T) {
	require.Error(t, (&Refresher{}).Run(context.Background()))
}
