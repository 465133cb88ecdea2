package node

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

func TestForwardRelaysBodyWithBasicAuth(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rpcuser", user)
		assert.Equal(t, "rpcpass", pass)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))

		_, _ = w.Write([]byte(`{"result":{"hash":"00ab"},"error":null,"id":"nodeproxy"}`))
	}))
	defer server.Close()

	client, err := NewClient(Options{URL: server.URL, User: "rpcuser", Password: "rpcpass"})
	require.NoError(t, err)

	body, err := client.Forward(context.Background(), "getblock", json.RawMessage(`["00ab", 1]`), false)
	require.NoError(t, err)
	assert.Equal(t, `{"result":{"hash":"00ab"},"error":null,"id":"nodeproxy"}`, string(body))

	assert.Equal(t, "1.0", received["jsonrpc"])
	assert.Equal(t, "nodeproxy", received["id"])
	assert.Equal(t, "getblock", received["method"])
	assert.Equal(t, []any{"00ab", float64(1)}, received["params"])
}

func TestForwardDefaultsParamsToEmptyArray(t *testing.T) {
	var params json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call struct {
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		params = call.Params
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := NewClient(Options{URL: server.URL})
	require.NoError(t, err)

	_, err = client.Forward(context.Background(), "getbestblockhash", nil, false)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(params))
}

func TestForwardRelaysErrorStatusWithBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"result":null,"error":{"code":-5,"message":"Block not found"},"id":"nodeproxy"}`))
	}))
	defer server.Close()

	client, err := NewClient(Options{URL: server.URL})
	require.NoError(t, err)

	body, err := client.Forward(context.Background(), "getblock", json.RawMessage(`["ff"]`), false)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Block not found")
}

func TestForwardEmptyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewClient(Options{URL: server.URL})
	require.NoError(t, err)

	_, err = client.Forward(context.Background(), "getblock", nil, false)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestForwardHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient(Options{URL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Forward(ctx, "getblock", nil, false)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestForwardHardThrottle(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := NewClient(Options{URL: server.URL, HardThrottleRPS: 0.001, HardThrottleBurst: 1})
	require.NoError(t, err)

	_, err = client.Forward(context.Background(), "getblock", nil, true)
	require.NoError(t, err)

	// The burst is spent; an unthrottled call still goes through.
	_, err = client.Forward(context.Background(), "getblock", nil, false)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Forward(ctx, "getblock", nil, true)
	require.ErrorIs(t, err, core.ErrNotSent)
	assert.Equal(t, int32(2), calls.Load())
}

func TestForwardCancelledDuringThrottleWaitIsNotSent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := NewClient(Options{URL: server.URL, HardThrottleRPS: 0.001, HardThrottleBurst: 1})
	require.NoError(t, err)
	_, err = client.Forward(context.Background(), "getblock", nil, true)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Forward(ctx, "getblock", nil, true)
	require.ErrorIs(t, err, core.ErrNotSent)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestForwardTransportFailureIsNotMarkedNotSent(t *testing.T) {
	client, err := NewClient(Options{URL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = client.Forward(context.Background(), "getblock", nil, false)
	require.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrNotSent))
}

func TestCallDecodesResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":["aa","bb"],"error":null,"id":"nodeproxy"}`))
	}))
	defer server.Close()

	client, err := NewClient(Options{URL: server.URL})
	require.NoError(t, err)

	var txids []string
	require.NoError(t, client.Call(context.Background(), "getrawmempool", nil, &txids))
	assert.Equal(t, []string{"aa", "bb"}, txids)
}

func TestCallReturnsRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"result":null,"error":{"code":-28,"message":"Loading block index..."},"id":"nodeproxy"}`))
	}))
	defer server.Close()

	client, err := NewClient(Options{URL: server.URL})
	require.NoError(t, err)

	err = client.Call(context.Background(), "getblockchaininfo", nil, nil)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -28, rpcErr.Code)
	assert.Equal(t, "getblockchaininfo", rpcErr.Method)
	assert.Contains(t, err.Error(), "Loading block index")
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(Options{URL: "  "})
	require.Error(t, err)
}
