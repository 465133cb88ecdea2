package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

func TestRawMempoolResultNeverNull(t *testing.T) {
	body, err := encodeSuccess(json.RawMessage(`1`), rawMempoolResult(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"result":[]}`, string(body))

	body, err = encodeSuccess(json.RawMessage(`1`), rawMempoolResult(&core.ChainSnapshot{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"result":[]}`, string(body))
}

func TestRawMempoolResultListsTxids(t *testing.T) {
	snapshot := &core.ChainSnapshot{UnconfirmedTxs: []core.UnconfirmedTx{{Txid: "aa"}, {Txid: "bb"}}}

	body, err := encodeSuccess(json.RawMessage(`"x"`), rawMempoolResult(snapshot))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","result":["aa","bb"]}`, string(body))
}

func TestBlockchainInfoResult(t *testing.T) {
	body, err := encodeSuccess(json.RawMessage(`7`), blockchainInfoResult(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"result":null}`, string(body))

	snapshot := &core.ChainSnapshot{ChainInfo: json.RawMessage(`{"chain":"main","blocks":100}`)}
	body, err = encodeSuccess(json.RawMessage(`7`), blockchainInfoResult(snapshot))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"result":{"chain":"main","blocks":100}}`, string(body))
}

func TestErrorPayloadsUseNullID(t *testing.T) {
	assert.JSONEq(t,
		`{"id":null,"error":{"code":-2,"message":"Forbidden by safe mode or invalid method name"}}`,
		string(ForbiddenPayload()))
	assert.JSONEq(t,
		`{"id":null,"error":{"code":-4,"message":"Rate limit exceeded. This method is limited globally. Please try again later."}}`,
		string(RateLimitedPayload()))
}
