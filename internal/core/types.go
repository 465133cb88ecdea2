package core

import (
	"encoding/json"
	"errors"
	"time"
)

// Fast-path method names answered from the chain-info snapshot.
const (
	MethodGetBlockchainInfo = "getblockchaininfo"
	MethodGetRawMempool     = "getrawmempool"

	// MethodImportLightWalletAddress is throttled by default.
	MethodImportLightWalletAddress = "importlightwalletaddress"
)

// ErrNotSent marks a forwarding failure that happened before any bytes were
// sent to the node, e.g. cancellation while waiting on the hard throttle.
var ErrNotSent = errors.New("request not sent to node")

// RPCRequest is an incoming JSON-RPC call. Params and ID are kept raw so
// they can be relayed and echoed without interpretation.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// RPCSuccess is the success response shape.
type RPCSuccess struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result"`
}

// RPCFailure is the error response shape. ID is always null.
type RPCFailure struct {
	ID    json.RawMessage `json:"id"`
	Error RPCErrorBody    `json:"error"`
}

// RPCErrorBody carries a JSON-RPC error code and message.
type RPCErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// UnconfirmedTx is a mempool entry held in the chain-info snapshot.
type UnconfirmedTx struct {
	Txid string `json:"txid"`
}

// ChainSnapshot is the locally maintained view of the backend node used by
// fast-path responders. Values are replaced wholesale, never mutated.
type ChainSnapshot struct {
	ChainInfo      json.RawMessage `json:"chain_info"`
	UnconfirmedTxs []UnconfirmedTx `json:"unconfirmed_txs"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Txids returns the mempool transaction ids, never nil.
func (s *ChainSnapshot) Txids() []string {
	if s == nil || len(s.UnconfirmedTxs) == 0 {
		return []string{}
	}
	ids := make([]string, 0, len(s.UnconfirmedTxs))
	for _, tx := range s.UnconfirmedTxs {
		ids = append(ids, tx.Txid)
	}
	return ids
}
