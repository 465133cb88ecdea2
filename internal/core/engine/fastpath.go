package engine

import (
	"encoding/json"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

// SnapshotProvider exposes the current chain-info snapshot. Implementations
// must allow concurrent reads; the value may lag the node.
type SnapshotProvider interface {
	Current() *core.ChainSnapshot
}

// FastPathFunc builds a result for a method answered from local state.
type FastPathFunc func(snapshot *core.ChainSnapshot) any

// DefaultFastPaths answers the two high-frequency polling reads.
var DefaultFastPaths = map[string]FastPathFunc{
	core.MethodGetBlockchainInfo: blockchainInfoResult,
	core.MethodGetRawMempool:     rawMempoolResult,
}

func blockchainInfoResult(snapshot *core.ChainSnapshot) any {
	if snapshot == nil || len(snapshot.ChainInfo) == 0 {
		return json.RawMessage(nil)
	}
	return snapshot.ChainInfo
}

func rawMempoolResult(snapshot *core.ChainSnapshot) any {
	return snapshot.Txids()
}
