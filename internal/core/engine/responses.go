package engine

import (
	"encoding/json"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

// JSON-RPC error codes returned by the proxy itself.
const (
	CodeForbiddenBySafeMode = -2 // RPC_FORBIDDEN_BY_SAFE_MODE
	CodeRateLimited         = -4 // RPC_RATE_LIMITED
)

const (
	messageForbidden   = "Forbidden by safe mode or invalid method name"
	messageRateLimited = "Rate limit exceeded. This method is limited globally. Please try again later."
)

// Pre-serialized error payloads, built once at init. Callers must not
// modify the slices returned by the accessors below.
var (
	forbiddenPayload   = mustEncodeFailure(CodeForbiddenBySafeMode, messageForbidden)
	rateLimitedPayload = mustEncodeFailure(CodeRateLimited, messageRateLimited)
)

// ForbiddenPayload returns the RPC_FORBIDDEN_BY_SAFE_MODE response body.
func ForbiddenPayload() []byte {
	return forbiddenPayload
}

// RateLimitedPayload returns the RPC_RATE_LIMITED response body.
func RateLimitedPayload() []byte {
	return rateLimitedPayload
}

// Error responses carry a null id regardless of the request id. Clients
// depend on this shape.
func mustEncodeFailure(code int, message string) []byte {
	payload, err := json.Marshal(core.RPCFailure{
		ID:    nil,
		Error: core.RPCErrorBody{Code: code, Message: message},
	})
	if err != nil {
		panic(err)
	}
	return payload
}

func encodeSuccess(id json.RawMessage, result any) ([]byte, error) {
	return json.Marshal(core.RPCSuccess{ID: id, Result: result})
}
