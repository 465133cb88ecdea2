package node

import (
	"fmt"
	"net/http"
)

// RPCError is an error member returned by the node.
type RPCError struct {
	Method  string `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("node %s: rpc error %d: %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("node rpc error %d: %s", e.Code, e.Message)
}

// StatusError reports a non-2xx node response with no usable body.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("node responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
