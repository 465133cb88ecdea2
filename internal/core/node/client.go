package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

// requestID is sent as the JSON-RPC id on every backend call.
const requestID = "nodeproxy"

const defaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration

	// HardThrottleRPS and HardThrottleBurst bound backend calls made with the
	// hard throttle flag. Zero RPS disables the throttle.
	HardThrottleRPS   float64
	HardThrottleBurst int

	// Transport overrides the base round tripper. It is always wrapped for
	// trace propagation.
	Transport http.RoundTripper
}

// Client talks JSON-RPC 1.0 to the backend node over HTTP.
type Client struct {
	url      string
	user     string
	password string
	http     *http.Client
	throttle *rate.Limiter
}

// NewClient returns a client for opts.URL.
func NewClient(opts Options) (*Client, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, errors.New("node url is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	client := &Client{
		url:      url,
		user:     opts.User,
		password: opts.Password,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(base),
		},
	}

	if opts.HardThrottleRPS > 0 {
		burst := opts.HardThrottleBurst
		if burst <= 0 {
			burst = 1
		}
		client.throttle = rate.NewLimiter(rate.Limit(opts.HardThrottleRPS), burst)
	}

	return client, nil
}

type rpcCall struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Forward sends method and params to the node and returns the response body
// unchanged. Non-2xx responses that carry a body are relayed as-is because
// nodes report RPC errors that way.
func (c *Client) Forward(ctx context.Context, method string, params json.RawMessage, useHardThrottle bool) ([]byte, error) {
	if c == nil {
		return nil, errors.New("node client not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if useHardThrottle && c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %w", core.ErrNotSent, ctxErr)
			}
			return nil, fmt.Errorf("%w: hard throttle: %w", core.ErrNotSent, err)
		}
	}

	body, status, err := c.post(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return body, nil
	}
	if len(bytes.TrimSpace(body)) > 0 {
		return body, nil
	}
	return nil, &StatusError{StatusCode: status}
}

// Call invokes method and decodes the result into out. A non-null error
// member in the node response is returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, params json.RawMessage, out any) error {
	if c == nil {
		return errors.New("node client not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, status, err := c.post(ctx, method, params)
	if err != nil {
		return err
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return &StatusError{StatusCode: status}
		}
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		envelope.Error.Method = method
		return envelope.Error
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: status}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, method string, params json.RawMessage) ([]byte, int, error) {
	if len(bytes.TrimSpace(params)) == 0 || bytes.Equal(bytes.TrimSpace(params), []byte("null")) {
		params = json.RawMessage(`[]`)
	}

	payload, err := json.Marshal(rpcCall{JSONRPC: "1.0", ID: requestID, Method: method, Params: params})
	if err != nil {
		return nil, 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" || c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		return nil, 0, fmt.Errorf("node request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
