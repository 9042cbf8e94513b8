// Package rpcclient provides a JSON-RPC client for the indexer's own API
// and for bitcoind-compatible nodes.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Protocol versions accepted by Options.Version.
const (
	Version1 = "1.0"
	Version2 = "2.0"
)

// Options configures a Client. Zero values select JSON-RPC 2.0, a 10s
// timeout and no authentication.
type Options struct {
	Timeout  time.Duration
	Version  string
	User     string
	Password string
	// Transport overrides the HTTP round tripper, mainly for tests.
	Transport http.RoundTripper
}

// Client is a JSON-RPC HTTP client.
type Client struct {
	endpoint string
	http     *http.Client
	opts     Options
	nextID   atomic.Uint64
}

// New creates a new JSON-RPC 2.0 client targeting the given endpoint URL.
func New(endpoint string) *Client {
	return NewWithOptions(endpoint, Options{})
}

// NewWithOptions creates a client with custom timeout, protocol version
// and basic-auth credentials.
func NewWithOptions(endpoint string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Version == "" {
		opts.Version = Version2
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		opts: opts,
	}
}

// request is a JSON-RPC request.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      uint64      `json:"id"`
}

// response is a JSON-RPC response.
type response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
	ID     uint64          `json:"id"`
}

// rpcError is a JSON-RPC error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the server responds with an error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes a JSON-RPC method and unmarshals the result into the provided pointer.
// If result is nil, the response result is discarded. A *json.RawMessage
// result receives the raw bytes for the caller to decode.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	req := request{
		JSONRPC: c.opts.Version,
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.opts.User != "" || c.opts.Password != "" {
		httpReq.SetBasicAuth(c.opts.User, c.opts.Password)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// bitcoind reports RPC errors with a non-200 status and a JSON body,
	// so the body is decoded before the status is judged.
	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("http status %d", resp.StatusCode)
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d", resp.StatusCode)
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	return nil
}

// ReadCookie reads a node auth cookie file of the form "user:password".
func ReadCookie(path string) (user, password string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read cookie: %w", err)
	}
	user, password, ok := strings.Cut(strings.TrimSpace(string(data)), ":")
	if !ok {
		return "", "", fmt.Errorf("malformed cookie file %s", path)
	}
	return user, password, nil
}
