package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Path is the single endpoint every call is posted to.
const Path = "/jsonrpc"

const defaultTimeout = 15 * time.Second

// Client speaks the JSON-RPC 2.0 "call" envelope against one server.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-call timeout. A client passed to WithHTTPClient
// is copied rather than modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client posting to serverURL + Path.
func New(serverURL string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(serverURL), "/") + Path,
		http:     &http.Client{Timeout: defaultTimeout},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 && c.http.Timeout != c.timeout {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

// Endpoint returns the full URL calls are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  params `json:"params"`
	ID      string `json:"id"`
}

type params struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RemoteError    `json:"error"`
}

// Call invokes service.method with positional args and returns the raw result.
// A response carrying "error" yields a *RemoteError; anything that prevents
// reading a response yields a *TransportError.
func (c *Client) Call(ctx context.Context, service, method string, args ...any) (json.RawMessage, error) {
	label := metricLabel(service, method, args)
	start := time.Now()
	defer func() {
		RequestDuration.WithLabelValues(service, label).Observe(time.Since(start).Seconds())
	}()

	if args == nil {
		args = []any{}
	}
	reqID := uuid.NewString()
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  params{Service: service, Method: method, Args: args},
		ID:      reqID,
	})
	if err != nil {
		return nil, c.fail(service, label, &TransportError{Op: "encode", Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(service, label, &TransportError{Op: "request", Err: err})
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(service, label, &TransportError{Op: "send", Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, c.fail(service, label, &TransportError{
			Op:  "status",
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(b))),
		})
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, c.fail(service, label, &TransportError{Op: "decode", Err: err})
	}
	if out.Error != nil {
		return nil, c.fail(service, label, out.Error)
	}

	RequestsTotal.WithLabelValues(service, label, "ok").Inc()
	c.logger.Debug("rpc call", "service", service, "method", label, "request_id", reqID, "elapsed", time.Since(start))
	return out.Result, nil
}

func (c *Client) fail(service, label string, err error) error {
	outcome := "transport_error"
	if IsRemote(err) {
		outcome = "remote_error"
	}
	RequestsTotal.WithLabelValues(service, label, outcome).Inc()
	return err
}

// metricLabel keeps cardinality bounded: data calls are labelled by collection and operation.
func metricLabel(service, method string, args []any) string {
	if service == "object" && len(args) >= 5 {
		model, okModel := args[3].(string)
		op, okOp := args[4].(string)
		if okModel && okOp {
			return model + "." + op
		}
	}
	return method
}

// Authenticate exchanges credentials for a numeric identity.
func (c *Client) Authenticate(ctx context.Context, database, username, password string) (int64, error) {
	raw, err := c.Call(ctx, "common", "authenticate", database, username, password, map[string]any{})
	if err != nil {
		return 0, err
	}
	var uid int64
	if !Truthy(raw) || json.Unmarshal(raw, &uid) != nil || uid <= 0 {
		return 0, ErrAuthFailed
	}
	return uid, nil
}

// Truthy applies the store's success rule to a raw result: null, false, 0,
// the empty string and an absent result are falsy; everything else is truthy.
func Truthy(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	switch s {
	case "", "null", "false", `""`:
		return false
	}
	var n float64
	if err := json.Unmarshal([]byte(s), &n); err == nil {
		return n != 0
	}
	return true
}
