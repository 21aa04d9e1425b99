package memos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/memtensor/openmem-mcp/internal/logging"
)

// Remote endpoint paths, joined onto the configured base URL.
const (
	PathAddMessage   = "/add/message"
	PathSearchMemory = "/search/memory"
	PathGetMessage   = "/get/message"
	PathDeleteMemory = "/delete/memory"
	PathAddFeedback  = "/add/feedback"
)

// DefaultSource is the provenance tag stamped onto every outbound request.
const DefaultSource = "openmem-mcp"

// Client issues authenticated POSTs to the OpenMem API. One Send call maps
// to exactly one HTTP request: no retries, no request queueing, no timeout
// beyond what the transport itself enforces.
type Client struct {
	baseURL string
	apiKey  string
	source  string
	client  *http.Client
	breaker *CircuitBreaker
	logger  *logging.Logger
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Used by tests to
// point the dispatcher at an httptest server transport.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithLogger injects a logger; a stderr console logger is used otherwise.
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithSource overrides the provenance tag stamped onto request bodies.
func WithSource(source string) ClientOption {
	return func(c *Client) {
		c.source = source
	}
}

// WithBreaker replaces the default circuit breaker, mainly so tests can
// tighten its thresholds.
func WithBreaker(cb *CircuitBreaker) ClientOption {
	return func(c *Client) {
		c.breaker = cb
	}
}

// NewClient creates a dispatcher for the OpenMem API at baseURL. The
// deliberately timeout-free http.Client means a dispatched call runs until
// the remote side answers or the connection dies; per-call deadlines are the
// transport's business, not ours.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		source:  DefaultSource,
		client:  &http.Client{},
		breaker: NewCircuitBreaker(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.New(nil, "info")
	}
	c.logger = c.logger.Sub("memos")
	return c
}

// Send POSTs body as JSON to baseURL+path and returns the parsed response.
//
// The provenance tag is stamped onto the body just before serialization.
// Non-2xx statuses return a *RemoteError carrying status code, status text,
// and the response body read best-effort. Network-level failures and an open
// circuit return a *TransportError. A 2xx response whose body is not valid
// JSON is returned as the literal body text rather than an error.
func (c *Client) Send(ctx context.Context, path string, body any) (any, error) {
	if s, ok := body.(sourceStamper); ok {
		s.stampSource(c.source)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	start := time.Now()
	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.client.Do(req)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			c.logger.Warn().
				Str("path", path).
				Str("breaker_state", c.breaker.State()).
				Msg("request short-circuited")
		}
		return nil, &TransportError{Op: "post " + path, Err: err}
	}

	resp := result.(*http.Response)
	defer resp.Body.Close()

	// Best effort: an unreadable body degrades to the empty string so the
	// status information still reaches the caller.
	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		raw = nil
	}

	c.logger.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("openmem request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       string(raw),
		}
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return string(raw), nil
	}
	return parsed, nil
}
