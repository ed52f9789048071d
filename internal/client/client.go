// Package client is a typed client for the control-plane API. Calls go
// through a table of operations (see Operations) that names each endpoint's
// method, path template and wire entities.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oxidecomputer/console-sub002/internal/wire"
)

// UserHeader selects the acting user by id.
const UserHeader = "X-Mock-User"

// Client calls the API at a base URL.
type Client struct {
	baseURL    string
	http       *http.Client
	user       string
	userAgent  string
	camel      bool
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUser acts as the user with the given id.
func WithUser(id string) Option {
	return func(c *Client) { c.user = id }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithCamelCase makes Raw take and return camelCase documents.
func WithCamelCase() Option {
	return func(c *Client) { c.camel = true }
}

// WithRetries retries GET requests answered with 429 or 503, waiting
// backoff, 2*backoff, ... between attempts unless the server sends
// Retry-After.
func WithRetries(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) { c.maxRetries, c.backoff = maxRetries, backoff }
}

// WithLogger logs retries.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: "mockctl",
		backoff:   200 * time.Millisecond,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the URL the client sends requests to.
func (c *Client) BaseURL() string { return c.baseURL }

// CamelCase reports whether Raw documents are camelCase.
func (c *Client) CamelCase() bool { return c.camel }

// Params carries the path and query parameters of a call.
type Params struct {
	Path  map[string]string
	Query url.Values
}

// Do calls operation op. A non-nil body is encoded as the request document
// and a non-nil out receives the response document. Non-2xx responses are
// returned as *APIError.
func (c *Client) Do(ctx context.Context, op string, p Params, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
	}
	data, err := c.send(ctx, op, p, payload)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// Raw calls operation op with a document and returns the response document
// as is. In camel mode the body is translated to wire names before it is
// sent and the response is translated back.
func (c *Client) Raw(ctx context.Context, op string, p Params, body json.RawMessage) (json.RawMessage, error) {
	o, ok := LookupOperation(op)
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", op)
	}
	if c.camel && len(body) > 0 && o.Request != "" {
		var err error
		if body, err = wire.ConvertJSON(o.Request, body, wire.ToSnake); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	data, err := c.send(ctx, op, p, body)
	if err != nil {
		return nil, err
	}
	if c.camel && len(data) > 0 && o.Response != "" {
		if data, err = wire.ConvertJSON(o.Response, data, wire.ToCamel); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return data, nil
}

func (c *Client) send(ctx context.Context, op string, p Params, payload []byte) ([]byte, error) {
	o, ok := LookupOperation(op)
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", op)
	}
	path, err := o.FillPath(p.Path)
	if err != nil {
		return nil, err
	}
	target := c.baseURL + path
	if len(p.Query) > 0 {
		target += "?" + p.Query.Encode()
	}

	retries := 0
	if o.Method == http.MethodGet {
		retries = c.maxRetries
	}
	for attempt := 0; ; attempt++ {
		status, header, data, err := c.roundTrip(ctx, o.Method, target, payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if status >= 200 && status < 300 {
			return data, nil
		}
		if !retryable(status) || attempt >= retries {
			return nil, newAPIError(status, data)
		}

		delay := c.backoff * time.Duration(1<<uint(attempt))
		if s, err := strconv.Atoi(header.Get("Retry-After")); err == nil && s > 0 {
			delay = time.Duration(s) * time.Second
		}
		c.logger.Info("retrying request", "operation", op, "status", status, "attempt", attempt+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, method, target string, payload []byte) (int, http.Header, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set(UserHeader, c.user)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, resp.Header, data, nil
}
