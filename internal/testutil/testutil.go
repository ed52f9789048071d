// Package testutil provides a fully wired mock API server for integration tests.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oxidecomputer/console-sub002/internal/api"
	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/client"
	"github.com/oxidecomputer/console-sub002/internal/events"
	"github.com/oxidecomputer/console-sub002/internal/fixtures"
	"github.com/oxidecomputer/console-sub002/internal/observability"
	"github.com/oxidecomputer/console-sub002/internal/storage"
)

// TestServerConfig holds configuration for creating a test server.
type TestServerConfig struct {
	// EnableRateLimit enables rate limiting middleware.
	EnableRateLimit bool
	// RateLimitConfig configures rate limiting if enabled.
	RateLimitConfig api.RateLimitConfig
	// EnableMetrics enables metrics collection and the /metrics endpoint.
	EnableMetrics bool
	// EnableCSRF enables the double-submit CSRF guard.
	EnableCSRF bool
	// Latency delays every API response.
	Latency time.Duration
	// TransitionDelay is how long instance run states take to settle.
	TransitionDelay time.Duration
	// Fixtures replaces the canonical fixture set.
	Fixtures *storage.InitialState
}

// DefaultTestServerConfig returns a basic test server configuration: no rate
// limit, no metrics, immediate run-state transitions.
func DefaultTestServerConfig() TestServerConfig {
	return TestServerConfig{}
}

// TestServerComponents holds all the components created for a test server.
type TestServerComponents struct {
	// Server is the test HTTP server.
	Server *httptest.Server
	// Store is the mock store behind the API.
	Store *storage.Store
	// AuditLogger records every mutating request.
	AuditLogger *audit.MemoryAuditLogger
	// Events records every successful mutation.
	Events *events.Recorder
	// Metrics is the metrics collector, nil unless enabled.
	Metrics *observability.Metrics
	// Logger is the structured logger.
	Logger observability.Logger
}

// NewTestServer creates a fully configured test server. It is shut down
// when the test ends.
func NewTestServer(t *testing.T, cfg TestServerConfig) *TestServerComponents {
	t.Helper()

	initial := cfg.Fixtures
	if initial == nil {
		initial = fixtures.MustLoad()
	}
	store := storage.New(initial, storage.WithTransitionDelay(cfg.TransitionDelay))

	logger := observability.NewLogger(observability.Config{
		Level:  "debug",
		Format: "json",
		Output: io.Discard,
	})

	var metrics *observability.Metrics
	if cfg.EnableMetrics {
		metrics = observability.NewMetrics(observability.MetricsConfig{
			Namespace: "mockapi_test",
			Version:   "test",
		})
		metrics.RegisterCollectionSizes(store.Counts)
	}

	auditLogger := audit.NewMemoryAuditLogger(audit.WithMaxEntries(1000))
	recorder := &events.Recorder{}

	mux := http.NewServeMux()
	srv := api.NewServer(mux, store, logger, metrics, auditLogger)
	srv.SetPublisher(recorder)
	srv.RegisterRoutes()

	// Build middleware chain, outermost first.
	var chain []api.Middleware
	if metrics != nil {
		chain = append(chain, observability.MetricsMiddleware(metrics))
	}
	chain = append(chain,
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger.Slog()),
		api.CurrentUserMiddleware(),
	)
	if cfg.EnableCSRF {
		chain = append(chain, api.CSRFMiddleware())
	}
	if cfg.EnableRateLimit {
		if metrics != nil {
			chain = append(chain, observability.RateLimitMetricsMiddleware(metrics, cfg.RateLimitConfig.Enabled()))
		}
		chain = append(chain, api.RateLimitMiddleware(cfg.RateLimitConfig, logger.Slog()))
	}
	if cfg.Latency > 0 {
		chain = append(chain, api.LatencyMiddleware(cfg.Latency))
	}

	testServer := httptest.NewServer(api.ApplyMiddlewares(mux, chain...))
	t.Cleanup(func() {
		testServer.Close()
		_ = store.Close()
	})

	return &TestServerComponents{
		Server:      testServer,
		Store:       store,
		AuditLogger: auditLogger,
		Events:      recorder,
		Metrics:     metrics,
		Logger:      logger,
	}
}

// Client returns an API client pointed at the test server.
func (c *TestServerComponents) Client(opts ...client.Option) *client.Client {
	opts = append([]client.Option{client.WithHTTPClient(c.Server.Client())}, opts...)
	return client.New(c.Server.URL, opts...)
}

// URL returns the full URL for a given path.
func (c *TestServerComponents) URL(path string) string {
	return c.Server.URL + path
}

// Get performs a GET against the test server.
func (c *TestServerComponents) Get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := c.Server.Client().Get(c.URL(path))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// ReadBody reads and closes a response body.
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(data)
}
