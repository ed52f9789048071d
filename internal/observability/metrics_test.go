package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDefaultMetricsConfig(t *testing.T) {
	cfg := DefaultMetricsConfig()
	if !cfg.Enabled {
		t.Error("expected metrics enabled by default")
	}
	if cfg.Namespace != "mockapi" {
		t.Errorf("Namespace = %q, want mockapi", cfg.Namespace)
	}
}

func TestMetricsConfigFromEnv(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"TRUE", true},
		{"false", false},
		{"0", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("MOCKAPI_METRICS_ENABLED", tt.value)
			t.Setenv("APP_VERSION", "1.2.3")
			cfg := MetricsConfigFromEnv()
			if cfg.Enabled != tt.want {
				t.Errorf("Enabled = %v, want %v", cfg.Enabled, tt.want)
			}
			if cfg.Version != "1.2.3" {
				t.Errorf("Version = %q, want 1.2.3", cfg.Version)
			}
		})
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())

	m.RecordHTTPRequest("GET", "/v1/projects", 200, 10*time.Millisecond)
	m.RecordHTTPRequest("GET", "/v1/projects", 200, 20*time.Millisecond)
	m.RecordHTTPRequest("GET", "/v1/projects/5fbab865-3d09-4c16-a22f-ca9c312b0286", 404, time.Millisecond)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/v1/projects", "200")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/v1/projects/{id}", "404")); got != 1 {
		t.Errorf("normalized requests = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.durations); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/v1/projects", "/v1/projects"},
		{"/v1/projects/mock-project", "/v1/projects/mock-project"},
		{"/v1/disks/935499b3-fd96-432a-9c21-83a3dc1eece4", "/v1/disks/{id}"},
		{"/v1/system/hardware/sleds/42", "/v1/system/hardware/sleds/{id}"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRecordErrorAndRateLimit(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())

	m.RecordError("ObjectNotFound")
	m.RecordError("ObjectNotFound")
	m.RecordRateLimitAllowed()
	m.RecordRateLimitRejected()
	m.RecordRateLimitRejected()

	if got := testutil.ToFloat64(m.faults.WithLabelValues("ObjectNotFound")); got != 2 {
		t.Errorf("faults = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.rateLimit.WithLabelValues("allowed")); got != 1 {
		t.Errorf("allowed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rateLimit.WithLabelValues("rejected")); got != 2 {
		t.Errorf("rejected = %v, want 2", got)
	}
}

func TestActiveConnections(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	m.IncrementActiveConnections()
	m.IncrementActiveConnections()
	m.DecrementActiveConnections()
	if got := testutil.ToFloat64(m.activeConnections); got != 1 {
		t.Errorf("active connections = %v, want 1", got)
	}
}

func TestRegisterCollectionSizes(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	m.RegisterCollectionSizes(func() map[string]int {
		return map[string]int{"projects": 4, "disks": 11}
	})

	expected := `
# HELP mockapi_store_records Number of records in each store collection.
# TYPE mockapi_store_records gauge
mockapi_store_records{collection="disks"} 11
mockapi_store_records{collection="projects"} 4
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "mockapi_store_records"); err != nil {
		t.Error(err)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(MetricsConfig{Namespace: "mockapi", Version: "test"})
	m.RecordHTTPRequest("POST", "/v1/disks", 201, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`mockapi_info{version="test"} 1`,
		`mockapi_http_requests_total{method="POST",path="/v1/disks",status="201"} 1`,
		"mockapi_http_request_duration_seconds_bucket",
		"mockapi_active_connections 0",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	var inFlight float64
	h := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight = testutil.ToFloat64(m.activeConnections)
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if inFlight != 1 {
		t.Errorf("active connections during request = %v, want 1", inFlight)
	}
	if got := testutil.ToFloat64(m.activeConnections); got != 0 {
		t.Errorf("active connections after request = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/v1/ping", "418")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.requests); n != 1 {
		t.Errorf("/metrics should not be recorded, got %d series", n)
	}
}

func TestRateLimitMetricsMiddleware(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	reject := false
	h := RateLimitMetricsMiddleware(m, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reject {
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	reject = true
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := testutil.ToFloat64(m.rateLimit.WithLabelValues("allowed")); got != 1 {
		t.Errorf("allowed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rateLimit.WithLabelValues("rejected")); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics = NoopMetrics()
	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	m.RecordError("Internal")
	m.RecordRateLimitAllowed()
	m.IncrementActiveConnections()
	m.DecrementActiveConnections()
	m.RegisterCollectionSizes(func() map[string]int { return nil })
	if m.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	for _, mw := range []func(http.Handler) http.Handler{
		MetricsMiddleware(m),
		RateLimitMetricsMiddleware(m, true),
		RateLimitMetricsMiddleware(NewMetrics(DefaultMetricsConfig()), false),
	} {
		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("pass-through status = %d", rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil handler status = %d, want 404", rec.Code)
	}
}

func TestMetricsContext(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	ctx := WithMetrics(context.Background(), m)
	if GetMetrics(ctx) != m {
		t.Error("expected metrics from context")
	}
	if GetMetrics(context.Background()) != nil {
		t.Error("expected nil metrics for empty context")
	}
}

func TestMetricsResponseWriterUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &metricsResponseWriter{ResponseWriter: rec}
	if w.Unwrap() != rec {
		t.Error("Unwrap should return the wrapped writer")
	}
}

func TestMetricsConcurrentAccess(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	srv := httptest.NewServer(MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	defer srv.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(srv.URL + "/v1/ping")
			if err != nil {
				t.Error(err)
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/v1/ping", "200")); got != 20 {
		t.Errorf("requests = %v, want 20", got)
	}
}
