package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/oxidecomputer/console-sub002/internal/audit"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	var captured string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get(requestIDHeader); got == "" {
		t.Fatalf("expected request id header to be set")
	}
	if captured == "" {
		t.Fatalf("expected request id in context")
	}
}

func TestRequestIDMiddlewarePreservesValidIncoming(t *testing.T) {
	const original = "req-123"
	var captured string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, original)

	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get(requestIDHeader); got != original {
		t.Fatalf("expected request id header %q, got %q", original, got)
	}
	if captured != original {
		t.Fatalf("expected context request id %q, got %q", original, captured)
	}
}

func TestRequestIDMiddlewareRejectsInvalidID(t *testing.T) {
	for _, input := range []string{
		"abcdefghijklmnopqrstuvwxyz0123456789abcdefghijklmnopqrstuvwxyz0123456789",
		"req@123",
		"<script>alert(1)</script>",
	} {
		t.Run(input, func(t *testing.T) {
			var captured string
			handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = RequestIDFromContext(r.Context())
			}))
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(requestIDHeader, input)
			handler.ServeHTTP(rr, req)

			if captured == input || captured == "" {
				t.Fatalf("expected a fresh request id, got %q", captured)
			}
			if rr.Header().Get(requestIDHeader) != captured {
				t.Fatalf("expected response header to carry %q", captured)
			}
		})
	}
}

func TestSanitizeRequestID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid alphanumeric", "abc123", "abc123"},
		{"valid with dashes", "req-123-abc", "req-123-abc"},
		{"valid with underscores and dots", "req_123.abc", "req_123.abc"},
		{"valid uuid format", "550e8400-e29b-41d4-a716-446655440000", "550e8400-e29b-41d4-a716-446655440000"},
		{"empty string", "", ""},
		{"whitespace only", "   ", ""},
		{"trimmed whitespace", "  req-123  ", "req-123"},
		{"exactly 64 chars", "abcdefghijklmnopqrstuvwxyz0123456789abcdefghijklmnopqrstuvwxyz12", "abcdefghijklmnopqrstuvwxyz0123456789abcdefghijklmnopqrstuvwxyz12"},
		{"65 chars rejected", "abcdefghijklmnopqrstuvwxyz0123456789abcdefghijklmnopqrstuvwxyz123", ""},
		{"invalid spaces", "req 123", ""},
		{"invalid newline", "req\n123", ""},
		{"invalid unicode", "req-123é", ""},
		{"invalid slash", "req/123", ""},
		{"invalid colon", "req:123", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeRequestID(tt.input); got != tt.want {
				t.Errorf("sanitizeRequestID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRateLimitMiddlewareBlocksAfterBurstExhausted(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 5, Burst: 1}
	handler := RateLimitMiddleware(cfg, newTestLogger())(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", second.Code)
	}

	var resp apiError
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected json error response: %v", err)
	}
	if resp.ErrorCode != CodeTooManyRequests || resp.Message != "too many requests" {
		t.Fatalf("unexpected error body %+v", resp)
	}

	// Wait for a token to replenish and try again.
	time.Sleep(300 * time.Millisecond)
	third := httptest.NewRecorder()
	handler.ServeHTTP(third, httptest.NewRequest(http.MethodGet, "/", nil))
	if third.Code != http.StatusOK {
		t.Fatalf("expected third request after wait to succeed, got %d", third.Code)
	}
}

func TestRateLimitMiddlewareHeaders(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 10, Burst: 5}
	handler := RateLimitMiddleware(cfg, newTestLogger())(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	limit, err := strconv.ParseFloat(rr.Header().Get("X-RateLimit-Limit"), 64)
	if err != nil || limit != 10 {
		t.Fatalf("expected X-RateLimit-Limit 10, got %q", rr.Header().Get("X-RateLimit-Limit"))
	}
	remaining, err := strconv.Atoi(rr.Header().Get("X-RateLimit-Remaining"))
	if err != nil || remaining < 0 || remaining > 5 {
		t.Fatalf("expected X-RateLimit-Remaining between 0 and 5, got %q", rr.Header().Get("X-RateLimit-Remaining"))
	}
	reset, err := strconv.ParseInt(rr.Header().Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		t.Fatalf("failed to parse X-RateLimit-Reset: %v", err)
	}
	now := time.Now().Unix()
	if reset < now || reset > now+2 {
		t.Fatalf("expected X-RateLimit-Reset within 2 seconds, got %d (now %d)", reset, now)
	}
}

func TestRateLimitMiddlewareRetryAfterHeader(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 5, Burst: 1}
	handler := RateLimitMiddleware(cfg, newTestLogger())(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))

	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	retry, err := strconv.Atoi(second.Header().Get("Retry-After"))
	if err != nil || retry < 1 {
		t.Fatalf("expected Retry-After >= 1, got %q", second.Header().Get("Retry-After"))
	}
}

func TestRateLimitMiddlewarePerIPTracking(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 5, Burst: 1}
	handler := RateLimitMiddleware(cfg, newTestLogger())(okHandler())

	send := func(addr string) int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("1.2.3.4:12345"); code != http.StatusOK {
		t.Fatalf("expected first request from IP1 to succeed, got %d", code)
	}
	if code := send("1.2.3.4:12345"); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request from IP1 to be rate limited, got %d", code)
	}
	if code := send("5.6.7.8:54321"); code != http.StatusOK {
		t.Fatalf("expected first request from IP2 to succeed, got %d", code)
	}
}

func TestRateLimitMiddlewareTrustedProxy(t *testing.T) {
	proxies, err := ParseTrustedProxies("10.1.0.0/16")
	if err != nil {
		t.Fatalf("parse proxies: %v", err)
	}
	cfg := RateLimitConfig{RequestsPerSecond: 5, Burst: 1, TrustedProxies: proxies}
	handler := RateLimitMiddleware(cfg, newTestLogger())(okHandler())

	send := func(xff string) int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:80"
		req.Header.Set("X-Forwarded-For", xff)
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("192.0.2.1, 10.1.2.3"); code != http.StatusOK {
		t.Fatalf("expected first client to succeed, got %d", code)
	}
	if code := send("192.0.2.2"); code != http.StatusOK {
		t.Fatalf("expected a different forwarded client to get its own bucket, got %d", code)
	}
	if code := send("192.0.2.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected repeat client to be limited, got %d", code)
	}
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{}, newTestLogger())(okHandler())
	for i := 0; i < 10; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected request %d to succeed with disabled rate limiting, got %d", i, rr.Code)
		}
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	t.Setenv("MOCKAPI_RATE_LIMIT_RPS", "")
	t.Setenv("MOCKAPI_RATE_LIMIT_BURST", "")
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != defaultRateLimitRPS {
		t.Fatalf("expected default RPS %f, got %f", defaultRateLimitRPS, cfg.RequestsPerSecond)
	}
	if cfg.Burst != defaultRateLimitBurst {
		t.Fatalf("expected default burst %d, got %d", defaultRateLimitBurst, cfg.Burst)
	}
}

func TestDefaultRateLimitConfigFromEnv(t *testing.T) {
	t.Setenv("MOCKAPI_RATE_LIMIT_RPS", "50")
	t.Setenv("MOCKAPI_RATE_LIMIT_BURST", "100")

	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 50 {
		t.Fatalf("expected RPS 50 from env, got %f", cfg.RequestsPerSecond)
	}
	if cfg.Burst != 100 {
		t.Fatalf("expected burst 100 from env, got %d", cfg.Burst)
	}
}

func TestDefaultRateLimitConfigInvalidEnv(t *testing.T) {
	t.Setenv("MOCKAPI_RATE_LIMIT_RPS", "invalid")
	t.Setenv("MOCKAPI_RATE_LIMIT_BURST", "notanumber")

	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != defaultRateLimitRPS {
		t.Fatalf("expected default RPS on invalid env, got %f", cfg.RequestsPerSecond)
	}
	if cfg.Burst != defaultRateLimitBurst {
		t.Fatalf("expected default burst on invalid env, got %d", cfg.Burst)
	}
}

func TestRateLimitConfigEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  RateLimitConfig
		want bool
	}{
		{"enabled with positive values", RateLimitConfig{RequestsPerSecond: 10, Burst: 5}, true},
		{"disabled with zero RPS", RateLimitConfig{RequestsPerSecond: 0, Burst: 5}, false},
		{"disabled with zero burst", RateLimitConfig{RequestsPerSecond: 10, Burst: 0}, false},
		{"disabled with negative RPS", RateLimitConfig{RequestsPerSecond: -1, Burst: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.want {
				t.Errorf("RateLimitConfig.Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	cfg, err := ParseTrustedProxies(" 10.0.0.0/8, ,192.168.0.0/16")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Prefixes) != 2 {
		t.Fatalf("expected 2 prefixes, got %d", len(cfg.Prefixes))
	}
	if !cfg.IsTrusted("10.2.3.4:1234") || cfg.IsTrusted("172.16.0.1:1234") || cfg.IsTrusted("garbage") {
		t.Fatalf("unexpected trust decisions for %+v", cfg.Prefixes)
	}
	if _, err := ParseTrustedProxies("not-a-cidr"); err == nil {
		t.Fatalf("expected error for invalid CIDR")
	}
}

func TestParseTrustedProxiesBareAddress(t *testing.T) {
	cfg, err := ParseTrustedProxies("127.0.0.1,::1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.IsTrusted("127.0.0.1:9000") || !cfg.IsTrusted("[::1]:9000") || cfg.IsTrusted("127.0.0.2:9000") {
		t.Fatalf("unexpected trust decisions for %+v", cfg.Prefixes)
	}
}

func TestClientAddressSkipsTrustedHops(t *testing.T) {
	proxies, err := ParseTrustedProxies("10.0.0.0/8")
	if err != nil {
		t.Fatalf("parse proxies: %v", err)
	}
	tests := []struct {
		remote string
		xff    string
		want   string
	}{
		{"10.0.0.1:80", "198.51.100.7, 10.0.0.9, 10.0.0.8", "198.51.100.7"},
		{"10.0.0.1:80", "203.0.113.1, 198.51.100.7", "198.51.100.7"},
		{"10.0.0.1:80", "", "10.0.0.1"},
		{"192.0.2.5:80", "198.51.100.7", "192.0.2.5"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if tt.xff != "" {
			req.Header.Set("X-Forwarded-For", tt.xff)
		}
		if got := clientAddress(req, proxies); got != tt.want {
			t.Errorf("clientAddress(%s, %q) = %q, want %q", tt.remote, tt.xff, got, tt.want)
		}
	}
}

func TestApplyMiddlewares(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-before")
				next.ServeHTTP(w, r)
				order = append(order, name+"-after")
			})
		}
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})

	ApplyMiddlewares(handler, mw("m1"), mw("m2")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	expected := []string{"m1-before", "m2-before", "handler", "m2-after", "m1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("expected order[%d]=%q, got %q", i, v, order[i])
		}
	}
}

func TestCurrentUserMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		cookie     string
		wantUser   string
		wantMethod string
	}{
		{"default user", "", "", "", audit.AuthSessionCookie},
		{"header", "user-a", "", "user-a", audit.AuthAccessToken},
		{"cookie", "", "user-b", "user-b", audit.AuthSessionCookie},
		{"header wins over cookie", "user-a", "user-b", "user-a", audit.AuthAccessToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser, gotMethod string
			handler := CurrentUserMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = CurrentUserFromContext(r.Context())
				gotMethod = authMethodFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(CurrentUserHeader, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CurrentUserCookie, Value: tt.cookie})
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)
			if gotUser != tt.wantUser || gotMethod != tt.wantMethod {
				t.Fatalf("got user %q method %q, want %q %q", gotUser, gotMethod, tt.wantUser, tt.wantMethod)
			}
		})
	}
}

func TestLatencyMiddlewareDelays(t *testing.T) {
	handler := LatencyMiddleware(50 * time.Millisecond)(okHandler())
	start := time.Now()
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/projects", nil))
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("expected at least 50ms delay, got %v", elapsed)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestLatencyMiddlewareSkipsHealth(t *testing.T) {
	handler := LatencyMiddleware(time.Hour)(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestLatencyMiddlewareCancelled(t *testing.T) {
	called := false
	handler := LatencyMiddleware(time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil).WithContext(ctx)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if called {
		t.Fatalf("expected cancelled request to skip the handler")
	}
}

func TestLoggingMiddlewareRecoversPanic(t *testing.T) {
	handler := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), RequestIDMiddleware(), LoggingMiddleware(newTestLogger()))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body apiError
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ErrorCode != CodeInternalError || body.RequestID == "" {
		t.Fatalf("unexpected body %+v", body)
	}
}
