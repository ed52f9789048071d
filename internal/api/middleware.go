package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/observability"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 64

	// CurrentUserHeader and CurrentUserCookie select the acting user by id.
	CurrentUserHeader = "X-Mock-User"
	CurrentUserCookie = "mock-user"
)

// Middleware represents an HTTP middleware that wraps a handler.
type Middleware func(http.Handler) http.Handler

// ApplyMiddlewares applies the provided middleware in order, where the first middleware
// in the list is the outermost handler.
func ApplyMiddlewares(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestIDMiddleware ensures every request carries a stable request ID.
func RequestIDMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := sanitizeRequestID(r.Header.Get(requestIDHeader))
			if requestID == "" {
				requestID = uuid.New().String()
			}
			ctx := WithRequestID(r.Context(), requestID)
			r = r.WithContext(ctx)
			w.Header().Set(requestIDHeader, requestID)
			next.ServeHTTP(w, r)
		})
	}
}

// sanitizeRequestID returns raw trimmed when it is a usable id: at most 64
// characters of ASCII letters, digits, '-', '_' and '.'. Anything else
// yields "".
func sanitizeRequestID(raw string) string {
	id := strings.TrimSpace(raw)
	if len(id) > maxRequestIDLength || strings.IndexFunc(id, invalidIDRune) >= 0 {
		return ""
	}
	return id
}

func invalidIDRune(r rune) bool {
	switch {
	case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		return false
	case r == '-', r == '_', r == '.':
		return false
	}
	return true
}

// CurrentUserMiddleware picks the acting user from the X-Mock-User header or
// the mock-user cookie. Without either the store's default user acts.
func CurrentUserMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			method := audit.AuthSessionCookie
			userID := strings.TrimSpace(r.Header.Get(CurrentUserHeader))
			if userID != "" {
				method = audit.AuthAccessToken
			} else if c, err := r.Cookie(CurrentUserCookie); err == nil {
				userID = strings.TrimSpace(c.Value)
			}
			if userID != "" {
				ctx = observability.WithActor(ctx, userID)
			}
			ctx = contextWithAuthMethod(ctx, method)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LatencyMiddleware delays every API response by d to emulate a remote
// service. A cancelled request returns without a response. Health and
// metrics endpoints are not delayed.
func LatencyMiddleware(d time.Duration) Middleware {
	if d <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-r.Context().Done():
				return
			case <-t.C:
			}
			next.ServeHTTP(w, r)
		})
	}
}

// traceRequest attaches a Sentry hub and an http.server transaction to r.
func traceRequest(r *http.Request) (*http.Request, *sentry.Hub, *sentry.Span) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
		ctx = sentry.SetHubOnContext(ctx, hub)
	}
	tx := sentry.StartTransaction(ctx, r.Method+" "+r.URL.Path,
		sentry.WithOpName("http.server"),
		sentry.ContinueFromRequest(r),
		sentry.WithTransactionSource(sentry.SourceURL),
	)
	r = r.WithContext(tx.Context())

	scope := hub.Scope()
	scope.SetRequest(r)
	if rid := RequestIDFromContext(ctx); rid != "" {
		scope.SetTag("request_id", rid)
	}
	if user := r.Header.Get(CurrentUserHeader); user != "" {
		scope.SetTag("mock_user", user)
	}
	return r, hub, tx
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// LoggingMiddleware logs one line per request at a level chosen by status,
// runs the request inside a Sentry transaction and turns panics into a 500
// InternalError response.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, hub, tx := traceRequest(r)
			defer tx.Finish()
			ctx := r.Context()

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			attrs := func() []any {
				return appendRequestID(ctx, []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.status,
					"duration_ms", time.Since(start).Milliseconds(),
				})
			}

			defer func() {
				v := recover()
				if v == nil {
					return
				}
				tx.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(ctx, v)
				logger.ErrorContext(ctx, "panic recovered", append(attrs(), "panic", fmt.Sprint(v))...)
				writeJSON(rec, http.StatusInternalServerError, apiError{
					ErrorCode: CodeInternalError,
					Message:   "internal server error",
					RequestID: RequestIDFromContext(ctx),
				})
			}()

			next.ServeHTTP(rec, r)

			tx.Status = sentry.HTTPtoSpanStatus(rec.status)
			logger.Log(ctx, levelFor(rec.status), "request completed", attrs()...)
		})
	}
}
