package api

import (
	"context"

	"github.com/oxidecomputer/console-sub002/internal/observability"
)

type contextKey string

const (
	operationContextKey  contextKey = "operation"
	authMethodContextKey contextKey = "authMethod"
)

// WithRequestID stores the provided request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return observability.WithRequestID(ctx, requestID)
}

// RequestIDFromContext retrieves the request ID from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	return observability.RequestIDFromContext(ctx)
}

// CurrentUserFromContext returns the user id selected for the request. An
// empty string means the default user.
func CurrentUserFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	return observability.ActorFromContext(ctx)
}

func withOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationContextKey, op)
}

// OperationFromContext returns the operation id of the matched route.
func OperationFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	op, _ := ctx.Value(operationContextKey).(string)
	return op
}

func contextWithAuthMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, authMethodContextKey, method)
}

func authMethodFromContext(ctx context.Context) string {
	m, _ := ctx.Value(authMethodContextKey).(string)
	return m
}

func appendRequestID(ctx context.Context, attrs []any) []any {
	if rid := RequestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, "request_id", rid)
	}
	return attrs
}
