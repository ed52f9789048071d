package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/domain"
	"github.com/oxidecomputer/console-sub002/internal/events"
	"github.com/oxidecomputer/console-sub002/internal/observability"
	"github.com/oxidecomputer/console-sub002/internal/storage"
)

// Error codes carried in the error_code field of error responses.
const (
	CodeObjectNotFound      = "ObjectNotFound"
	CodeNotFound            = "NotFound"
	CodeObjectAlreadyExists = "ObjectAlreadyExists"
	CodeInvalidRequest      = "InvalidRequest"
	CodeForbidden           = "Forbidden"
	CodeNotImplemented      = "NotImplemented"
	CodeServiceUnavailable  = "ServiceUnavailable"
	CodeInternalError       = "InternalError"
	CodeTooManyRequests     = "TooManyRequests"
)

type apiError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Server serves the mock control-plane API on top of a storage.Store.
type Server struct {
	mux         *http.ServeMux
	store       *storage.Store
	logger      observability.Logger
	metrics     *observability.Metrics
	auditLogger audit.AuditLogger
	publisher   events.Publisher
	now         func() time.Time
}

// NewServer creates a new HTTP server with the given dependencies.
// If logger is nil, a default logger will be used.
// If metrics is nil, metrics collection is disabled.
// If auditLogger is nil, a memory-based audit logger will be used.
func NewServer(mux *http.ServeMux, store *storage.Store, logger observability.Logger, metrics *observability.Metrics, auditLogger audit.AuditLogger) *Server {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	if auditLogger == nil {
		auditLogger = audit.NewMemoryAuditLogger()
	}
	return &Server{
		mux:         mux,
		store:       store,
		logger:      logger,
		metrics:     metrics,
		auditLogger: auditLogger,
		publisher:   events.Nop{},
		now:         time.Now,
	}
}

// NewServerWithSlog creates a new HTTP server with a raw *slog.Logger.
func NewServerWithSlog(mux *http.ServeMux, store *storage.Store, slogger *slog.Logger) *Server {
	var logger observability.Logger
	if slogger != nil {
		logger = observability.NewLoggerFromSlog(slogger)
	}
	return NewServer(mux, store, logger, nil, nil)
}

// SetPublisher sets where mutation events go. Nil discards them.
func (s *Server) SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.Nop{}
	}
	s.publisher = p
}

// AuditLogger returns the audit logger the server records to.
func (s *Server) AuditLogger() audit.AuditLogger { return s.auditLogger }

func (s *Server) writeErr(ctx context.Context, w http.ResponseWriter, code int, errorCode, msg string) {
	fields := []any{
		"status", code,
		"error_code", errorCode,
		"error", msg,
	}
	if op := OperationFromContext(ctx); op != "" {
		fields = append(fields, "operation", op)
	}
	fields = appendRequestID(ctx, fields)
	if code >= 500 {
		s.logger.ErrorContext(ctx, "request failed", fields...)
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.CaptureMessage(fmt.Sprintf("HTTP %d %s: %s", code, errorCode, msg))
		} else {
			sentry.CaptureMessage(fmt.Sprintf("HTTP %d %s: %s", code, errorCode, msg))
		}
	} else {
		s.logger.WarnContext(ctx, "request failed", fields...)
	}
	s.metrics.RecordError(errorCode)
	if rec, ok := w.(*operationRecorder); ok {
		rec.errorCode, rec.message = errorCode, msg
	}
	writeJSON(w, code, apiError{ErrorCode: errorCode, Message: msg, RequestID: RequestIDFromContext(ctx)})
}

// writeStoreErr maps a storage-layer error to the appropriate HTTP status code
// and writes the error response. It uses errors.Is() to detect sentinel errors
// from the storage package, falling back to 500 for unknown errors.
func (s *Server) writeStoreErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeErr(ctx, w, http.StatusNotFound, CodeObjectNotFound, err.Error())
	case errors.Is(err, storage.ErrAlreadyExists):
		s.writeErr(ctx, w, http.StatusBadRequest, CodeObjectAlreadyExists, err.Error())
	case errors.Is(err, storage.ErrPrecondition), errors.Is(err, storage.ErrValidation):
		s.writeErr(ctx, w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.Is(err, storage.ErrForbidden):
		s.writeErr(ctx, w, http.StatusForbidden, CodeForbidden, err.Error())
	case errors.Is(err, storage.ErrNotImplemented):
		s.writeErr(ctx, w, http.StatusNotImplemented, CodeNotImplemented, err.Error())
	case errors.Is(err, storage.ErrUnavailable):
		s.writeErr(ctx, w, http.StatusServiceUnavailable, CodeServiceUnavailable, err.Error())
	case errors.Is(err, storage.ErrInternal):
		s.writeErr(ctx, w, http.StatusInternalServerError, CodeInternalError, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeErr(ctx, w, http.StatusServiceUnavailable, CodeServiceUnavailable, "request cancelled")
	default:
		s.writeErr(ctx, w, http.StatusInternalServerError, CodeInternalError, "internal error: "+err.Error())
	}
}

// respond writes v and remembers which record a mutation touched.
func respond(w http.ResponseWriter, code int, v any) {
	noteResource(w, v)
	writeJSON(w, code, v)
}

// noContent answers a delete with 204, remembering the deleted record.
func noContent(w http.ResponseWriter, deleted any) {
	noteResource(w, deleted)
	w.WriteHeader(http.StatusNoContent)
}

func noteResource(w http.ResponseWriter, v any) {
	rec, ok := w.(*operationRecorder)
	if !ok {
		return
	}
	if r, ok := v.(domain.Identified); ok {
		rec.resourceID = r.RecordID()
	}
	if r, ok := v.(interface{ RecordName() string }); ok {
		rec.resourceName = r.RecordName()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) { s.status = code; s.ResponseWriter.WriteHeader(code) }

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// operationRecorder captures what a mutating handler did so the request can
// be audited and announced after it completes.
type operationRecorder struct {
	statusRecorder
	errorCode    string
	message      string
	resourceID   string
	resourceName string
}
