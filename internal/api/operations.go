package api

import (
	"context"
	"net/http"
	"time"

	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/events"
)

// handle registers h under pattern as operation op. Requests other than GET
// and HEAD are audited, and successful ones are published as events.
func (s *Server) handle(pattern, op string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.operation(op, h))
}

func (s *Server) operation(op string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(withOperation(r.Context(), op))
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			h(w, r)
			return
		}

		started := s.now()
		rec := &operationRecorder{statusRecorder: statusRecorder{ResponseWriter: w, status: http.StatusOK}}
		h(rec, r)
		s.recordMutation(r, op, started, rec)
	})
}

func (s *Server) recordMutation(r *http.Request, op string, started time.Time, rec *operationRecorder) {
	// The client may be gone; the record of what happened should not be.
	ctx := context.WithoutCancel(r.Context())
	requestID := RequestIDFromContext(ctx)

	entry := &audit.Entry{
		OperationID:   op,
		RequestID:     requestID,
		RequestURI:    r.URL.RequestURI(),
		SourceIP:      clientKey(r),
		UserAgent:     r.UserAgent(),
		AuthMethod:    authMethodFromContext(ctx),
		Actor:         s.actor(ctx),
		Result:        audit.NewResult(rec.status, rec.errorCode, rec.message),
		TimeStarted:   started,
		TimeCompleted: s.now(),
	}
	if err := s.auditLogger.Log(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to log audit entry", appendRequestID(ctx, []any{
			"operation", op,
			"error", err.Error(),
		})...)
	}

	if rec.status >= http.StatusBadRequest {
		return
	}
	ev := events.New(op)
	ev.ResourceID = rec.resourceID
	ev.Name = rec.resourceName
	ev.RequestID = requestID
	ev.Actor = entry.Actor.SiloUserID
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", appendRequestID(ctx, []any{
			"operation", op,
			"error", err.Error(),
		})...)
	}
}

// actor resolves the request's user. An unknown user id is recorded as
// unauthenticated.
func (s *Server) actor(ctx context.Context) audit.Actor {
	me, err := s.store.CurrentUser(ctx, CurrentUserFromContext(ctx))
	if err != nil {
		return audit.Actor{Kind: audit.ActorUnauthenticated}
	}
	return audit.Actor{Kind: audit.ActorSiloUser, SiloID: me.SiloID, SiloUserID: me.ID}
}
