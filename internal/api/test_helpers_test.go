package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/events"
	"github.com/oxidecomputer/console-sub002/internal/fixtures"
	"github.com/oxidecomputer/console-sub002/internal/observability"
	"github.com/oxidecomputer/console-sub002/internal/storage"
)

type testEnv struct {
	srv     *Server
	store   *storage.Store
	audit   *audit.MemoryAuditLogger
	events  *events.Recorder
	handler http.Handler
}

// newTestEnv builds a server over the canonical fixtures with immediate
// run-state transitions.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.New(fixtures.MustLoad(), storage.WithTransitionDelay(0))
	t.Cleanup(func() { _ = store.Close() })
	al := audit.NewMemoryAuditLogger()
	rec := &events.Recorder{}
	srv := NewServer(http.NewServeMux(), store, observability.NewNopLogger(), nil, al)
	srv.SetPublisher(rec)
	srv.RegisterRoutes()
	return &testEnv{
		srv:     srv,
		store:   store,
		audit:   al,
		events:  rec,
		handler: ApplyMiddlewares(srv.mux, RequestIDMiddleware(), CurrentUserMiddleware()),
	}
}

// do sends a request with an optional JSON body.
func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

// expectError checks the status and error_code of an error response.
func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) apiError {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	body := decodeJSON[apiError](t, rr)
	if body.ErrorCode != code {
		t.Fatalf("expected error_code %q, got %q (%s)", code, body.ErrorCode, body.Message)
	}
	if body.RequestID == "" {
		t.Fatalf("expected request_id in error body")
	}
	return body
}
