package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/domain"
	"github.com/oxidecomputer/console-sub002/internal/storage"
)

func blankDisk(name string, size int64) domain.DiskCreate {
	return domain.DiskCreate{
		Name:       name,
		Size:       size,
		DiskSource: domain.DiskSource{Type: domain.DiskSourceBlank, BlockSize: 4096},
	}
}

func TestProjectAndDiskLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/projects", domain.ProjectCreate{Name: "proj1"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create project: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	proj := decodeJSON[domain.Project](t, rr)
	if proj.Name != "proj1" || proj.ID == "" {
		t.Fatalf("unexpected project %+v", proj)
	}

	rr = env.do(t, http.MethodPost, "/v1/disks?project=proj1", blankDisk("disk1", 10*domain.GiB))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create disk: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	disk := decodeJSON[domain.Disk](t, rr)
	if disk.State.State != domain.DiskDetached || disk.ProjectID != proj.ID {
		t.Fatalf("unexpected disk %+v", disk)
	}

	rr = env.do(t, http.MethodPost, "/v1/disks?project=proj1", blankDisk("disk2", domain.GiB))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create second disk: expected 201, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/v1/disks?project=proj1&limit=1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list disks: expected 200, got %d", rr.Code)
	}
	page := decodeJSON[domain.ResultsPage[domain.Disk]](t, rr)
	if len(page.Items) != 1 || page.Items[0].Name != "disk1" {
		t.Fatalf("unexpected first page %+v", page.Items)
	}
	if page.NextPage == nil || *page.NextPage != disk.ID {
		t.Fatalf("expected next_page %q, got %v", disk.ID, page.NextPage)
	}

	rr = env.do(t, http.MethodGet, "/v1/disks?project=proj1&limit=1&page_token="+*page.NextPage, nil)
	page = decodeJSON[domain.ResultsPage[domain.Disk]](t, rr)
	if len(page.Items) != 1 || page.Items[0].Name != "disk2" || page.NextPage != nil {
		t.Fatalf("unexpected second page %+v next=%v", page.Items, page.NextPage)
	}

	rr = env.do(t, http.MethodPost, "/v1/disks?project=proj1", blankDisk("disk1", domain.GiB))
	expectError(t, rr, http.StatusBadRequest, CodeObjectAlreadyExists)

	rr = env.do(t, http.MethodDelete, "/v1/disks/disk1?project=proj1", nil)
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Fatalf("delete disk: expected empty 204, got %d %q", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/v1/disks/disk1?project=proj1", nil)
	expectError(t, rr, http.StatusNotFound, CodeObjectNotFound)

	// Lookup by id needs no project.
	rr = env.do(t, http.MethodGet, "/v1/projects/"+proj.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("view project by id: expected 200, got %d", rr.Code)
	}
}

func TestInstanceDiskAttachRequiresStoppedInstance(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/instances/db1/disks/attach?project=mock-project", domain.DiskPath{Disk: "disk-3"})
	body := expectError(t, rr, http.StatusBadRequest, CodeInvalidRequest)
	if !strings.Contains(body.Message, "running") {
		t.Fatalf("expected message to name the current state, got %q", body.Message)
	}

	rr = env.do(t, http.MethodPost, "/v1/instances/db1/stop?project=mock-project", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("stop: expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	inst := decodeJSON[domain.Instance](t, rr)
	if inst.RunState != domain.InstanceStopped {
		t.Fatalf("expected stopped, got %s", inst.RunState)
	}

	rr = env.do(t, http.MethodPost, "/v1/instances/db1/disks/attach?project=mock-project", domain.DiskPath{Disk: "disk-3"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("attach: expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	disk := decodeJSON[domain.Disk](t, rr)
	if disk.State.State != domain.DiskAttached || disk.State.Instance != inst.ID {
		t.Fatalf("unexpected disk state %+v", disk.State)
	}

	rr = env.do(t, http.MethodGet, "/v1/instances/db1/disks?project=mock-project", nil)
	page := decodeJSON[domain.ResultsPage[domain.Disk]](t, rr)
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 attached disks, got %d", len(page.Items))
	}

	rr = env.do(t, http.MethodPost, "/v1/instances/db1/disks/detach?project=mock-project", domain.DiskPath{Disk: "disk-3"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("detach: expected 202, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/v1/instances/db1/start?project=mock-project", nil)
	if rr.Code != http.StatusAccepted || decodeJSON[domain.Instance](t, rr).RunState != domain.InstanceRunning {
		t.Fatalf("start: expected 202 running, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		target string
		body   any
		status int
		code   string
	}{
		{"bad path name", http.MethodGet, "/v1/projects/Not_A_Name", nil, http.StatusNotFound, CodeNotFound},
		{"bad sled id", http.MethodGet, "/v1/system/hardware/sleds/not-a-uuid", nil, http.StatusNotFound, CodeNotFound},
		{"unknown route", http.MethodGet, "/v1/nothing-here", nil, http.StatusNotFound, CodeNotFound},
		{"wrong method", http.MethodPatch, "/v1/projects", nil, http.StatusNotFound, CodeNotFound},
		{"negative limit", http.MethodGet, "/v1/projects?limit=-1", nil, http.StatusBadRequest, CodeInvalidRequest},
		{"non-numeric limit", http.MethodGet, "/v1/projects?limit=ten", nil, http.StatusBadRequest, CodeInvalidRequest},
		{"limit too large", http.MethodGet, "/v1/projects?limit=10001", nil, http.StatusBadRequest, CodeInvalidRequest},
		{"missing project selector", http.MethodGet, "/v1/disks", nil, http.StatusBadRequest, CodeInvalidRequest},
		{"bad project selector", http.MethodGet, "/v1/disks?project=Bad!", nil, http.StatusBadRequest, CodeInvalidRequest},
		{"missing body", http.MethodPost, "/v1/projects", nil, http.StatusBadRequest, CodeInvalidRequest},
		{"unknown body field", http.MethodPost, "/v1/projects", map[string]any{"name": "p", "colour": "red"}, http.StatusBadRequest, CodeInvalidRequest},
		{"bad body name", http.MethodPost, "/v1/projects", domain.ProjectCreate{Name: "-bad"}, http.StatusBadRequest, CodeInvalidRequest},
		{"missing hostname", http.MethodPost, "/v1/instances?project=mock-project", domain.InstanceCreate{Name: "vm", Memory: domain.GiB, NCPUs: 1}, http.StatusBadRequest, CodeInvalidRequest},
		{"disk too small", http.MethodPost, "/v1/disks?project=mock-project", blankDisk("tiny", 1024), http.StatusBadRequest, CodeInvalidRequest},
		{"audit end before start", http.MethodGet, "/v1/system/audit-log?start_time=2024-01-02T00:00:00Z&end_time=2024-01-01T00:00:00Z", nil, http.StatusBadRequest, CodeInvalidRequest},
		{"audit bad time", http.MethodGet, "/v1/system/audit-log?start_time=yesterday", nil, http.StatusBadRequest, CodeInvalidRequest},
		{"project with vpc", http.MethodDelete, "/v1/projects/mock-project", nil, http.StatusBadRequest, CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, env.do(t, tt.method, tt.target, tt.body), tt.status, tt.code)
		})
	}
}

func TestFaultInjection(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		target string
		body   any
		status int
		code   string
	}{
		{"project unavailable", http.MethodGet, "/v1/projects/any-" + storage.FaultProjectUnavailable, nil, http.StatusServiceUnavailable, CodeServiceUnavailable},
		{"project forbidden", http.MethodGet, "/v1/projects/any-" + storage.FaultProjectForbidden, nil, http.StatusForbidden, CodeForbidden},
		{"disk create fails", http.MethodPost, "/v1/disks?project=mock-project", blankDisk(storage.FaultDiskCreate, domain.GiB), http.StatusInternalServerError, CodeInternalError},
		{"snapshot of faulty disk", http.MethodPost, "/v1/snapshots?project=mock-project", domain.SnapshotCreate{Name: "snap", Disk: storage.FaultDiskSnapshot}, http.StatusBadRequest, CodeInvalidRequest},
		{"snapshot delete fails", http.MethodDelete, "/v1/snapshots/" + storage.FaultSnapshotDelete + "?project=mock-project", nil, http.StatusInternalServerError, CodeInternalError},
		{"serial console", http.MethodGet, "/v1/instances/db1/serial-console/stream?project=mock-project", nil, http.StatusNotImplemented, CodeNotImplemented},
		{"update repositories", http.MethodGet, "/v1/system/update/repositories", nil, http.StatusNotImplemented, CodeNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, env.do(t, tt.method, tt.target, tt.body), tt.status, tt.code)
		})
	}
}

func TestMutationsAreAuditedAndPublished(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rr := env.do(t, http.MethodPost, "/v1/projects", domain.ProjectCreate{Name: "audited"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	created := decodeJSON[domain.Project](t, rr)
	expectError(t, env.do(t, http.MethodPost, "/v1/projects", domain.ProjectCreate{Name: "audited"}), http.StatusBadRequest, CodeObjectAlreadyExists)
	env.do(t, http.MethodGet, "/v1/projects", nil)

	page, err := env.audit.List(ctx, audit.ListOptions{})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 audit entries (reads are not audited), got %d", len(page.Items))
	}
	ok, failed := page.Items[0], page.Items[1]
	if ok.OperationID != "project_create" || ok.Result.Kind != audit.ResultSuccess || ok.Result.HTTPStatusCode != http.StatusCreated {
		t.Fatalf("unexpected success entry %+v", ok)
	}
	if ok.Actor.Kind != audit.ActorSiloUser || ok.Actor.SiloUserID == "" || ok.AuthMethod != audit.AuthSessionCookie {
		t.Fatalf("unexpected actor %+v via %q", ok.Actor, ok.AuthMethod)
	}
	if ok.RequestID == "" || ok.RequestURI != "/v1/projects" {
		t.Fatalf("unexpected request fields %+v", ok)
	}
	if failed.Result.Kind != audit.ResultError || failed.Result.ErrorCode != CodeObjectAlreadyExists {
		t.Fatalf("unexpected failure entry %+v", failed.Result)
	}

	evs := env.events.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event for the successful mutation, got %d", len(evs))
	}
	if evs[0].Resource != "project" || evs[0].Action != "create" || evs[0].ResourceID != created.ID || evs[0].Name != "audited" {
		t.Fatalf("unexpected event %+v", evs[0])
	}
}

func TestAuditActorFromHeader(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/me/ssh-keys", strings.NewReader(`{"name":"k","description":"","public_key":"ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIDEsc5jBuNfNwNB1dHBKyeLk6aXZ2f+hd5JiNzDWE8rG me"}`))
	req.Header.Set(CurrentUserHeader, "6937b251-013c-4b2e-8f8c-4ffab2f2d1c5")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(`{"name":"ghost","description":""}`))
	req.Header.Set(CurrentUserHeader, "00000000-0000-4000-8000-000000000000")
	env.handler.ServeHTTP(httptest.NewRecorder(), req)

	page, err := env.audit.List(context.Background(), audit.ListOptions{})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(page.Items))
	}
	if got := page.Items[0]; got.Actor.SiloUserID != "6937b251-013c-4b2e-8f8c-4ffab2f2d1c5" || got.AuthMethod != audit.AuthAccessToken {
		t.Fatalf("unexpected actor %+v via %q", got.Actor, got.AuthMethod)
	}
	if got := page.Items[1].Actor; got.Kind != audit.ActorUnauthenticated {
		t.Fatalf("expected unknown user to be unauthenticated, got %+v", got)
	}
}

func TestAuditLogEndpointFilters(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/v1/projects", domain.ProjectCreate{Name: "a1"})
	env.do(t, http.MethodDelete, "/v1/projects/a1", nil)

	rr := env.do(t, http.MethodGet, "/v1/system/audit-log?operation_id=project_delete", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	page := decodeJSON[domain.ResultsPage[audit.Entry]](t, rr)
	if len(page.Items) != 1 || page.Items[0].OperationID != "project_delete" {
		t.Fatalf("unexpected filtered entries %+v", page.Items)
	}

	rr = env.do(t, http.MethodGet, "/v1/system/audit-log?start_time=2999-01-01T00:00:00Z", nil)
	if page := decodeJSON[domain.ResultsPage[audit.Entry]](t, rr); len(page.Items) != 0 {
		t.Fatalf("expected no entries in the future, got %d", len(page.Items))
	}
}

func TestResetRestoresFixtures(t *testing.T) {
	env := newTestEnv(t)
	before := env.store.Counts()

	env.do(t, http.MethodPost, "/v1/projects", domain.ProjectCreate{Name: "scratch"})
	if env.store.Counts()["projects"] != before["projects"]+1 {
		t.Fatalf("expected project to be created")
	}

	rr := env.do(t, http.MethodPost, "/__mock/reset", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("reset: expected 204, got %d", rr.Code)
	}
	expectError(t, env.do(t, http.MethodGet, "/v1/projects/scratch", nil), http.StatusNotFound, CodeObjectNotFound)
	if got := env.store.Counts(); got["projects"] != before["projects"] {
		t.Fatalf("expected %d projects after reset, got %d", before["projects"], got["projects"])
	}
	if env.audit.Len() != 2 {
		t.Fatalf("expected the audit log to survive reset, got %d entries", env.audit.Len())
	}
}

func TestHealthReportsCollections(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeJSON[struct {
		Status      string         `json:"status"`
		Collections map[string]int `json:"collections"`
	}](t, rr)
	if body.Status != "ok" || body.Collections["projects"] != 4 {
		t.Fatalf("unexpected health %+v", body)
	}
}

func TestCurrentUserAndPolicy(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/v1/me", nil)
	me := decodeJSON[domain.CurrentUser](t, rr)
	if me.DisplayName != "Hannah Arendt" || me.SiloName != "maze-war" {
		t.Fatalf("unexpected current user %+v", me)
	}

	rr = env.do(t, http.MethodGet, "/v1/me/ssh-keys", nil)
	if keys := decodeJSON[domain.ResultsPage[domain.SshKey]](t, rr); len(keys.Items) != 2 {
		t.Fatalf("expected 2 ssh keys, got %d", len(keys.Items))
	}

	rr = env.do(t, http.MethodGet, "/v1/projects/mock-project/policy", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("project policy: expected 200, got %d", rr.Code)
	}
	policy := decodeJSON[domain.Policy](t, rr)
	policy.RoleAssignments = append(policy.RoleAssignments, domain.PolicyAssignment{
		IdentityID:   me.ID,
		IdentityType: domain.IdentitySiloUser,
		RoleName:     storage.RoleViewer,
	})
	rr = env.do(t, http.MethodPut, "/v1/projects/mock-project/policy", policy)
	if rr.Code != http.StatusOK {
		t.Fatalf("update policy: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if updated := decodeJSON[domain.Policy](t, rr); len(updated.RoleAssignments) != len(policy.RoleAssignments) {
		t.Fatalf("expected %d assignments, got %d", len(policy.RoleAssignments), len(updated.RoleAssignments))
	}
}

func TestWriteStoreErrMapping(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{storage.NotFound("project %q", "x"), http.StatusNotFound, CodeObjectNotFound},
		{storage.AlreadyExists("project", "x"), http.StatusBadRequest, CodeObjectAlreadyExists},
		{storage.Precondition("nope"), http.StatusBadRequest, CodeInvalidRequest},
		{storage.Invalid("bad"), http.StatusBadRequest, CodeInvalidRequest},
		{storage.Forbidden("no"), http.StatusForbidden, CodeForbidden},
		{storage.NotImplemented("later"), http.StatusNotImplemented, CodeNotImplemented},
		{storage.Unavailable("down"), http.StatusServiceUnavailable, CodeServiceUnavailable},
		{storage.Internal("boom"), http.StatusInternalServerError, CodeInternalError},
		{fmt.Errorf("wrapped: %w", context.Canceled), http.StatusServiceUnavailable, CodeServiceUnavailable},
		{errors.New("mystery"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.err.Error(), func(t *testing.T) {
			rr := httptest.NewRecorder()
			ctx := WithRequestID(context.Background(), "req-1")
			env.srv.writeStoreErr(ctx, rr, tt.err)
			expectError(t, rr, tt.status, tt.code)
		})
	}
}
