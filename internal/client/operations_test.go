package client_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxidecomputer/console-sub002/internal/api"
	"github.com/oxidecomputer/console-sub002/internal/client"
	"github.com/oxidecomputer/console-sub002/internal/fixtures"
	"github.com/oxidecomputer/console-sub002/internal/observability"
	"github.com/oxidecomputer/console-sub002/internal/storage"
	"github.com/oxidecomputer/console-sub002/internal/wire"
)

// Every operation in the table must resolve to the route registered for it.
func TestOperationsMatchServerRoutes(t *testing.T) {
	store := storage.New(fixtures.MustLoad())
	t.Cleanup(func() { _ = store.Close() })
	mux := http.NewServeMux()
	api.NewServer(mux, store, observability.NewNopLogger(), nil, nil).RegisterRoutes()

	for _, o := range client.Operations() {
		t.Run(o.ID, func(t *testing.T) {
			params := map[string]string{}
			for _, name := range o.PathParams() {
				params[name] = "x"
			}
			path, err := o.FillPath(params)
			require.NoError(t, err)

			_, pattern := mux.Handler(httptest.NewRequest(o.Method, path, nil))
			assert.Equal(t, o.Method+" "+o.Path, pattern)
		})
	}
}

func TestOperationEntitiesAreKnown(t *testing.T) {
	for _, o := range client.Operations() {
		for _, entity := range []string{o.Request, o.Response} {
			if entity == "" {
				continue
			}
			_, ok := wire.Lookup(entity)
			assert.True(t, ok, "%s names unknown entity %q", o.ID, entity)
		}
		if o.Method == http.MethodGet || o.Method == http.MethodDelete {
			assert.Empty(t, o.Request, "%s should not take a body", o.ID)
		}
		if strings.HasSuffix(o.ID, "_list") && o.Response != "" {
			assert.True(t, strings.HasPrefix(o.Response, wire.PageOf("")), "%s should answer a page", o.ID)
		}
	}
}

func TestLookupOperation(t *testing.T) {
	o, ok := client.LookupOperation("instance_disk_attach")
	require.True(t, ok)
	assert.Equal(t, http.MethodPost, o.Method)
	assert.Equal(t, []string{"instance"}, o.PathParams())

	_, ok = client.LookupOperation("instance_teleport")
	assert.False(t, ok)
}

func TestFillPath(t *testing.T) {
	o, _ := client.LookupOperation("project_view")

	path, err := o.FillPath(map[string]string{"project": "mock-project"})
	require.NoError(t, err)
	assert.Equal(t, "/v1/projects/mock-project", path)

	path, err = o.FillPath(map[string]string{"project": "a/b c"})
	require.NoError(t, err)
	assert.Equal(t, "/v1/projects/a%2Fb%20c", path)

	_, err = o.FillPath(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing path parameter "project"`)

	o, _ = client.LookupOperation("ping")
	path, err = o.FillPath(nil)
	require.NoError(t, err)
	assert.Equal(t, "/v1/ping", path)
}
