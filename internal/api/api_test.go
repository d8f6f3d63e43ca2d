package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"procpilot/internal/events"
	"procpilot/internal/logstore"
	"procpilot/internal/metrics"
	"procpilot/internal/server"
	"procpilot/internal/storage"
	"procpilot/internal/ws"
	"procpilot/pkg/sdk"
)

type apiEnv struct {
	client *sdk.Client
	logs   *logstore.Store
	ts     *httptest.Server
}

func newTestAPI(t *testing.T) *apiEnv {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewGormStore(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	logs, err := logstore.NewStore(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	metricsStore, err := metrics.NewStore(filepath.Join(dir, "metrics"))
	require.NoError(t, err)

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	manager := server.NewManager(store, logs, metricsStore, bus)
	t.Cleanup(manager.StopAll)

	hubs := ws.NewHubManager(100)
	t.Cleanup(hubs.StopAll)

	api := &Server{
		Manager:    manager,
		Store:      store,
		Logs:       logs,
		HubManager: hubs,
	}

	ts := httptest.NewServer(api.Routes())
	t.Cleanup(ts.Close)

	return &apiEnv{
		client: sdk.NewClient(ts.URL),
		logs:   logs,
		ts:     ts,
	}
}

func TestServerEndpoints(t *testing.T) {
	env := newTestAPI(t)

	require.NoError(t, env.client.CreateServer(sdk.Server{
		Name: "web",
		Kind: "nodejs",
		Path: "/srv/web/index.js",
	}))

	// Duplicates and invalid kinds are rejected.
	require.Error(t, env.client.CreateServer(sdk.Server{
		Name: "web", Kind: "nodejs", Path: "/srv/web/index.js",
	}))
	require.Error(t, env.client.CreateServer(sdk.Server{
		Name: "bad", Kind: "mystery", Path: "/srv/bad",
	}))

	servers, err := env.client.ListServers()
	require.NoError(t, err)
	require.Len(t, servers, 1)
	require.Equal(t, "stopped", servers[0].Status)

	got, err := env.client.GetServer("web")
	require.NoError(t, err)
	require.Equal(t, "nodejs", got.Kind)

	_, err = env.client.GetServer("ghost")
	require.Error(t, err)

	port := 4000
	require.NoError(t, env.client.UpdateServer("web", sdk.ServerUpdate{Port: &port}))
	got, err = env.client.GetServer("web")
	require.NoError(t, err)
	require.Equal(t, 4000, got.Port)

	status, err := env.client.GetServerStatus("web")
	require.NoError(t, err)
	require.Equal(t, "stopped", status.Status)

	require.NoError(t, env.client.DeleteServer("web"))
	servers, err = env.client.ListServers()
	require.NoError(t, err)
	require.Empty(t, servers)
}

func TestLogEndpoints(t *testing.T) {
	env := newTestAPI(t)

	require.NoError(t, env.client.CreateServer(sdk.Server{
		Name: "web", Kind: "nodejs", Path: "/srv/web",
	}))

	entries, err := env.client.GetServerLogs("web", 0)
	require.NoError(t, err)
	require.Empty(t, entries)

	env.logs.Append("web", "first")
	env.logs.Append("web", "second")

	entries, err = env.client.GetServerLogs("web", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0], "second")

	require.NoError(t, env.client.ClearServerLogs("web"))
	entries, err = env.client.GetServerLogs("web", 0)
	require.NoError(t, err)
	require.Empty(t, entries)

	resp, err := http.Get(env.ts.URL + "/servers/web/logs?lines=nope")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoints(t *testing.T) {
	env := newTestAPI(t)

	require.NoError(t, env.client.CreateServer(sdk.Server{
		Name: "web", Kind: "nodejs", Path: "/srv/web",
	}))

	snapshot, err := env.client.GetServerMetrics("web")
	require.NoError(t, err)
	require.False(t, snapshot.Running)

	samples, err := env.client.GetMetricsHistory("web", 3600)
	require.NoError(t, err)
	require.Empty(t, samples)
}

func TestStackEndpoints(t *testing.T) {
	env := newTestAPI(t)

	require.NoError(t, env.client.CreateServer(sdk.Server{
		Name: "web", Kind: "nodejs", Path: "/srv/web",
	}))

	require.NoError(t, env.client.CreateStack(sdk.Stack{
		Name: "site", Members: []string{"web"},
	}))

	stacks, err := env.client.ListStacks()
	require.NoError(t, err)
	require.Len(t, stacks, 1)

	status, err := env.client.GetStackStatus("site")
	require.NoError(t, err)
	require.Equal(t, "stopped", status.Status)

	require.NoError(t, env.client.UpdateStack("site", []string{}))
	stack, err := env.client.GetStack("site")
	require.NoError(t, err)
	require.Empty(t, stack.Members)

	require.NoError(t, env.client.DeleteStack("site"))
	_, err = env.client.GetStack("site")
	require.Error(t, err)
}

func TestSettingsEndpoints(t *testing.T) {
	env := newTestAPI(t)

	settings, err := env.client.GetSettings()
	require.NoError(t, err)
	require.Equal(t, "python", settings["python_command"])

	require.NoError(t, env.client.SetSettings(map[string]string{"python_command": "python3"}))

	settings, err = env.client.GetSettings()
	require.NoError(t, err)
	require.Equal(t, "python3", settings["python_command"])
}
