package server

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"procpilot/internal/domain"
	"procpilot/internal/events"
	"procpilot/internal/logstore"
	"procpilot/internal/metrics"
	"procpilot/internal/storage"
)

type testEnv struct {
	manager *Manager
	store   *storage.GormStore
	logs    *logstore.Store
	metrics *metrics.Store
	bus     *events.Bus
}

func newTestEnv(t *testing.T) *testEnv {
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

	manager := NewManager(store, logs, metricsStore, bus)
	t.Cleanup(manager.StopAll)

	return &testEnv{
		manager: manager,
		store:   store,
		logs:    logs,
		metrics: metricsStore,
		bus:     bus,
	}
}

// writeScript drops an executable shell script and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures")
	}
	path := filepath.Join(t.TempDir(), "fixture.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func addScript(t *testing.T, env *testEnv, name, body string) {
	t.Helper()
	require.NoError(t, env.manager.Add(domain.ServerConfig{
		Name: name,
		Kind: domain.KindScraperBinary,
		Path: writeScript(t, body),
	}))
}

func TestAddValidation(t *testing.T) {
	env := newTestEnv(t)

	require.Error(t, env.manager.Add(domain.ServerConfig{Kind: domain.KindNodeJS, Path: "/x"}))
	require.Error(t, env.manager.Add(domain.ServerConfig{Name: "a", Kind: domain.KindNodeJS}))
	require.Error(t, env.manager.Add(domain.ServerConfig{Name: "a", Path: "/x", Kind: "mystery"}))
}

func TestAddDuplicate(t *testing.T) {
	env := newTestEnv(t)

	cfg := domain.ServerConfig{Name: "web", Kind: domain.KindNodeJS, Path: "/srv/web"}
	require.NoError(t, env.manager.Add(cfg))
	require.ErrorContains(t, env.manager.Add(cfg), "already exists")
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.manager.Add(domain.ServerConfig{
		Name: "web", Kind: domain.KindNodeJS, Path: "/srv/web",
	}))

	port := 4000
	require.NoError(t, env.manager.Update("web", domain.ServerUpdate{Port: &port}))

	got, err := env.manager.Get("web")
	require.NoError(t, err)
	require.Equal(t, 4000, got.Port)

	require.ErrorContains(t, env.manager.Update("nope", domain.ServerUpdate{}), "not found")

	bad := domain.Kind("mystery")
	require.Error(t, env.manager.Update("web", domain.ServerUpdate{Kind: &bad}))
}

func TestStatusUnknownIsStopped(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, domain.StatusStopped, env.manager.Status("ghost"))
}

func TestStopIsAlwaysSafe(t *testing.T) {
	env := newTestEnv(t)

	require.True(t, env.manager.Stop("ghost"))

	require.NoError(t, env.manager.Add(domain.ServerConfig{
		Name: "web", Kind: domain.KindNodeJS, Path: "/srv/web",
	}))
	require.True(t, env.manager.Stop("web"))
}

func TestStartUnknown(t *testing.T) {
	env := newTestEnv(t)
	require.ErrorContains(t, env.manager.Start("ghost"), "not found")
}

func TestStartStopLifecycle(t *testing.T) {
	env := newTestEnv(t)
	addScript(t, env, "sleeper", "sleep 30\n")

	ch, cancel := env.bus.Subscribe()
	defer cancel()

	require.NoError(t, env.manager.Start("sleeper"))
	require.Equal(t, domain.StatusRunning, env.manager.Status("sleeper"))
	require.ErrorContains(t, env.manager.Start("sleeper"), "already running")

	// The status transition is persisted.
	stored, err := env.store.GetServer("sleeper")
	require.NoError(t, err)
	require.Equal(t, domain.StatusRunning, stored.Status)
	require.NotNil(t, stored.StartedAt)

	require.True(t, env.manager.Stop("sleeper"))
	require.Equal(t, domain.StatusStopped, env.manager.Status("sleeper"))

	stored, err = env.store.GetServer("sleeper")
	require.NoError(t, err)
	require.Equal(t, domain.StatusStopped, stored.Status)
	require.Nil(t, stored.StartedAt)

	var types []domain.EventType
	timeout := time.After(2 * time.Second)
	for len(types) < 4 {
		select {
		case event := <-ch:
			types = append(types, event.Type)
		case <-timeout:
			t.Fatalf("missing events, got %v", types)
		}
	}
	require.Contains(t, types, domain.EventStatusChanged)
	require.Contains(t, types, domain.EventStarted)
	require.Contains(t, types, domain.EventStopped)
}

func TestRestart(t *testing.T) {
	env := newTestEnv(t)
	addScript(t, env, "sleeper", "sleep 30\n")

	require.NoError(t, env.manager.Start("sleeper"))
	require.NoError(t, env.manager.Restart("sleeper"))
	require.Equal(t, domain.StatusRunning, env.manager.Status("sleeper"))

	// Restart also works from stopped.
	env.manager.Stop("sleeper")
	require.NoError(t, env.manager.Restart("sleeper"))
	require.Equal(t, domain.StatusRunning, env.manager.Status("sleeper"))
}

func TestDeadProcessReconciled(t *testing.T) {
	env := newTestEnv(t)
	addScript(t, env, "short", "sleep 0.1\n")

	if err := env.manager.Start("short"); err != nil {
		// Died before the handle could attach; already reconciled.
		return
	}

	require.Eventually(t, func() bool {
		return env.manager.Status("short") == domain.StatusStopped
	}, 3*time.Second, 50*time.Millisecond)

	// Once reconciled the instance is fully detached.
	require.Empty(t, env.manager.InstanceNames())
}

func TestLogCaptureFlowsToStore(t *testing.T) {
	env := newTestEnv(t)
	addScript(t, env, "chatty", "echo hello from child\nsleep 30\n")

	require.NoError(t, env.manager.Start("chatty"))
	defer env.manager.Stop("chatty")

	require.Eventually(t, func() bool {
		for _, line := range env.logs.Load("chatty", 0) {
			if strings.HasSuffix(line, "hello from child") {
				return true
			}
		}
		return false
	}, 3*time.Second, 50*time.Millisecond)
}

func TestRemoveCleansUp(t *testing.T) {
	env := newTestEnv(t)
	addScript(t, env, "doomed", "sleep 30\n")

	require.NoError(t, env.manager.Start("doomed"))
	env.logs.Append("doomed", "a line")
	env.metrics.Append("doomed", domain.MetricSample{Timestamp: 1, CPUPercent: 1, MemoryMB: 1})

	require.NoError(t, env.manager.Remove("doomed"))

	require.Equal(t, domain.StatusStopped, env.manager.Status("doomed"))
	got, err := env.store.GetServer("doomed")
	require.NoError(t, err)
	require.Nil(t, got)
	require.Empty(t, env.logs.Load("doomed", 0))
	require.Empty(t, env.metrics.Load("doomed", 0, 0))

	require.ErrorContains(t, env.manager.Remove("doomed"), "not found")
}

func TestRecordMetricsAndHistory(t *testing.T) {
	env := newTestEnv(t)
	addScript(t, env, "sleeper", "sleep 30\n")

	require.NoError(t, env.manager.Start("sleeper"))
	defer env.manager.Stop("sleeper")

	snapshot, ok := env.manager.RecordMetrics("sleeper")
	require.True(t, ok)
	require.GreaterOrEqual(t, snapshot.MemoryMB, 0.0)

	history := env.manager.History("sleeper", 3600)
	require.Len(t, history, 1)

	// The sample also reached the disk tier.
	require.Len(t, env.metrics.Load("sleeper", 0, 0), 1)
}

func TestHistoryMergesDiskAndMemory(t *testing.T) {
	env := newTestEnv(t)

	now := float64(time.Now().UnixNano()) / 1e9
	old := domain.MetricSample{Timestamp: now - 7200, CPUPercent: 1, MemoryMB: 1}
	fresh := domain.MetricSample{Timestamp: now - 10, CPUPercent: 2, MemoryMB: 2}

	env.metrics.Append("web", old)
	env.manager.history["web"] = []domain.MetricSample{fresh}

	// A short range is served from memory alone.
	short := env.manager.History("web", 3600)
	require.Len(t, short, 1)
	require.Equal(t, 2.0, short[0].CPUPercent)

	// A long range merges both tiers, oldest first.
	long := env.manager.History("web", 24*3600)
	require.Len(t, long, 2)
	require.Equal(t, 1.0, long[0].CPUPercent)
	require.Equal(t, 2.0, long[1].CPUPercent)
}

func TestHistoryMemoryWinsOnOverlap(t *testing.T) {
	env := newTestEnv(t)

	now := float64(time.Now().UnixNano()) / 1e9
	disk := domain.MetricSample{Timestamp: now - 10, CPUPercent: 1, MemoryMB: 1}
	mem := domain.MetricSample{Timestamp: now - 10, CPUPercent: 9, MemoryMB: 9}

	env.metrics.Append("web", disk)
	env.manager.history["web"] = []domain.MetricSample{mem}

	long := env.manager.History("web", 24*3600)
	require.Len(t, long, 1)
	require.Equal(t, 9.0, long[0].CPUPercent)
}

func TestMetricsChanged(t *testing.T) {
	base := domain.Metrics{CPUPercent: 10, MemoryMB: 100}

	// First snapshot always publishes.
	require.True(t, metricsChanged(domain.Metrics{}, false, base))

	// Deltas inside both thresholds are suppressed.
	require.False(t, metricsChanged(base, true, domain.Metrics{CPUPercent: 10.05, MemoryMB: 100.5}))

	// Either threshold alone is enough.
	require.True(t, metricsChanged(base, true, domain.Metrics{CPUPercent: 10.2, MemoryMB: 100}))
	require.True(t, metricsChanged(base, true, domain.Metrics{CPUPercent: 10, MemoryMB: 102}))

	// Hitting a threshold exactly counts as changed.
	require.True(t, metricsChanged(base, true, domain.Metrics{CPUPercent: 10, MemoryMB: 101}))
}

func TestMetricsSecondReadSuppressed(t *testing.T) {
	env := newTestEnv(t)
	addScript(t, env, "sleeper", "sleep 30\n")

	require.NoError(t, env.manager.Start("sleeper"))
	defer env.manager.Stop("sleeper")

	first, ok := env.manager.Metrics("sleeper")
	require.True(t, ok)

	// An idle sleep moves neither gauge between back-to-back reads, so
	// the second snapshot is absent.
	_, ok = env.manager.Metrics("sleeper")
	require.False(t, ok)

	// The last reported snapshot stays readable for consumers that need
	// a value regardless of suppression.
	last, seen := env.manager.LastMetrics("sleeper")
	require.True(t, seen)
	require.Equal(t, first, last)
}

func TestConcurrentStartSpawnsOnce(t *testing.T) {
	env := newTestEnv(t)
	addScript(t, env, "racy", "sleep 30\n")

	var wg sync.WaitGroup
	var started atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if env.manager.Start("racy") == nil {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), started.Load())
	require.Len(t, env.manager.InstanceNames(), 1)
}

func TestMetricsNotRunning(t *testing.T) {
	env := newTestEnv(t)

	_, ok := env.manager.Metrics("ghost")
	require.False(t, ok)
	_, ok = env.manager.RecordMetrics("ghost")
	require.False(t, ok)
}

func TestStopAll(t *testing.T) {
	env := newTestEnv(t)
	addScript(t, env, "a", "sleep 30\n")
	addScript(t, env, "b", "sleep 30\n")

	require.NoError(t, env.manager.Start("a"))
	require.NoError(t, env.manager.Start("b"))
	require.Len(t, env.manager.InstanceNames(), 2)

	env.manager.StopAll()

	require.Empty(t, env.manager.InstanceNames())
	require.Equal(t, domain.StatusStopped, env.manager.Status("a"))
	require.Equal(t, domain.StatusStopped, env.manager.Status("b"))
}

func TestStaleRunningStatusResetOnStartup(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewGormStore(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	logs, err := logstore.NewStore(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	metricsStore, err := metrics.NewStore(filepath.Join(dir, "metrics"))
	require.NoError(t, err)

	require.NoError(t, store.SaveServer(domain.ServerConfig{
		Name: "web", Kind: domain.KindNodeJS, Path: "/srv/web",
		Status: domain.StatusRunning, CreatedAt: time.Now(),
	}))

	bus := events.NewBus()
	defer bus.Close()
	NewManager(store, logs, metricsStore, bus)

	got, err := store.GetServer("web")
	require.NoError(t, err)
	require.Equal(t, domain.StatusStopped, got.Status)
}
