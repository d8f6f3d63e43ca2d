package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"procpilot/internal/domain"
	"procpilot/internal/events"
	"procpilot/internal/logstore"
	"procpilot/internal/metrics"
	"procpilot/internal/runner"
	"procpilot/internal/storage"
)

const (
	// In-memory history window per server.
	historyWindow = time.Hour

	// Disk prune cadence per server while it keeps producing samples.
	pruneInterval = 5 * time.Minute

	// Metric change events below both deltas are suppressed.
	cpuDelta = 0.1
	ramDelta = 1.0
)

// Manager is the sole authority binding stored server configurations to
// live supervised instances. All state transitions go through it; the
// instance callbacks write to the store, the log store and the event bus
// directly and never re-enter the manager's lock.
type Manager struct {
	store   *storage.GormStore
	logs    *logstore.Store
	metrics *metrics.Store
	bus     *events.Bus

	mu           sync.Mutex
	instances    map[string]*runner.Instance
	history      map[string][]domain.MetricSample
	lastReported map[string]domain.Metrics
	lastPrune    map[string]time.Time

	// One transition lock per name, held across the whole of Start and
	// Stop so a name cannot be spawned twice concurrently or started
	// while its teardown is still running.
	ops map[string]*sync.Mutex
}

// NewManager builds the registry, applies disk retention to every stored
// metric series, and resets any stale running statuses left behind by a
// previous daemon.
func NewManager(store *storage.GormStore, logs *logstore.Store, metricsStore *metrics.Store, bus *events.Bus) *Manager {
	m := &Manager{
		store:        store,
		logs:         logs,
		metrics:      metricsStore,
		bus:          bus,
		instances:    make(map[string]*runner.Instance),
		history:      make(map[string][]domain.MetricSample),
		lastReported: make(map[string]domain.Metrics),
		lastPrune:    make(map[string]time.Time),
		ops:          make(map[string]*sync.Mutex),
	}

	m.metrics.PruneAll()

	if servers, err := store.ListServers(); err == nil {
		for _, cfg := range servers {
			if cfg.Status != domain.StatusStopped {
				_ = store.UpdateStatus(cfg.Name, domain.StatusStopped, nil)
			}
		}
	}

	return m
}

// Add registers a new server configuration. Names are unique.
func (m *Manager) Add(cfg domain.ServerConfig) error {
	if cfg.Name == "" {
		return errors.New("server name is required")
	}
	if cfg.Path == "" {
		return errors.New("server path is required")
	}
	if !cfg.Kind.Valid() {
		return fmt.Errorf("invalid server kind: %s", cfg.Kind)
	}

	existing, err := m.store.GetServer(cfg.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("server already exists: %s", cfg.Name)
	}

	cfg.Status = domain.StatusStopped
	cfg.StartedAt = nil
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now()
	}
	return m.store.SaveServer(cfg)
}

// Update applies a partial configuration change. A running server keeps
// its current process; changes take effect on the next start.
func (m *Manager) Update(name string, upd domain.ServerUpdate) error {
	existing, err := m.store.GetServer(name)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("server not found: %s", name)
	}
	if upd.Kind != nil && !upd.Kind.Valid() {
		return fmt.Errorf("invalid server kind: %s", *upd.Kind)
	}
	return m.store.UpdateServer(name, upd)
}

// Remove stops the server if needed and deletes its configuration, log
// file and metric series.
func (m *Manager) Remove(name string) error {
	existing, err := m.store.GetServer(name)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("server not found: %s", name)
	}

	m.Stop(name)

	if err := m.store.DeleteServer(name); err != nil {
		return err
	}
	m.logs.Delete(name)
	m.metrics.Delete(name)

	m.mu.Lock()
	delete(m.history, name)
	delete(m.lastReported, name)
	delete(m.lastPrune, name)
	m.mu.Unlock()

	return nil
}

// Get returns the stored configuration with the live status merged in.
func (m *Manager) Get(name string) (*domain.ServerConfig, error) {
	cfg, err := m.store.GetServer(name)
	if err != nil || cfg == nil {
		return cfg, err
	}
	cfg.Status = m.Status(name)
	return cfg, nil
}

// List returns every stored configuration with live statuses merged in.
// Listing reconciles: instances whose process died outside our control
// are detached and reported stopped.
func (m *Manager) List() ([]domain.ServerConfig, error) {
	servers, err := m.store.ListServers()
	if err != nil {
		return nil, err
	}
	for i := range servers {
		servers[i].Status = m.Status(servers[i].Name)
	}
	return servers, nil
}

// Start spawns the named server. Starting a server that is already
// running is an error; a stale instance whose process died is cleaned up
// first.
func (m *Manager) Start(name string) error {
	lock := m.opLock(name)
	lock.Lock()
	defer lock.Unlock()

	cfg, err := m.store.GetServer(name)
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("server not found: %s", name)
	}

	if inst := m.liveInstance(name); inst != nil {
		return fmt.Errorf("server already running: %s", name)
	}

	if cfg.Command == "" && cfg.Kind == domain.KindNodeJS {
		if node, err := m.store.GetSetting("node_command"); err == nil && node != "" {
			cfg.Command = node
		}
	}
	interpreter, err := m.store.GetSetting("python_command")
	if err != nil || interpreter == "" {
		interpreter = "python"
	}

	inst := runner.NewInstance(*cfg, interpreter, runner.Callbacks{
		OnStatus: func(status string) { m.onStatus(name, status) },
		OnLog:    func(line string, isError bool) { m.onLog(name, line, isError) },
		OnPort:   func(port int) { m.onPort(name, port) },
	})

	if err := inst.Start(); err != nil {
		return fmt.Errorf("error starting %s: %w", name, err)
	}

	m.mu.Lock()
	m.instances[name] = inst
	m.mu.Unlock()

	m.bus.Publish(domain.Event{
		Type:   domain.EventStarted,
		Server: name,
		Time:   time.Now(),
	})
	return nil
}

// Stop terminates the named server. Stopping a server that is not
// running, or that does not exist at all, is a no-op and still succeeds.
func (m *Manager) Stop(name string) bool {
	lock := m.opLock(name)
	lock.Lock()
	defer lock.Unlock()

	inst := m.detach(name)
	if inst == nil {
		return true
	}

	inst.Stop()

	m.bus.Publish(domain.Event{
		Type:   domain.EventStopped,
		Server: name,
		Time:   time.Now(),
	})
	return true
}

func (m *Manager) Restart(name string) error {
	m.Stop(name)
	return m.Start(name)
}

// Status reports running or stopped for a single server. An attached
// instance whose process exited on its own is put through the full stop
// sequence before stopped is returned.
func (m *Manager) Status(name string) string {
	if m.liveInstance(name) != nil {
		return domain.StatusRunning
	}
	return domain.StatusStopped
}

// Port returns the detected port of a running server, 0 when unknown or
// not running.
func (m *Manager) Port(name string) int {
	if inst := m.liveInstance(name); inst != nil {
		return inst.Port()
	}
	return 0
}

// Metrics samples a running server and returns the smoothed snapshot.
// Snapshots within the suppression deltas of the last reported one are
// absent: no event is published and ok is false. The last reported
// snapshot stays available through LastMetrics.
func (m *Manager) Metrics(name string) (domain.Metrics, bool) {
	inst := m.liveInstance(name)
	if inst == nil {
		return domain.Metrics{}, false
	}

	cpu, ram, ok := inst.Sample()
	if !ok {
		m.reapDead(name, inst)
		return domain.Metrics{}, false
	}

	snapshot := domain.Metrics{CPUPercent: cpu, MemoryMB: ram}
	if !m.maybePublishMetrics(name, snapshot) {
		return domain.Metrics{}, false
	}
	return snapshot, true
}

// LastMetrics returns the most recent snapshot that cleared the
// suppression gate for a name.
func (m *Manager) LastMetrics(name string) (domain.Metrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, seen := m.lastReported[name]
	return last, seen
}

// RecordMetrics samples a running server and appends the sample to both
// history tiers, applying the in-memory window and the periodic disk
// prune. The snapshot goes through the same suppression gate as Metrics.
func (m *Manager) RecordMetrics(name string) (domain.Metrics, bool) {
	inst := m.liveInstance(name)
	if inst == nil {
		return domain.Metrics{}, false
	}

	cpu, ram, ok := inst.Sample()
	if !ok {
		m.reapDead(name, inst)
		return domain.Metrics{}, false
	}

	now := time.Now()
	sample := domain.MetricSample{
		Timestamp:  float64(now.UnixNano()) / 1e9,
		CPUPercent: cpu,
		MemoryMB:   ram,
	}

	m.mu.Lock()
	window := append(m.history[name], sample)
	cutoff := sample.Timestamp - historyWindow.Seconds()
	for len(window) > 0 && window[0].Timestamp < cutoff {
		window = window[1:]
	}
	m.history[name] = window

	prune := now.Sub(m.lastPrune[name]) >= pruneInterval
	if prune {
		m.lastPrune[name] = now
	}
	m.mu.Unlock()

	m.metrics.Append(name, sample)
	if prune {
		m.metrics.Prune(name)
	}

	snapshot := domain.Metrics{CPUPercent: cpu, MemoryMB: ram}
	m.maybePublishMetrics(name, snapshot)
	return snapshot, true
}

// History returns samples covering the last rangeSeconds, oldest first.
// Ranges inside the in-memory window are served from memory alone; longer
// ranges merge the disk series with memory, memory winning on overlap.
// rangeSeconds <= 0 means everything retained.
func (m *Manager) History(name string, rangeSeconds float64) []domain.MetricSample {
	now := float64(time.Now().UnixNano()) / 1e9
	start := 0.0
	if rangeSeconds > 0 {
		start = now - rangeSeconds
	}

	m.mu.Lock()
	window := make([]domain.MetricSample, len(m.history[name]))
	copy(window, m.history[name])
	m.mu.Unlock()

	memory := window[:0:0]
	for _, sample := range window {
		if sample.Timestamp >= start {
			memory = append(memory, sample)
		}
	}

	if rangeSeconds > 0 && rangeSeconds <= historyWindow.Seconds() {
		return memory
	}

	inMemory := make(map[float64]bool, len(memory))
	for _, sample := range memory {
		inMemory[sample.Timestamp] = true
	}

	merged := make([]domain.MetricSample, 0, len(memory))
	for _, sample := range m.metrics.Load(name, start, 0) {
		if !inMemory[sample.Timestamp] {
			merged = append(merged, sample)
		}
	}
	merged = append(merged, memory...)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

// InstanceNames lists the servers currently holding an attached instance,
// live or not. The sampler iterates this set.
func (m *Manager) InstanceNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.instances))
	for name := range m.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StopAll stops every running server. Used on daemon shutdown.
func (m *Manager) StopAll() {
	for _, name := range m.InstanceNames() {
		m.Stop(name)
	}
}

// liveInstance returns the attached instance for a name, reconciling on
// the way: an instance whose process exited is detached, put through the
// stop sequence, and nil is returned.
func (m *Manager) liveInstance(name string) *runner.Instance {
	m.mu.Lock()
	inst := m.instances[name]
	m.mu.Unlock()

	if inst == nil {
		return nil
	}
	if inst.Exited() {
		m.reapDead(name, inst)
		return nil
	}
	return inst
}

// reapDead detaches a dead instance and runs the stop sequence so the
// exit status is collected and the stopped status is reported.
func (m *Manager) reapDead(name string, inst *runner.Instance) {
	m.mu.Lock()
	if m.instances[name] == inst {
		delete(m.instances, name)
		delete(m.lastReported, name)
	}
	m.mu.Unlock()

	inst.Stop()

	m.bus.Publish(domain.Event{
		Type:   domain.EventStopped,
		Server: name,
		Time:   time.Now(),
	})
}

// opLock returns the transition lock for a name, creating it lazily.
// reapDead deliberately skips it: reaping runs inside Start's check and
// would deadlock, and the identity-checked detach plus the instance's own
// idempotent Stop make it safe without one.
func (m *Manager) opLock(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ops[name]
	if !ok {
		l = &sync.Mutex{}
		m.ops[name] = l
	}
	return l
}

// detach removes and returns the attached instance, if any.
func (m *Manager) detach(name string) *runner.Instance {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst := m.instances[name]
	if inst != nil {
		delete(m.instances, name)
		delete(m.lastReported, name)
	}
	return inst
}

func (m *Manager) maybePublishMetrics(name string, snapshot domain.Metrics) bool {
	m.mu.Lock()
	last, seen := m.lastReported[name]
	changed := metricsChanged(last, seen, snapshot)
	if changed {
		m.lastReported[name] = snapshot
	}
	m.mu.Unlock()

	if !changed {
		return false
	}
	m.bus.Publish(domain.Event{
		Type:    domain.EventMetricsChanged,
		Server:  name,
		Metrics: &snapshot,
		Time:    time.Now(),
	})
	return true
}

// metricsChanged reports whether a snapshot differs enough from the last
// published one to be worth an event. Deltas meeting either threshold
// exactly count as changed.
func metricsChanged(last domain.Metrics, seen bool, next domain.Metrics) bool {
	if !seen {
		return true
	}
	return abs(next.CPUPercent-last.CPUPercent) >= cpuDelta ||
		abs(next.MemoryMB-last.MemoryMB) >= ramDelta
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (m *Manager) onStatus(name, status string) {
	var startedAt *time.Time
	if status == domain.StatusRunning {
		now := time.Now()
		startedAt = &now
	}
	_ = m.store.UpdateStatus(name, status, startedAt)

	m.bus.Publish(domain.Event{
		Type:   domain.EventStatusChanged,
		Server: name,
		Status: status,
		Time:   time.Now(),
	})
}

func (m *Manager) onLog(name, line string, isError bool) {
	m.logs.Append(name, line)

	m.bus.Publish(domain.Event{
		Type:    domain.EventLog,
		Server:  name,
		Line:    line,
		IsError: isError,
		Time:    time.Now(),
	})
}

func (m *Manager) onPort(name string, port int) {
	m.bus.Publish(domain.Event{
		Type:   domain.EventPortDetected,
		Server: name,
		Port:   port,
		Time:   time.Now(),
	})
}
