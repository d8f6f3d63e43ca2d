package server

import (
	"sync"
	"time"
)

const (
	sampleInterval = 200 * time.Millisecond
	recordSpacing  = time.Second
)

// Monitor drives telemetry for all attached instances. Every tick it
// samples each one; samples are persisted to history at recordSpacing and
// merely propagated (through the suppression gate) in between. Instances
// may attach and detach at any time; the loop just follows the registry's
// current set.
type Monitor struct {
	manager *Manager

	lastRecord map[string]time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewMonitor(manager *Manager) *Monitor {
	return &Monitor{
		manager:    manager,
		lastRecord: make(map[string]time.Time),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (mo *Monitor) Start() {
	go mo.loop()
}

// Stop halts the loop and blocks until the current sweep finished.
func (mo *Monitor) Stop() {
	mo.stopOnce.Do(func() {
		close(mo.stopCh)
	})
	<-mo.done
}

func (mo *Monitor) loop() {
	defer close(mo.done)

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mo.stopCh:
			return
		case <-ticker.C:
			mo.sweep()
		}
	}
}

func (mo *Monitor) sweep() {
	names := mo.manager.InstanceNames()

	attached := make(map[string]bool, len(names))
	for _, name := range names {
		attached[name] = true
		if time.Since(mo.lastRecord[name]) >= recordSpacing {
			if _, ok := mo.manager.RecordMetrics(name); ok {
				mo.lastRecord[name] = time.Now()
			}
		} else {
			mo.manager.Metrics(name)
		}
	}

	for name := range mo.lastRecord {
		if !attached[name] {
			delete(mo.lastRecord, name)
		}
	}
}
