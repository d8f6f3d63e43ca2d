package ws

import "sync"

// HubManager lazily creates one hub per server plus the shared event hub.
type HubManager struct {
	hubs           map[string]*Hub
	mu             sync.Mutex
	defaultHistory int
}

func NewHubManager(defaultHistory int) *HubManager {
	return &HubManager{
		hubs:           make(map[string]*Hub),
		defaultHistory: defaultHistory,
	}
}

func (m *HubManager) GetHub(name string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[name]; ok {
		return hub
	}

	hub := NewHub(m.defaultHistory)
	go hub.Run()
	m.hubs[name] = hub
	return hub
}

func (m *HubManager) RemoveHub(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[name]; ok {
		hub.ClearHistory()
		hub.Stop()
		delete(m.hubs, name)
	}
}

func (m *HubManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, hub := range m.hubs {
		hub.Stop()
		delete(m.hubs, name)
	}
}
