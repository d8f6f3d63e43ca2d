package ws

import (
	"encoding/json"
	"log"

	"procpilot/internal/domain"
	"procpilot/internal/events"
)

// EventHubName is the hub carrying every registry event as JSON. Per
// server log hubs live next to it under the server's own name.
const EventHubName = "events"

// Bridge pipes registry events into the WebSocket hubs: every event goes
// to the shared event hub, log lines additionally to the emitting
// server's hub. Runs until the bus subscription closes.
type Bridge struct {
	hubs   *HubManager
	cancel func()
	done   chan struct{}
}

func NewBridge(bus *events.Bus, hubs *HubManager) *Bridge {
	ch, cancel := bus.Subscribe()
	b := &Bridge{
		hubs:   hubs,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go b.run(ch)
	return b
}

func (b *Bridge) run(ch <-chan domain.Event) {
	defer close(b.done)

	for event := range ch {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("ws: error encoding %s event: %v", event.Type, err)
			continue
		}

		b.hubs.GetHub(EventHubName).Broadcast(data)

		if event.Type == domain.EventLog && event.Server != "" {
			b.hubs.GetHub(event.Server).Broadcast(data)
		}
	}
}

// Stop unsubscribes from the bus and waits for in-flight events to drain.
func (b *Bridge) Stop() {
	b.cancel()
	<-b.done
}
