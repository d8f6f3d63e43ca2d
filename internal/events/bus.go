package events

import (
	"log"
	"sync"

	"procpilot/internal/domain"
)

const subscriberBuffer = 256

// Bus fans registry events out to any number of subscribers. Delivery is
// FIFO per subscriber; ordering across subscribers is not defined. A
// subscriber that stops draining loses events instead of blocking the
// publisher.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan domain.Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan domain.Event)}
}

// Subscribe returns a channel of events and a cancel function. Cancel is
// idempotent and closes the channel.
func (b *Bus) Subscribe() (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan domain.Event, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

func (b *Bus) Publish(e domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			log.Printf("events: dropping %s event for slow subscriber", e.Type)
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
