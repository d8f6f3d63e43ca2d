package ws

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub broadcasts messages to any number of WebSocket clients and keeps a
// bounded history that is replayed to clients as they connect. Supervised
// processes take no console input, so traffic is strictly one-way.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	unregister chan *Client
	stop       chan struct{}

	history      [][]byte
	maxHistory   int
	clearHistory chan struct{}

	snapshotRequests chan *Client

	mu sync.RWMutex
}

func NewHub(maxHistory int) *Hub {
	if maxHistory < 0 {
		maxHistory = 0
	}
	h := &Hub{
		broadcast:        make(chan []byte, 4096),
		unregister:       make(chan *Client),
		clients:          make(map[*Client]bool),
		stop:             make(chan struct{}),
		maxHistory:       maxHistory,
		clearHistory:     make(chan struct{}, 1),
		snapshotRequests: make(chan *Client, 8),
	}
	if maxHistory > 0 {
		h.history = make([][]byte, 0, maxHistory)
	}
	return h
}

func (h *Hub) HistorySnapshot() [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.history) == 0 {
		return nil
	}
	out := make([][]byte, len(h.history))
	copy(out, h.history)
	return out
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if client.replay != nil {
					close(client.replay)
				}
			}

		case client := <-h.snapshotRequests:
			h.mu.RLock()
			if len(h.history) > 0 {
				snapshot := make([][]byte, len(h.history))
				copy(snapshot, h.history)
				h.mu.RUnlock()
				if client.replay == nil {
					client.replay = make(chan []byte, len(snapshot))
				}
				for _, msg := range snapshot {
					client.replay <- msg
				}
			} else {
				h.mu.RUnlock()
			}
			h.clients[client] = true
			close(client.ready)

		case message := <-h.broadcast:
			msgCopy := append([]byte(nil), message...)
			if h.maxHistory > 0 {
				h.mu.Lock()
				h.history = append(h.history, msgCopy)
				if len(h.history) > h.maxHistory {
					h.history = h.history[1:]
				}
				h.mu.Unlock()
			}

			for client := range h.clients {
				select {
				case client.send <- msgCopy:
				default:
					close(client.send)
					if client.replay != nil {
						close(client.replay)
					}
					delete(h.clients, client)
				}
			}

		case <-h.clearHistory:
			h.mu.Lock()
			h.history = nil
			h.mu.Unlock()

		case <-h.stop:
			for client := range h.clients {
				close(client.send)
				if client.replay != nil {
					close(client.replay)
				}
			}
			h.mu.Lock()
			h.history = nil
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.stop)
}

func (h *Hub) ClearHistory() {
	select {
	case h.clearHistory <- struct{}{}:
	default:
	}
}

func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	client := newClient(h, conn)

	// Queue the history replay before the pumps start so replayed lines
	// always precede live ones.
	h.snapshotRequests <- client

	go client.writePump()
	go client.readPump()
}
