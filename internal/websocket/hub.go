// internal/websocket/hub.go
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one frame pushed to connected UIs: agreement signings,
// settlement outcomes, subscription modifications.
type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

// Hub fans protocol events out to connected websocket clients. It
// satisfies the EventPublisher interfaces the services accept.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		logger:     logger,
	}
}

// Run pumps registrations and broadcasts until the channel closes. Start
// it once in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client registered", zap.String("peer", client.peerKey))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client unregistered", zap.String("peer", client.peerKey))

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow consumer; drop the frame rather than block the hub.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues an event for broadcast. Non-blocking: if the hub is
// saturated the event is dropped and logged.
func (h *Hub) Publish(event string, payload any) {
	select {
	case h.broadcast <- Event{Event: event, Payload: payload, SentAt: time.Now()}:
	default:
		h.logger.Warn("event dropped, hub saturated", zap.String("event", event))
	}
}
