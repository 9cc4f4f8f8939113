package live

import (
	"encoding/json"

	"fireguard/internal/logger"
	"fireguard/internal/metrics"
)

// Event names pushed over the live channel.
const (
	EventReadingNew = "reading:new"
	EventAlertNew   = "alert:new"
	EventHello      = "hello"
)

// Event is one message for live subscribers.
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Publisher is the capability the ingestion core depends on: a synchronous,
// best-effort fan-out to whoever is connected. No subscribers is not an error.
type Publisher interface {
	Publish(e Event)
}

// Hub maintains the set of connected live subscribers and broadcasts events
// to them. Registered at process start, torn down at shutdown.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a hub; call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until Stop is called.
func (h *Hub) Run() {
	log := logger.WithComponent("live_hub")
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			metrics.LiveSubscribers.Set(0)
			return

		case client := <-h.register:
			h.clients[client] = true
			metrics.LiveSubscribers.Set(float64(len(h.clients)))
			log.Debug().Str("remote", client.conn.RemoteAddr().String()).Msg("subscriber registered")
			client.greet()

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.LiveSubscribers.Set(float64(len(h.clients)))
				log.Debug().Str("remote", client.conn.RemoteAddr().String()).Msg("subscriber unregistered")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow or gone; drop it
					close(client.send)
					delete(h.clients, client)
					metrics.LiveSubscribers.Set(float64(len(h.clients)))
				}
			}
		}
	}
}

// Stop disconnects all subscribers and ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

// Publish broadcasts the event to every connected subscriber. Best effort:
// marshal failures are logged and dropped, and nobody listening is fine.
func (h *Hub) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		log := logger.WithComponent("live_hub")
		log.Error().Err(err).Str("event", e.Name).Msg("failed to marshal live event")
		return
	}
	metrics.LiveEventsTotal.WithLabelValues(e.Name).Inc()
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}
