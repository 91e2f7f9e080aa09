package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrHubBusy is returned by Publish when the broadcast queue is full.
var ErrHubBusy = errors.New("event hub is busy")

// Event is one message pushed to a shop's back-office clients.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type shopEvent struct {
	ShopID uuid.UUID
	Event  Event
}

// Hub keeps one room of clients per shop and fans events out to them.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *shopEvent
	done       chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *shopEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub loop. It returns when ctx is done, closing every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for shopID, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, shopID)
			}
			h.mu.Unlock()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.shopID] == nil {
				h.rooms[client.shopID] = make(map[*Client]bool)
			}
			h.rooms[client.shopID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.rooms[event.ShopID] {
				select {
				case client.send <- message:
				default:
					// slow consumer
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes client from its room. Caller holds h.mu.
func (h *Hub) drop(client *Client) {
	clients, ok := h.rooms[client.shopID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.shopID)
	}
}

// Publish queues an event for every client in the shop's room. It never
// blocks; a full queue drops the event and returns ErrHubBusy.
func (h *Hub) Publish(shopID uuid.UUID, eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- &shopEvent{ShopID: shopID, Event: Event{Type: eventType, Payload: raw}}:
		return nil
	default:
		return ErrHubBusy
	}
}

// Clients reports how many clients are connected for a shop.
func (h *Hub) Clients(shopID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[shopID])
}
