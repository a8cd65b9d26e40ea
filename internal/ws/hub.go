package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go-inventory-tree/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Event types pushed to connected clients after a change commits.
const (
	EventEntityCreated   = "entity.created"
	EventEntityUpdated   = "entity.updated"
	EventEntityDeleted   = "entity.deleted"
	EventEntityMoved     = "entity.moved"
	EventEntitySplit     = "entity.split"
	EventEntityMerged    = "entity.merged"
	EventEntityConverted = "entity.converted"
	EventQuantityChanged = "entity.quantity_changed"
	EventChildAdded      = "entity.child_added"
	EventChildRemoved    = "entity.child_removed"
	EventTypeChanged     = "entity_type.changed"
	EventCheckChanged    = "inventory_check.changed"
)

type Event struct {
	Type     string      `json:"type"`
	EntityID string      `json:"entity_id,omitempty"`
	ActorID  string      `json:"actor_id,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	At       time.Time   `json:"at"`
}

// Publisher is what services depend on; the Hub is the production one.
type Publisher interface {
	Publish(event Event)
}

// Client is the part of a websocket connection the hub writes to.
type Client interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Hub struct {
	clients    map[Client]bool
	Register   chan Client
	Unregister chan Client
	broadcast  chan []byte
	mutex      sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[Client]bool),
		Register:   make(chan Client),
		Unregister: make(chan Client),
		broadcast:  make(chan []byte, 256),
	}
}

// Publish never blocks the caller; when the buffer is full the event is
// dropped and logged.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Warn("ws: marshal event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		logger.Warn("ws: broadcast buffer full, dropping event", zap.String("type", event.Type))
	}
}

// ClientCount is used by the health endpoint.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return

		case conn := <-h.Register:
			h.mutex.Lock()
			h.clients[conn] = true
			h.mutex.Unlock()
			logger.Debug("ws: client connected")

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Nop discards events. Used by tools that run services without a server.
type Nop struct{}

func (Nop) Publish(Event) {}
