// Package realtime pushes live stock levels to WebSocket viewers.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// StockUpdate is the message broadcast whenever a product's remaining
// quantity changes.
type StockUpdate struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// Hub manages WebSocket clients and broadcasts stock updates to them.
type Hub struct {
	connections map[*websocket.Conn]struct{}
	Register    chan *websocket.Conn
	Unregister  chan *websocket.Conn
	broadcast   chan []byte
	mu          sync.Mutex
}

// NewHub constructs a Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		Register:    make(chan *websocket.Conn),
		Unregister:  make(chan *websocket.Conn),
		broadcast:   make(chan []byte, 64),
	}
}

// NotifyStock queues a stock update for broadcast. It never blocks the
// caller; updates are dropped when the hub is saturated, viewers catch up
// on the next change.
func (h *Hub) NotifyStock(productID string, quantity int64) {
	msg, err := json.Marshal(StockUpdate{ProductID: productID, Quantity: quantity})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
	}
}

// Run processes register/unregister/broadcast events.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.Register:
			h.mu.Lock()
			h.connections[conn] = struct{}{}
			h.mu.Unlock()
		case conn := <-h.Unregister:
			h.mu.Lock()
			delete(h.connections, conn)
			h.mu.Unlock()
			conn.Close()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.connections {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.connections, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}
