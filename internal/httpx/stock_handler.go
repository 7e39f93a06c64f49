package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"liveshop/internal/realtime"
)

// StockHandler upgrades viewers onto the stock broadcast hub.
type StockHandler struct {
	Hub      *realtime.Hub
	Upgrader websocket.Upgrader
}

func (h *StockHandler) Register(r *chi.Mux) {
	r.Get("/ws/stock", h.subscribe)
}

func (h *StockHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	h.Hub.Register <- conn

	// Drain control frames; any read error unregisters the viewer.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.Hub.Unregister <- conn
				return
			}
		}
	}()
}
