package host

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/GoCodeAlone/atelier/catalog"
)

// EventHub fans catalog change events out to websocket clients so the
// frontend can refresh panels without polling.
type EventHub struct {
	mu       sync.Mutex
	logger   *slog.Logger
	upgrader websocket.Upgrader
	conns    map[*websocket.Conn]struct{}
}

// NewEventHub creates a hub with no clients.
func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Attach subscribes the hub to catalog events. The returned function
// unsubscribes.
func (h *EventHub) Attach(cat *catalog.Catalog) func() {
	return cat.Subscribe(h.broadcast)
}

// broadcast writes one event to every connected client. A client whose write
// fails is dropped; catalog notification must never block on a dead peer.
func (h *EventHub) broadcast(ev catalog.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug("Dropping websocket client", "error", err)
			_ = conn.Close()
			delete(h.conns, conn)
		}
	}
}

// ServeHTTP upgrades the request and holds the connection open until the
// client goes away. Incoming messages are discarded; the feed is one-way.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.conns, conn)
			h.mu.Unlock()
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close disconnects all clients.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.Close()
		delete(h.conns, conn)
	}
}
