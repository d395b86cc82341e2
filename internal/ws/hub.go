package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Hub maps connection handles to live websocket writers. Which handles a
// payload goes to is the Dispatcher's business; the hub only owns the
// conns and the isolation of per-conn write failures.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*clientConn // connID -> conn
}

func NewHub() *Hub { return &Hub{conns: map[string]*clientConn{}} }

func (h *Hub) Add(connID string, c *clientConn) {
	h.mu.Lock()
	h.conns[connID] = c
	h.mu.Unlock()
}

func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	c := h.conns[connID]
	delete(h.conns, connID)
	h.mu.Unlock()
	if c != nil {
		c.close()
	}
}

// Send writes msg to every listed connection. A failed write drops only that
// connection; the rest of the fan-out is unaffected.
func (h *Hub) Send(connIDs []string, msg []byte) {
	// Take a quick snapshot of the current connections
	h.mu.RLock()
	conns := make([]*clientConn, 0, len(connIDs))
	ids := make([]string, 0, len(connIDs))
	for _, id := range connIDs {
		if c, ok := h.conns[id]; ok {
			conns = append(conns, c)
			ids = append(ids, id)
		}
	}
	h.mu.RUnlock()

	// Do the I/O outside the lock
	for i, c := range conns {
		if err := c.write(websocket.TextMessage, msg); err != nil {
			h.Remove(ids[i])
		}
	}
}
