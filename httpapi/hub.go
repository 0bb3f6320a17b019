package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hub tracks connected WebSocket clients and periodically broadcasts the
// current status to all of them. A client whose write fails is dropped.
// Writes carry no deadline, so a peer that stops reading holds up the
// broadcast loop until its write fails.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	stop    chan struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]struct{}), stop: make(chan struct{})}
}

func (h *hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.Close()
}

// broadcastLoop pushes statusFn()'s result to every connected client every
// interval, and once immediately.
func (h *hub) broadcastLoop(interval time.Duration, statusFn func() statusResponse) {
	h.broadcast(statusFn())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.broadcast(statusFn())
		case <-h.stop:
			return
		}
	}
}

func (h *hub) broadcast(status statusResponse) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteJSON(status); err != nil {
			h.remove(c)
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("httpapi: websocket upgrade failed: %v", err)
		return
	}
	s.hub.add(conn)

	if err := conn.WriteJSON(s.statusJSON()); err != nil {
		s.hub.remove(conn)
		return
	}

	// Drain and discard any client-sent frames until the connection closes;
	// this is what detects the peer going away.
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
