// Package notify broadcasts watch-mode events to websocket clients such as
// editor integrations or a browser reload script.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/plasmo-layout/internal/logging"
)

// Event kinds.
const (
	EventGenerated = "generated"
	EventFailed    = "failed"
	EventDeleted   = "deleted"
	EventLayout    = "layout"
)

// Event is the JSON message sent to every client.
type Event struct {
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// client is one connected websocket. Messages are queued on send and
// written by a dedicated goroutine.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to connected clients. A client whose queue is full
// is disconnected rather than allowed to block Broadcast.
type Hub struct {
	clients        map[*client]struct{}
	clientsMutex   sync.RWMutex
	originPatterns []string
	logger         logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// NewHub creates a hub. originPatterns restricts browser origins; without
// any only same-host connections are accepted.
func NewHub(logger logging.Logger, originPatterns ...string) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:        make(map[*client]struct{}),
		originPatterns: originPatterns,
		logger:         logger.WithComponent("notify_hub"),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects or the hub shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 32)}
	if !h.register(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.wg.Done()
	defer h.unregister(c)
	h.logger.Debug(r.Context(), "Client connected", "remote", r.RemoteAddr, "clients", h.Clients())

	// Clients never send anything; CloseRead handles control frames and
	// cancels ctx when the peer goes away.
	ctx := conn.CloseRead(h.ctx)
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// register adds c and counts its handler in wg. It refuses once Shutdown has
// begun; the check and the Add share the lock Shutdown takes before waiting.
func (h *Hub) register(c *client) bool {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if h.ctx.Err() != nil {
		return false
	}
	h.wg.Add(1)
	h.clients[c] = struct{}{}
	return true
}

// unregister removes c and closes its connection. It is a no-op for a
// client that was already dropped.
func (h *Hub) unregister(c *client) {
	h.clientsMutex.Lock()
	_, exists := h.clients[c]
	if exists {
		delete(h.clients, c)
		close(c.send)
	}
	h.clientsMutex.Unlock()

	if exists {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

// Broadcast queues e for every client without blocking.
func (h *Hub) Broadcast(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error(h.ctx, err, "Failed to marshal event")
		return
	}

	h.clientsMutex.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.clientsMutex.RUnlock()

	for _, c := range slow {
		h.logger.Warn(h.ctx, nil, "Dropping slow client")
		h.unregister(c)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client and waits for their handlers, or until
// ctx is done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.cancel()

		h.clientsMutex.Lock()
		clients := make([]*client, 0, len(h.clients))
		for c := range h.clients {
			clients = append(clients, c)
		}
		h.clientsMutex.Unlock()

		for _, c := range clients {
			h.unregister(c)
		}
	})

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
