package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cardata-bridge/cdb/internal/tracker"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsGateway pushes tracker snapshots to WebSocket clients: a full
// snapshot list on connect, then every state write as it happens.
type wsGateway struct {
	registry RegistryPort

	mu          sync.Mutex
	clients     map[*websocket.Conn]struct{}
	unsubscribe func()
}

func newWSGateway(registry RegistryPort) *wsGateway {
	return &wsGateway{
		registry: registry,
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// start attaches the gateway to registry state writes.
func (g *wsGateway) start() {
	g.unsubscribe = g.registry.Subscribe(func(snap tracker.Snapshot) {
		g.broadcast(snap)
	})
}

func (g *wsGateway) stop() {
	if g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}
	g.mu.Lock()
	for c := range g.clients {
		_ = c.Close()
		delete(g.clients, c)
	}
	g.mu.Unlock()
}

func (g *wsGateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade error", slog.String("error", err.Error()))
		return
	}

	// Initial snapshot so clients render immediately. Written before
	// registration so it cannot interleave with a broadcast.
	if err := writeSnapshots(conn, g.registry.List()); err != nil {
		_ = conn.Close()
		return
	}

	g.mu.Lock()
	g.clients[conn] = struct{}{}
	g.mu.Unlock()

	go g.readPump(conn)
}

func (g *wsGateway) remove(c *websocket.Conn) {
	g.mu.Lock()
	delete(g.clients, c)
	g.mu.Unlock()
	_ = c.Close()
}

func (g *wsGateway) broadcast(snap tracker.Snapshot) {
	data, _ := json.Marshal([]tracker.Snapshot{snap})
	g.mu.Lock()
	for c := range g.clients {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			_ = c.Close()
			delete(g.clients, c)
		}
	}
	g.mu.Unlock()
}

// readPump drains client messages until the connection drops; inbound
// payloads are ignored.
func (g *wsGateway) readPump(c *websocket.Conn) {
	defer g.remove(c)
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func writeSnapshots(c *websocket.Conn, snaps []tracker.Snapshot) error {
	data, _ := json.Marshal(snaps)
	return c.WriteMessage(websocket.TextMessage, data)
}
