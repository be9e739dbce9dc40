// Package telemetry distributes vehicle state events to SSE clients
// with per-vehicle buffering and Last-Event-ID resume.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cardata-bridge/cdb/internal/config"
)

// Event is one telemetry event in SSE framing.
type Event struct {
	ID   int64  `json:"id,omitempty"`
	Type string `json:"type"`
	Data any    `json:"data"`
	VIN  string `json:"vin,omitempty"`
}

// Client is one connected SSE subscriber. A client may filter on a
// single VIN via the vin query parameter.
type Client struct {
	ID      string
	Writer  http.ResponseWriter
	Context context.Context
	Cancel  context.CancelFunc
	LastID  int64
	VIN     string
	Events  chan Event

	once sync.Once
	mu   sync.Mutex // serializes Writer access
}

// Hub fans vehicle state events out to SSE clients.
//
// Lock ordering: h.mu before any eventBuffer mutex. Client channels are
// closed exactly once via sync.Once.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	eventIDs map[string]*int64 // monotonic per-VIN counters
	buffers  map[string]*eventBuffer

	cfg config.TelemetryConfig

	heartbeat     *time.Ticker
	stopHeartbeat chan struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

// NewHub creates a hub with the given timing/buffering configuration.
func NewHub(cfg config.TelemetryConfig) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		eventIDs: make(map[string]*int64),
		buffers:  make(map[string]*eventBuffer),
		cfg:      cfg,
		done:     make(chan struct{}),
	}
}

// Subscribe attaches an SSE client and blocks until it disconnects.
// A Last-Event-ID header triggers replay of buffered events for the
// client's VIN.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientCtx, cancel := context.WithCancel(ctx)

	var lastID int64
	if s := r.Header.Get("Last-Event-ID"); s != "" {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			lastID = id
		}
	}

	client := &Client{
		ID:      uuid.NewString(),
		Writer:  w,
		Context: clientCtx,
		Cancel:  cancel,
		LastID:  lastID,
		VIN:     r.URL.Query().Get("vin"),
		Events:  make(chan Event, 100),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	if err := h.sendReadyEvent(client); err != nil {
		h.unregisterClient(client.ID)
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	if lastID > 0 {
		if err := h.replayEvents(client, lastID); err != nil {
			h.unregisterClient(client.ID)
			return fmt.Errorf("failed to replay events: %w", err)
		}
	}

	h.mu.Lock()
	if len(h.clients) == 1 && h.heartbeat == nil {
		h.startHeartbeat()
	}
	h.mu.Unlock()

	h.serveClient(client)
	return nil
}

// Publish delivers an event to all clients whose VIN filter matches and
// buffers it for replay when it carries a VIN.
func (h *Hub) Publish(event Event) error {
	if event.ID == 0 {
		event.ID = h.nextEventID(event.VIN)
	}
	if event.VIN != "" {
		h.bufferEvent(event)
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.VIN == "" || event.VIN == "" || c.VIN == event.VIN {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case <-c.Context.Done():
			continue
		case <-h.done:
			return nil
		case c.Events <- event:
		case <-time.After(100 * time.Millisecond):
			// Drop for slow clients rather than block the publisher.
		}
	}
	return nil
}

// PublishVehicle publishes a typed event for one vehicle.
func (h *Hub) PublishVehicle(vin, eventType string, data any) error {
	return h.Publish(Event{Type: eventType, Data: data, VIN: vin})
}

func (h *Hub) sendReadyEvent(c *Client) error {
	return h.writeEvent(c, Event{
		ID:   h.nextEventID(c.VIN),
		Type: "ready",
		Data: map[string]any{"vin": c.VIN},
	})
}

func (h *Hub) replayEvents(c *Client, lastID int64) error {
	h.mu.RLock()
	buf, ok := h.buffers[c.VIN]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	for _, ev := range buf.eventsAfter(lastID) {
		if err := h.writeEvent(c, ev); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hub) writeEvent(c *Client, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.ID > 0 {
		if _, err := fmt.Fprintf(c.Writer, "id: %d\n", ev.ID); err != nil {
			return fmt.Errorf("failed to write event id: %w", err)
		}
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\n", ev.Type); err != nil {
		return fmt.Errorf("failed to write event type: %w", err)
	}

	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}

	if f, ok := c.Writer.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func (h *Hub) serveClient(c *Client) {
	defer func() {
		c.once.Do(func() { close(c.Events) })
		h.unregisterClient(c.ID)
	}()

	for {
		select {
		case <-c.Context.Done():
			return
		default:
		}

		timeout := time.NewTimer(100 * time.Millisecond)
		select {
		case <-c.Context.Done():
			timeout.Stop()
			return
		case <-timeout.C:
			continue
		case ev, ok := <-c.Events:
			timeout.Stop()
			if !ok {
				return
			}
			if err := h.writeEvent(c, ev); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unregisterClient(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return
	}
	c.Cancel()
	delete(h.clients, id)

	if len(h.clients) == 0 && h.heartbeat != nil {
		h.heartbeat.Stop()
		h.heartbeat = nil
		if h.stopHeartbeat != nil {
			close(h.stopHeartbeat)
			h.stopHeartbeat = nil
		}
	}
}

func (h *Hub) nextEventID(vin string) int64 {
	if vin == "" {
		vin = "global"
	}

	h.mu.RLock()
	counter, ok := h.eventIDs[vin]
	h.mu.RUnlock()
	if ok {
		return atomic.AddInt64(counter, 1)
	}

	h.mu.Lock()
	counter, ok = h.eventIDs[vin]
	if !ok {
		var initial int64
		counter = &initial
		h.eventIDs[vin] = counter
	}
	h.mu.Unlock()
	return atomic.AddInt64(counter, 1)
}

// bufferEvent appends to the per-VIN replay buffer. Buffers are never
// removed from the map, so references stay valid after h.mu is
// released.
func (h *Hub) bufferEvent(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf, ok := h.buffers[ev.VIN]
	if !ok {
		buf = newEventBuffer(h.cfg.EventBufferSize)
		h.buffers[ev.VIN] = buf
	}
	buf.add(ev)
}

// startHeartbeat runs the heartbeat ticker. Caller holds h.mu and has
// verified h.heartbeat == nil.
func (h *Hub) startHeartbeat() {
	interval := h.cfg.HeartbeatInterval() + time.Duration(float64(h.cfg.HeartbeatJitter())*0.5)

	h.heartbeat = time.NewTicker(interval)
	h.stopHeartbeat = make(chan struct{})

	ticker := h.heartbeat
	stop := h.stopHeartbeat

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ticker.C:
				_ = h.Publish(Event{
					Type: "heartbeat",
					Data: map[string]any{"ts": time.Now().UTC().Format(time.RFC3339)},
				})
			case <-stop:
				return
			case <-h.done:
				return
			}
		}
	}()
}

// Stop shuts the hub down, disconnecting all clients.
func (h *Hub) Stop() {
	close(h.done)

	h.mu.Lock()
	for _, c := range h.clients {
		c.Cancel()
	}
	if h.heartbeat != nil {
		h.heartbeat.Stop()
		h.heartbeat = nil
	}
	if h.stopHeartbeat != nil {
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}

	h.mu.Lock()
	for _, c := range h.clients {
		c.Cancel()
		c.once.Do(func() { close(c.Events) })
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()
}

// eventBuffer is a bounded FIFO of events for one vehicle.
type eventBuffer struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

func newEventBuffer(capacity int) *eventBuffer {
	return &eventBuffer{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
	}
}

func (b *eventBuffer) add(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, ev)
	if len(b.events) > b.capacity {
		b.events = b.events[1:]
	}
}

func (b *eventBuffer) eventsAfter(lastID int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, ev := range b.events {
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

func (b *eventBuffer) size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
