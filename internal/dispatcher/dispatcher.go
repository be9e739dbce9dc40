// Package dispatcher implements named broadcast signals connecting the
// coordinator to the entities that present its data. Handlers receive
// the (vin, descriptor) pair that changed.
package dispatcher

import (
	"sync"
)

// Handler receives one update notification.
type Handler func(vin, descriptor string)

// Dispatcher fans update notifications out to connected handlers.
// Connect and the returned unsubscribe func are safe for concurrent use
// with Send.
type Dispatcher struct {
	mu      sync.RWMutex
	nextID  int
	signals map[string]map[int]Handler
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		signals: make(map[string]map[int]Handler),
	}
}

// Connect registers a handler on the named signal and returns an
// unsubscribe func. Unsubscribing more than once is a no-op.
func (d *Dispatcher) Connect(signal string, h Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	handlers, ok := d.signals[signal]
	if !ok {
		handlers = make(map[int]Handler)
		d.signals[signal] = handlers
	}
	id := d.nextID
	d.nextID++
	handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.signals[signal], id)
		})
	}
}

// Send invokes every handler connected to the named signal.
// Handlers run on the caller's goroutine; they must not block.
func (d *Dispatcher) Send(signal, vin, descriptor string) {
	d.mu.RLock()
	handlers := make([]Handler, 0, len(d.signals[signal]))
	for _, h := range d.signals[signal] {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		h(vin, descriptor)
	}
}

// ConnectedCount returns the number of handlers on the named signal.
func (d *Dispatcher) ConnectedCount(signal string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.signals[signal])
}
