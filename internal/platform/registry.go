// Package platform hosts the entity registry: the runtime surface
// trackers are registered with and write their state through.
package platform

import (
	"sort"
	"sync"

	"github.com/cardata-bridge/cdb/internal/tracker"
)

// TelemetryPort is the registry's northbound push surface.
type TelemetryPort interface {
	PublishVehicle(vin, eventType string, data any) error
}

// Listener observes state snapshots as they are written.
type Listener func(tracker.Snapshot)

// Registry holds the registered trackers and their latest published
// snapshots.
type Registry struct {
	mu        sync.RWMutex
	trackers  map[string]*tracker.Tracker // by VIN
	snapshots map[string]tracker.Snapshot // by VIN
	listeners map[int]Listener
	nextID    int

	telemetry TelemetryPort
}

// NewRegistry creates an empty registry publishing to tp. tp may be nil
// in tests.
func NewRegistry(tp TelemetryPort) *Registry {
	return &Registry{
		trackers:  make(map[string]*tracker.Tracker),
		snapshots: make(map[string]tracker.Snapshot),
		listeners: make(map[int]Listener),
		telemetry: tp,
	}
}

// AddEntities registers trackers and runs their added-hook. A tracker
// for an already registered VIN replaces the previous one after running
// its removal hook.
func (r *Registry) AddEntities(trackers ...*tracker.Tracker) {
	for _, t := range trackers {
		r.mu.Lock()
		if prev, ok := r.trackers[t.VIN()]; ok {
			prev.WillRemove()
		}
		r.trackers[t.VIN()] = t
		r.mu.Unlock()

		// Outside the lock: the added-hook writes initial state back
		// through WriteState.
		t.AddedToPlatform(r)
	}
}

// WriteState stores the tracker's snapshot and publishes it.
func (r *Registry) WriteState(t *tracker.Tracker) {
	snap := t.Snapshot()

	r.mu.Lock()
	r.snapshots[snap.VIN] = snap
	listeners := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		listeners = append(listeners, l)
	}
	r.mu.Unlock()

	if r.telemetry != nil {
		_ = r.telemetry.PublishVehicle(snap.VIN, "state", snap)
	}
	for _, l := range listeners {
		l(snap)
	}
}

// Subscribe registers a snapshot listener and returns an unsubscribe
// func.
func (r *Registry) Subscribe(l Listener) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.listeners, id)
		})
	}
}

// List returns the latest snapshots sorted by VIN.
func (r *Registry) List() []tracker.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]tracker.Snapshot, 0, len(r.snapshots))
	for _, snap := range r.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VIN < out[j].VIN })
	return out
}

// Get returns the latest snapshot for a VIN.
func (r *Registry) Get(vin string) (tracker.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snapshots[vin]
	return snap, ok
}

// Remove runs the tracker's removal hook and drops it with its
// snapshot.
func (r *Registry) Remove(vin string) bool {
	r.mu.Lock()
	t, ok := r.trackers[vin]
	if ok {
		delete(r.trackers, vin)
		delete(r.snapshots, vin)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	t.WillRemove()
	return true
}

// Count returns the number of registered trackers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackers)
}
