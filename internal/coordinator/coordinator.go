// Package coordinator maintains the latest telemetry signal state per
// vehicle. It is the single owner of signal data; presentation entities
// read from it and learn about changes over the update signal.
package coordinator

import (
	"sort"
	"sync"
	"time"

	"github.com/cardata-bridge/cdb/internal/dispatcher"
)

// SignalUpdate is the dispatcher signal carrying (vin, descriptor)
// change notifications.
const SignalUpdate = "cardata_state_update"

// State is the latest cached reading for one (vin, descriptor) pair.
type State struct {
	Value     string    `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Signal identifies one cached descriptor for one vehicle.
type Signal struct {
	VIN        string `json:"vin"`
	Descriptor string `json:"descriptor"`
}

// Coordinator caches telemetry states keyed by VIN and descriptor.
// Regular and binary descriptors live in separate spaces, matching how
// they are presented downstream.
type Coordinator struct {
	mu         sync.RWMutex
	data       map[string]map[string]State // vin -> descriptor -> state
	binaryData map[string]map[string]State
	dispatch   *dispatcher.Dispatcher
}

// New creates an empty coordinator dispatching on d.
func New(d *dispatcher.Dispatcher) *Coordinator {
	return &Coordinator{
		data:       make(map[string]map[string]State),
		binaryData: make(map[string]map[string]State),
		dispatch:   d,
	}
}

// Upsert stores the latest state for a regular descriptor and notifies
// connected entities. The dispatch runs after the lock is released so
// handlers may read back from the coordinator.
func (c *Coordinator) Upsert(vin, descriptor string, st State) {
	c.upsert(c.data, vin, descriptor, st)
	c.dispatch.Send(SignalUpdate, vin, descriptor)
}

// UpsertBinary stores the latest state for a binary descriptor and
// notifies connected entities.
func (c *Coordinator) UpsertBinary(vin, descriptor string, st State) {
	c.upsert(c.binaryData, vin, descriptor, st)
	c.dispatch.Send(SignalUpdate, vin, descriptor)
}

func (c *Coordinator) upsert(space map[string]map[string]State, vin, descriptor string, st State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byDesc, ok := space[vin]
	if !ok {
		byDesc = make(map[string]State)
		space[vin] = byDesc
	}
	if st.Timestamp.IsZero() {
		st.Timestamp = time.Now().UTC()
	}
	byDesc[descriptor] = st
}

// GetState returns the cached state for a (vin, descriptor) pair,
// checking the regular space first and the binary space second.
// The second return is false when no state is cached.
func (c *Coordinator) GetState(vin, descriptor string) (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if st, ok := c.data[vin][descriptor]; ok {
		return st, true
	}
	if st, ok := c.binaryData[vin][descriptor]; ok {
		return st, true
	}
	return State{}, false
}

// IterDescriptors returns a snapshot of all cached (vin, descriptor)
// pairs in the requested space, sorted for deterministic iteration.
func (c *Coordinator) IterDescriptors(binary bool) []Signal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	space := c.data
	if binary {
		space = c.binaryData
	}

	var out []Signal
	for vin, byDesc := range space {
		for descriptor := range byDesc {
			out = append(out, Signal{VIN: vin, Descriptor: descriptor})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VIN != out[j].VIN {
			return out[i].VIN < out[j].VIN
		}
		return out[i].Descriptor < out[j].Descriptor
	})
	return out
}

// VINs returns the sorted set of vehicles with at least one cached
// state in either space.
func (c *Coordinator) VINs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	set := make(map[string]struct{}, len(c.data))
	for vin := range c.data {
		set[vin] = struct{}{}
	}
	for vin := range c.binaryData {
		set[vin] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for vin := range set {
		out = append(out, vin)
	}
	sort.Strings(out)
	return out
}

// Dispatcher returns the dispatcher entities should connect through.
func (c *Coordinator) Dispatcher() *dispatcher.Dispatcher {
	return c.dispatch
}
