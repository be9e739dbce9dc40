// Package entity provides the shared base for integration entities
// presented to the platform registry.
package entity

import (
	"fmt"

	"github.com/cardata-bridge/cdb/internal/coordinator"
)

// Base carries the identity every CarData entity shares: the vehicle it
// belongs to, a per-platform key, and the coordinator it reads from.
type Base struct {
	coordinator *coordinator.Coordinator
	vin         string
	key         string
	name        string
}

// NewBase creates the entity base for one vehicle and platform key.
func NewBase(c *coordinator.Coordinator, vin, key, name string) Base {
	return Base{
		coordinator: c,
		vin:         vin,
		key:         key,
		name:        name,
	}
}

// UniqueID returns the stable entity identifier.
func (b *Base) UniqueID() string {
	return fmt.Sprintf("%s_%s", b.vin, b.key)
}

// VIN returns the vehicle identifier.
func (b *Base) VIN() string {
	return b.vin
}

// Name returns the display name.
func (b *Base) Name() string {
	return b.name
}

// Coordinator returns the signal cache this entity reads from.
func (b *Base) Coordinator() *coordinator.Coordinator {
	return b.coordinator
}

// ExtraStateAttributes returns the attributes common to all entities.
// Platforms extend the returned map with their own attributes.
func (b *Base) ExtraStateAttributes() map[string]any {
	return map[string]any{
		"vin": b.vin,
	}
}
