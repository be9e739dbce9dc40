// Package tracker implements the vehicle location tracker platform: one
// entity per vehicle presenting GPS coordinates read from the
// coordinator signal cache.
package tracker

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/cardata-bridge/cdb/internal/coordinator"
	"github.com/cardata-bridge/cdb/internal/entity"
)

// CarData descriptors consumed by the location tracker.
const (
	LatitudeDescriptor  = "vehicle.cabin.infotainment.navigation.currentLocation.latitude"
	LongitudeDescriptor = "vehicle.cabin.infotainment.navigation.currentLocation.longitude"
	HeadingDescriptor   = "vehicle.cabin.infotainment.navigation.currentLocation.heading"
	AccuracyDescriptor  = "vehicle.cabin.infotainment.navigation.currentLocation.horizontalAccuracy"
	GpsFixDescriptor    = "vehicle.cabin.infotainment.navigation.currentLocation.gpsFixStatus"
)

// SourceTypeGPS marks tracker positions as GPS-sourced.
const SourceTypeGPS = "gps"

// StateWriter receives tracker state snapshots on refresh.
type StateWriter interface {
	WriteState(t *Tracker)
}

// Registry is the platform surface trackers are registered with on
// setup. AddEntities must invoke AddedToPlatform on each tracker.
type Registry interface {
	AddEntities(trackers ...*Tracker)
}

// Setup enumerates known vehicles and registers one tracker per vehicle
// that has at least one coordinate reading cached. Vehicles without
// coordinate data produce no tracker.
func Setup(c *coordinator.Coordinator, reg Registry) error {
	seen := make(map[string]struct{})
	var trackers []*Tracker

	for _, sig := range c.IterDescriptors(false) {
		if _, ok := seen[sig.VIN]; ok {
			continue
		}
		seen[sig.VIN] = struct{}{}

		_, hasLat := c.GetState(sig.VIN, LatitudeDescriptor)
		_, hasLon := c.GetState(sig.VIN, LongitudeDescriptor)
		if hasLat || hasLon {
			trackers = append(trackers, New(c, sig.VIN))
		}
	}

	if len(trackers) > 0 {
		reg.AddEntities(trackers...)
	}
	return nil
}

// Tracker is the location tracker entity for one vehicle.
type Tracker struct {
	entity.Base

	writer      StateWriter
	unsubscribe func()
}

// New creates a tracker for the given vehicle.
func New(c *coordinator.Coordinator, vin string) *Tracker {
	return &Tracker{
		Base: entity.NewBase(c, vin, "location", "Vehicle Location"),
	}
}

// AddedToPlatform connects the tracker to the coordinator update signal
// and writes its initial state.
func (t *Tracker) AddedToPlatform(w StateWriter) {
	t.writer = w
	t.unsubscribe = t.Coordinator().Dispatcher().Connect(coordinator.SignalUpdate, t.handleUpdate)
	w.WriteState(t)
}

// WillRemove releases the update subscription.
func (t *Tracker) WillRemove() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
}

// handleUpdate refreshes state only for this vehicle's location
// descriptors; all other notifications are ignored.
func (t *Tracker) handleUpdate(vin, descriptor string) {
	if vin != t.VIN() || !isLocationDescriptor(descriptor) {
		return
	}
	slog.Debug("location update",
		slog.String("vin", vin),
		slog.String("descriptor", descriptor))
	if t.writer != nil {
		t.writer.WriteState(t)
	}
}

func isLocationDescriptor(descriptor string) bool {
	switch descriptor {
	case LatitudeDescriptor, LongitudeDescriptor, HeadingDescriptor,
		AccuracyDescriptor, GpsFixDescriptor:
		return true
	}
	return false
}

// Latitude returns the vehicle latitude. ok is false when no value is
// cached or the cached value is not numeric.
func (t *Tracker) Latitude() (float64, bool) {
	return t.coordinate(LatitudeDescriptor)
}

// Longitude returns the vehicle longitude. ok is false when no value is
// cached or the cached value is not numeric.
func (t *Tracker) Longitude() (float64, bool) {
	return t.coordinate(LongitudeDescriptor)
}

func (t *Tracker) coordinate(descriptor string) (float64, bool) {
	st, ok := t.Coordinator().GetState(t.VIN(), descriptor)
	if !ok || st.Value == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(st.Value, 64)
	if err != nil {
		slog.Warn("invalid coordinate value",
			slog.String("vin", t.VIN()),
			slog.String("descriptor", descriptor),
			slog.String("value", st.Value))
		return 0, false
	}
	return v, true
}

// SourceType reports how positions are determined.
func (t *Tracker) SourceType() string {
	return SourceTypeGPS
}

// Available reports whether the tracker has a usable position: at least
// one coordinate parses, and the GPS fix status does not explicitly
// report no fix.
func (t *Tracker) Available() bool {
	_, latOK := t.Latitude()
	_, lonOK := t.Longitude()
	if !latOK && !lonOK {
		return false
	}
	if st, ok := t.Coordinator().GetState(t.VIN(), GpsFixDescriptor); ok && isNoFix(st.Value) {
		return false
	}
	return true
}

// isNoFix reports whether a fix status value explicitly denies a fix.
// Absent or unrecognized values do not count as a denial.
func isNoFix(value string) bool {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "NO_FIX", "NOFIX", "NONE", "0":
		return true
	}
	return false
}

// ExtraStateAttributes returns entity attributes: direction and GPS
// accuracy when cached, on top of the base attributes.
func (t *Tracker) ExtraStateAttributes() map[string]any {
	attrs := t.Base.ExtraStateAttributes()
	if st, ok := t.Coordinator().GetState(t.VIN(), HeadingDescriptor); ok && st.Value != "" {
		attrs["direction"] = st.Value
	}
	if st, ok := t.Coordinator().GetState(t.VIN(), AccuracyDescriptor); ok && st.Value != "" {
		attrs["gpsAccuracy"] = st.Value
	}
	return attrs
}

// Snapshot captures the externally visible tracker state.
type Snapshot struct {
	VIN        string         `json:"vin"`
	UniqueID   string         `json:"uniqueId"`
	Name       string         `json:"name"`
	Latitude   *float64       `json:"latitude"`
	Longitude  *float64       `json:"longitude"`
	Available  bool           `json:"available"`
	SourceType string         `json:"sourceType"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Snapshot returns the current tracker state for publication.
func (t *Tracker) Snapshot() Snapshot {
	snap := Snapshot{
		VIN:        t.VIN(),
		UniqueID:   t.UniqueID(),
		Name:       t.Name(),
		Available:  t.Available(),
		SourceType: t.SourceType(),
		Attributes: t.ExtraStateAttributes(),
	}
	if lat, ok := t.Latitude(); ok {
		snap.Latitude = &lat
	}
	if lon, ok := t.Longitude(); ok {
		snap.Longitude = &lon
	}
	return snap
}
