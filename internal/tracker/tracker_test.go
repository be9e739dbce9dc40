package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardata-bridge/cdb/internal/coordinator"
	"github.com/cardata-bridge/cdb/internal/dispatcher"
)

const (
	vinWithLocation = "WBA00TEST000000001"
	vinOther        = "WBA00TEST000000002"
)

type fakeRegistry struct {
	added []*Tracker
}

func (r *fakeRegistry) AddEntities(trackers ...*Tracker) {
	r.added = append(r.added, trackers...)
}

type fakeWriter struct {
	writes int
	last   Snapshot
}

func (w *fakeWriter) WriteState(t *Tracker) {
	w.writes++
	w.last = t.Snapshot()
}

func newCoordinator() *coordinator.Coordinator {
	return coordinator.New(dispatcher.New())
}

func TestSetupSkipsVehiclesWithoutCoordinates(t *testing.T) {
	c := newCoordinator()
	c.Upsert(vinWithLocation, LatitudeDescriptor, coordinator.State{Value: "48.1371"})
	c.Upsert(vinWithLocation, LongitudeDescriptor, coordinator.State{Value: "11.5754"})
	// vinOther has telemetry, but no coordinates.
	c.Upsert(vinOther, "vehicle.powertrain.range", coordinator.State{Value: "312"})

	reg := &fakeRegistry{}
	require.NoError(t, Setup(c, reg))

	require.Len(t, reg.added, 1, "only the vehicle with coordinates gets a tracker")
	assert.Equal(t, vinWithLocation, reg.added[0].VIN())
	assert.Equal(t, vinWithLocation+"_location", reg.added[0].UniqueID())
}

func TestSetupAcceptsSingleCoordinate(t *testing.T) {
	c := newCoordinator()
	c.Upsert(vinWithLocation, LongitudeDescriptor, coordinator.State{Value: "11.5754"})

	reg := &fakeRegistry{}
	require.NoError(t, Setup(c, reg))
	assert.Len(t, reg.added, 1)
}

func TestSetupEmptyCoordinator(t *testing.T) {
	reg := &fakeRegistry{}
	require.NoError(t, Setup(newCoordinator(), reg))
	assert.Empty(t, reg.added)
}

func TestCoordinates(t *testing.T) {
	c := newCoordinator()
	c.Upsert(vinWithLocation, LatitudeDescriptor, coordinator.State{Value: "48.1371"})
	c.Upsert(vinWithLocation, LongitudeDescriptor, coordinator.State{Value: "11.5754"})

	tr := New(c, vinWithLocation)

	lat, ok := tr.Latitude()
	require.True(t, ok)
	assert.InDelta(t, 48.1371, lat, 1e-9)

	lon, ok := tr.Longitude()
	require.True(t, ok)
	assert.InDelta(t, 11.5754, lon, 1e-9)
}

func TestNonNumericCoordinateYieldsNoValue(t *testing.T) {
	c := newCoordinator()
	c.Upsert(vinWithLocation, LatitudeDescriptor, coordinator.State{Value: "garbage"})
	c.Upsert(vinWithLocation, LongitudeDescriptor, coordinator.State{Value: "11.5754"})

	tr := New(c, vinWithLocation)

	_, ok := tr.Latitude()
	assert.False(t, ok, "non-numeric latitude must yield no value")

	_, ok = tr.Longitude()
	assert.True(t, ok, "valid longitude must remain readable")

	assert.True(t, tr.Available(), "one valid coordinate keeps the tracker available")
}

func TestMissingCoordinate(t *testing.T) {
	tr := New(newCoordinator(), vinWithLocation)

	_, ok := tr.Latitude()
	assert.False(t, ok)
	assert.False(t, tr.Available())
}

func TestNoFixForcesUnavailable(t *testing.T) {
	c := newCoordinator()
	c.Upsert(vinWithLocation, LatitudeDescriptor, coordinator.State{Value: "48.1371"})
	c.Upsert(vinWithLocation, LongitudeDescriptor, coordinator.State{Value: "11.5754"})

	tr := New(c, vinWithLocation)
	require.True(t, tr.Available())

	c.Upsert(vinWithLocation, GpsFixDescriptor, coordinator.State{Value: "NO_FIX"})
	assert.False(t, tr.Available(), "explicit no fix overrides present coordinates")

	c.Upsert(vinWithLocation, GpsFixDescriptor, coordinator.State{Value: "3D_FIX"})
	assert.True(t, tr.Available(), "unrecognized fix values do not deny availability")
}

func TestIsNoFix(t *testing.T) {
	for _, v := range []string{"NO_FIX", "no_fix", " none ", "0", "NOFIX"} {
		assert.True(t, isNoFix(v), "value %q must deny a fix", v)
	}
	for _, v := range []string{"", "3D_FIX", "2D_FIX", "1", "unknown"} {
		assert.False(t, isNoFix(v), "value %q must not deny a fix", v)
	}
}

func TestExtraStateAttributes(t *testing.T) {
	c := newCoordinator()
	c.Upsert(vinWithLocation, HeadingDescriptor, coordinator.State{Value: "182.5"})
	c.Upsert(vinWithLocation, AccuracyDescriptor, coordinator.State{Value: "4"})

	attrs := New(c, vinWithLocation).ExtraStateAttributes()
	assert.Equal(t, "182.5", attrs["direction"])
	assert.Equal(t, "4", attrs["gpsAccuracy"])
	assert.Equal(t, vinWithLocation, attrs["vin"])
}

func TestExtraStateAttributesOmitsAbsent(t *testing.T) {
	attrs := New(newCoordinator(), vinWithLocation).ExtraStateAttributes()
	_, hasDirection := attrs["direction"]
	_, hasAccuracy := attrs["gpsAccuracy"]
	assert.False(t, hasDirection)
	assert.False(t, hasAccuracy)
}

func TestRefreshOnlyForOwnLocationDescriptors(t *testing.T) {
	d := dispatcher.New()
	c := coordinator.New(d)
	c.Upsert(vinWithLocation, LatitudeDescriptor, coordinator.State{Value: "48.1371"})

	tr := New(c, vinWithLocation)
	w := &fakeWriter{}
	tr.AddedToPlatform(w)
	defer tr.WillRemove()

	require.Equal(t, 1, w.writes, "initial state write on add")

	// Update for another vehicle: ignored.
	c.Upsert(vinOther, LatitudeDescriptor, coordinator.State{Value: "52.52"})
	assert.Equal(t, 1, w.writes)

	// Unrelated descriptor on own vehicle: ignored.
	c.Upsert(vinWithLocation, "vehicle.powertrain.range", coordinator.State{Value: "310"})
	assert.Equal(t, 1, w.writes)

	// Own location descriptor: refresh.
	c.Upsert(vinWithLocation, LongitudeDescriptor, coordinator.State{Value: "11.58"})
	assert.Equal(t, 2, w.writes)

	// Fix status also belongs to the location descriptors.
	c.Upsert(vinWithLocation, GpsFixDescriptor, coordinator.State{Value: "NO_FIX"})
	assert.Equal(t, 3, w.writes)
	assert.False(t, w.last.Available)
}

func TestWillRemoveStopsRefreshes(t *testing.T) {
	d := dispatcher.New()
	c := coordinator.New(d)
	c.Upsert(vinWithLocation, LatitudeDescriptor, coordinator.State{Value: "48.1371"})

	tr := New(c, vinWithLocation)
	w := &fakeWriter{}
	tr.AddedToPlatform(w)
	tr.WillRemove()
	// Second removal is a no-op.
	tr.WillRemove()

	writes := w.writes
	c.Upsert(vinWithLocation, LatitudeDescriptor, coordinator.State{Value: "48.14"})
	assert.Equal(t, writes, w.writes, "no refresh after removal")
}

func TestSnapshot(t *testing.T) {
	c := newCoordinator()
	c.Upsert(vinWithLocation, LatitudeDescriptor, coordinator.State{Value: "48.1371"})
	c.Upsert(vinWithLocation, HeadingDescriptor, coordinator.State{Value: "90"})

	snap := New(c, vinWithLocation).Snapshot()

	require.NotNil(t, snap.Latitude)
	assert.InDelta(t, 48.1371, *snap.Latitude, 1e-9)
	assert.Nil(t, snap.Longitude)
	assert.True(t, snap.Available)
	assert.Equal(t, "gps", snap.SourceType)
	assert.Equal(t, "90", snap.Attributes["direction"])
}
