package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardata-bridge/cdb/internal/dispatcher"
)

const (
	testVIN  = "WBA00TEST000000001"
	testDesc = "vehicle.cabin.infotainment.navigation.currentLocation.latitude"
)

func TestUpsertAndGetState(t *testing.T) {
	c := New(dispatcher.New())

	_, ok := c.GetState(testVIN, testDesc)
	assert.False(t, ok, "empty coordinator must report no state")

	c.Upsert(testVIN, testDesc, State{Value: "48.1371"})

	st, ok := c.GetState(testVIN, testDesc)
	require.True(t, ok)
	assert.Equal(t, "48.1371", st.Value)
	assert.False(t, st.Timestamp.IsZero(), "upsert must stamp states")
}

func TestGetStateChecksBinarySpace(t *testing.T) {
	c := New(dispatcher.New())
	c.UpsertBinary(testVIN, "vehicle.isMoving", State{Value: "true"})

	st, ok := c.GetState(testVIN, "vehicle.isMoving")
	require.True(t, ok)
	assert.Equal(t, "true", st.Value)
}

func TestIterDescriptorsSeparatesSpaces(t *testing.T) {
	c := New(dispatcher.New())
	c.Upsert(testVIN, testDesc, State{Value: "48.1"})
	c.Upsert("WBA00TEST000000002", testDesc, State{Value: "49.2"})
	c.UpsertBinary(testVIN, "vehicle.isMoving", State{Value: "false"})

	regular := c.IterDescriptors(false)
	require.Len(t, regular, 2)
	assert.Equal(t, "WBA00TEST000000001", regular[0].VIN)
	assert.Equal(t, "WBA00TEST000000002", regular[1].VIN)

	binary := c.IterDescriptors(true)
	require.Len(t, binary, 1)
	assert.Equal(t, "vehicle.isMoving", binary[0].Descriptor)
}

func TestUpsertDispatchesUpdate(t *testing.T) {
	d := dispatcher.New()
	c := New(d)

	var gotVIN, gotDesc string
	unsub := d.Connect(SignalUpdate, func(vin, descriptor string) {
		gotVIN, gotDesc = vin, descriptor
	})
	defer unsub()

	c.Upsert(testVIN, testDesc, State{Value: "48.1371", Timestamp: time.Now()})

	assert.Equal(t, testVIN, gotVIN)
	assert.Equal(t, testDesc, gotDesc)
}

func TestHandlerMayReadBack(t *testing.T) {
	d := dispatcher.New()
	c := New(d)

	var seen string
	unsub := d.Connect(SignalUpdate, func(vin, descriptor string) {
		if st, ok := c.GetState(vin, descriptor); ok {
			seen = st.Value
		}
	})
	defer unsub()

	c.Upsert(testVIN, testDesc, State{Value: "48.1371"})
	assert.Equal(t, "48.1371", seen, "handler must observe the upserted state")
}

func TestVINs(t *testing.T) {
	c := New(dispatcher.New())
	assert.Empty(t, c.VINs())

	c.Upsert("B", testDesc, State{Value: "1"})
	c.Upsert("A", testDesc, State{Value: "2"})
	c.UpsertBinary("C", "vehicle.isMoving", State{Value: "true"})

	assert.Equal(t, []string{"A", "B", "C"}, c.VINs())
}
