package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hxio/instate/internal/pkg/event"
	"github.com/hxio/instate/internal/pkg/layout"
	"github.com/hxio/instate/internal/pkg/state"
)

func TestSaveRestoreRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	d1, _ := e.AddDevice("Gamepad")
	d2, _ := e.AddDeviceWithName("Gamepad", "Player Two")

	e.SubmitEvent(event.NewStateEvent(d1.ID(), 1, gpad, []byte{1, 2, 3, 4}))
	e.SubmitEvent(event.NewStateEvent(d2.ID(), 1, gpad, []byte{5, 6, 7, 8}))
	e.SubmitEvent(event.NewDisconnectEvent(d2.ID(), 2))
	e.Tick(state.PassDynamic, 2)

	// an unmatched available record must survive too
	_, err := e.ReportAvailableDevice(layout.Description{Product: "mystery"}, 0)
	assert.Equal(t, nil, err)

	// monitors and timeouts are ephemeral and must not come back
	l := &recordingListener{}
	assert.Equal(t, nil, e.AddChangeMonitor(d1, Region{SizeBits: 1}, l))
	assert.Equal(t, nil, e.ScheduleTimeout(99, d1, func(now float64) {}))

	data, err := e.Save()
	assert.Equal(t, nil, err)

	restored := New(nil, nil, 0)
	err = restored.Restore(data)
	assert.Equal(t, nil, err)

	assert.Equal(t, true, restored.Layouts().Exists("Gamepad"))
	assert.Equal(t, e.Layouts().SetupVersion(), restored.Layouts().SetupVersion())

	devices := restored.Devices()
	assert.Equal(t, 2, len(devices))
	assert.Equal(t, "Gamepad", devices[0].Name())
	assert.Equal(t, "Player Two", devices[1].Name())
	assert.Equal(t, d1.ID(), devices[0].ID())
	assert.Equal(t, true, devices[0].Connected())
	assert.Equal(t, false, devices[1].Connected())
	assert.Equal(t, gpad, devices[0].Block().Format)
	assert.Equal(t, 1.0, devices[0].LastEventTime())

	// raw buffer contents come back byte for byte
	assert.Equal(t, []byte{1, 2, 3, 4}, devices[0].StateIn(state.PassDynamic))
	assert.Equal(t, []byte{0, 0, 0, 0}, devices[1].StateIn(state.PassDynamic)) // zeroed on disconnect
	assert.Equal(t, d1.State(), devices[0].State())

	assert.Equal(t, 1, len(restored.UnrecognizedDevices()))
	assert.Equal(t, 0, restored.PendingTimeouts())

	// ID assignment continues where the snapshot left off
	d3, err := restored.AddDevice("Gamepad")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, d3.ID() > d2.ID())

	// the restored engine processes events as usual
	restored.SubmitEvent(event.NewStateEvent(devices[0].ID(), 3, gpad, []byte{9, 9, 9, 9}))
	restored.Tick(state.PassDynamic, 3)
	assert.Equal(t, []byte{9, 9, 9, 9}, devices[0].StateIn(state.PassDynamic))
}

func TestRestoreAdoptsSnapshotPasses(t *testing.T) {
	e := New(nil, []state.Pass{state.PassEditor}, 0)
	_, err := e.RegisterLayoutSchema(padSchema, "")
	assert.Equal(t, nil, err)
	d, _ := e.AddDevice("Gamepad")
	e.SubmitEvent(event.NewStateEvent(d.ID(), 1, gpad, []byte{1, 2, 3, 4}))
	e.Tick(state.PassEditor, 1)

	data, err := e.Save()
	assert.Equal(t, nil, err)

	// the restoring engine was built with the default pass set
	restored := New(nil, nil, 0)
	assert.Equal(t, nil, restored.Restore(data))
	assert.Equal(t, true, restored.Buffers().Enabled(state.PassEditor))
	assert.Equal(t, false, restored.Buffers().Enabled(state.PassDynamic))

	// a reallocation after the restore must keep the editor region
	_, err = restored.AddDevice("Gamepad")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, restored.Buffers().Enabled(state.PassEditor))
	assert.Equal(t, []byte{1, 2, 3, 4}, restored.Devices()[0].StateIn(state.PassEditor))
}

func TestRestoreRejectsGarbage(t *testing.T) {
	e := New(nil, nil, 0)
	err := e.Restore([]byte("\tnot yaml"))
	assert.NotEqual(t, nil, err)
}
