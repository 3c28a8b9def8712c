package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hxio/instate/internal/pkg/event"
	"github.com/hxio/instate/internal/pkg/state"
)

type firedChange struct {
	region Region
	time   float64
	state  []byte
}

type recordingListener struct {
	fired []firedChange
}

func (r *recordingListener) StateChanged(d *Device, region Region, time float64) {
	r.fired = append(r.fired, firedChange{region: region, time: time, state: d.State()})
}

func TestAddChangeMonitorValidation(t *testing.T) {
	e := newTestEngine(t)
	d, _ := e.AddDevice("Gamepad")
	l := &recordingListener{}

	err := e.AddChangeMonitor(nil, Region{SizeBits: 1}, l)
	assert.Equal(t, true, errors.Is(err, ErrInvalidArgument))
	err = e.AddChangeMonitor(d, Region{SizeBits: 1}, nil)
	assert.Equal(t, true, errors.Is(err, ErrInvalidArgument))
	err = e.AddChangeMonitor(d, Region{}, l)
	assert.Equal(t, true, errors.Is(err, ErrInvalidArgument))

	// multi-bit regions must be whole bytes at bit offset zero
	err = e.AddChangeMonitor(d, Region{SizeBits: 4}, l)
	assert.Equal(t, true, errors.Is(err, ErrUnsupportedRegion))
	err = e.AddChangeMonitor(d, Region{BitOffset: 1, SizeBits: 8}, l)
	assert.Equal(t, true, errors.Is(err, ErrUnsupportedRegion))

	err = e.AddChangeMonitor(d, Region{BitOffset: 3, SizeBits: 1}, l)
	assert.Equal(t, nil, err)
	err = e.AddChangeMonitor(d, Region{ByteOffset: 1, SizeBits: 16}, l)
	assert.Equal(t, nil, err)

	removed, _ := e.AddDevice("Gamepad")
	e.RemoveDevice(removed)
	err = e.AddChangeMonitor(removed, Region{SizeBits: 1}, l)
	assert.Equal(t, true, errors.Is(err, ErrInvalidArgument))
}

func TestSingleBitMonitor(t *testing.T) {
	e := newTestEngine(t)
	d, _ := e.AddDevice("Gamepad")
	l := &recordingListener{}
	button := Region{ByteOffset: 0, BitOffset: 0, SizeBits: 1}
	err := e.AddChangeMonitor(d, button, l)
	assert.Equal(t, nil, err)

	// press: bit goes 0 → 1, exactly one notification
	e.SubmitEvent(event.NewStateEvent(d.ID(), 1, gpad, []byte{0x01, 0, 0, 0}))
	e.Tick(state.PassDynamic, 1)
	assert.Equal(t, 1, len(l.fired))
	assert.Equal(t, button, l.fired[0].region)
	assert.Equal(t, 1.0, l.fired[0].time)
	// the listener observes the committed new value
	assert.Equal(t, []byte{0x01, 0, 0, 0}, l.fired[0].state)

	// held: same value, no notification
	e.SubmitEvent(event.NewStateEvent(d.ID(), 2, gpad, []byte{0x01, 0, 0, 0}))
	e.Tick(state.PassDynamic, 2)
	assert.Equal(t, 1, len(l.fired))

	// a neighbouring bit changes, the monitored one does not
	e.SubmitEvent(event.NewStateEvent(d.ID(), 3, gpad, []byte{0x03, 0, 0, 0}))
	e.Tick(state.PassDynamic, 3)
	assert.Equal(t, 1, len(l.fired))

	// release fires again
	e.SubmitEvent(event.NewStateEvent(d.ID(), 4, gpad, []byte{0x02, 0, 0, 0}))
	e.Tick(state.PassDynamic, 4)
	assert.Equal(t, 2, len(l.fired))
	assert.Equal(t, 4.0, l.fired[1].time)
}

func TestByteRegionMonitorAndDeltaOverlap(t *testing.T) {
	e := newTestEngine(t)
	d, _ := e.AddDevice("Gamepad")
	l := &recordingListener{}
	err := e.AddChangeMonitor(d, Region{ByteOffset: 2, SizeBits: 16}, l)
	assert.Equal(t, nil, err)

	// a delta entirely before the region cannot trigger it
	e.SubmitEvent(event.NewDeltaEvent(d.ID(), 1, gpad, 0, []byte{0xff, 0xff}))
	e.Tick(state.PassDynamic, 1)
	assert.Equal(t, 0, len(l.fired))

	// a delta overlapping one region byte triggers on value change
	e.SubmitEvent(event.NewDeltaEvent(d.ID(), 2, gpad, 2, []byte{0xaa}))
	e.Tick(state.PassDynamic, 2)
	assert.Equal(t, 1, len(l.fired))

	// overlapping write with identical bytes stays quiet
	e.SubmitEvent(event.NewDeltaEvent(d.ID(), 3, gpad, 2, []byte{0xaa}))
	e.Tick(state.PassDynamic, 3)
	assert.Equal(t, 1, len(l.fired))
}

func TestMonitorOrderAndRemoval(t *testing.T) {
	e := newTestEngine(t)
	d, _ := e.AddDevice("Gamepad")
	first := &recordingListener{}
	second := &recordingListener{}
	bit0 := Region{BitOffset: 0, SizeBits: 1}
	bit1 := Region{BitOffset: 1, SizeBits: 1}

	assert.Equal(t, nil, e.AddChangeMonitor(d, bit0, first))
	assert.Equal(t, nil, e.AddChangeMonitor(d, bit1, second))

	e.SubmitEvent(event.NewStateEvent(d.ID(), 1, gpad, []byte{0x03, 0, 0, 0}))
	e.Tick(state.PassDynamic, 1)
	assert.Equal(t, 1, len(first.fired))
	assert.Equal(t, 1, len(second.fired))

	e.RemoveChangeMonitor(d, bit0, first)
	e.SubmitEvent(event.NewStateEvent(d.ID(), 2, gpad, []byte{0, 0, 0, 0}))
	e.Tick(state.PassDynamic, 2)
	assert.Equal(t, 1, len(first.fired))
	assert.Equal(t, 2, len(second.fired))

	// removing an absent entry is a no-op
	e.RemoveChangeMonitor(d, bit0, first)
	e.RemoveChangeMonitor(nil, bit0, first)
}

func TestMonitorsDoNotSurviveRecreation(t *testing.T) {
	e := newTestEngine(t)
	d, _ := e.AddDevice("Gamepad")
	l := &recordingListener{}
	assert.Equal(t, nil, e.AddChangeMonitor(d, Region{SizeBits: 1}, l))

	_, err := e.RegisterLayoutSchema(padSchema, "")
	assert.Equal(t, nil, err)

	fresh := e.Devices()[0]
	e.SubmitEvent(event.NewStateEvent(fresh.ID(), 1, gpad, []byte{1, 0, 0, 0}))
	e.Tick(state.PassDynamic, 1)
	assert.Equal(t, 0, len(l.fired))
}
