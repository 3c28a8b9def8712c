package engine

import (
	"errors"
	"fmt"

	"github.com/hxio/instate/internal/pkg/layout"
	"github.com/hxio/instate/internal/pkg/state"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDuplicateID       = errors.New("duplicate device id")
	ErrUnsupportedRegion = errors.New("unsupported monitor region")
)

// Change describes what happened to a device.
type Change int

const (
	Added Change = iota
	Removed
	Connected
	Disconnected
)

func (c Change) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Device is a live instance built from a layout. Its array index is dense
// and reassigned on removals; its ID is stable for its lifetime.
type Device struct {
	engine *Engine

	id          int32
	index       int
	name        string
	layoutName  string
	description layout.Description

	block        state.Block
	connected    bool
	beforeRender bool // opts into before-render ticks

	lastEventTime float64
	writeCount    uint64

	// cadence counter values at the last flip, to avoid double-flipping
	// within one cycle
	lastDynamicFlip uint64
	lastFixedFlip   uint64
}

func (d *Device) ID() int32                       { return d.id }
func (d *Device) Index() int                      { return d.index }
func (d *Device) Name() string                    { return d.name }
func (d *Device) Layout() string                  { return d.layoutName }
func (d *Device) Description() layout.Description { return d.description }
func (d *Device) Connected() bool                 { return d.connected }
func (d *Device) Block() state.Block              { return d.block }
func (d *Device) BeforeRender() bool              { return d.beforeRender }
func (d *Device) LastEventTime() float64          { return d.lastEventTime }
func (d *Device) WriteCount() uint64              { return d.writeCount }

// State returns a copy of the device's current front buffer in the active
// pass. Nil once the device has been removed.
func (d *Device) State() []byte {
	if d.index < 0 || d.engine == nil {
		return nil
	}
	front := d.engine.buffers.CurrentFront(d.index)
	if front == nil {
		return nil
	}
	return append([]byte(nil), front[:d.block.SizeBytes()]...)
}

// StateIn reads the device's front buffer through a specific pass.
func (d *Device) StateIn(pass state.Pass) []byte {
	if d.index < 0 || d.engine == nil {
		return nil
	}
	front := d.engine.buffers.Front(pass, d.index)
	if front == nil {
		return nil
	}
	return append([]byte(nil), front[:d.block.SizeBytes()]...)
}

func (d *Device) String() string {
	return fmt.Sprintf("[%s] \"%s\" (id %d, %d bits)", d.layoutName, d.name, d.id, d.block.SizeBits)
}
