package engine

import (
	"fmt"

	"github.com/hxio/instate/internal/pkg/event"
	"github.com/hxio/instate/internal/pkg/logger"
	"github.com/hxio/instate/internal/pkg/state"
)

// Tick is the per-pass entry point, invoked once per host tick. It polls
// due timeouts, marks the pass current for default reads, then drains the
// raw event queue: diff → flip → write per state event, in that order.
func (e *Engine) Tick(pass state.Pass, now float64) {
	// timeouts run first, whatever pass ticked: input must reflect the
	// freshest state for all passes
	e.processTimeouts(now)

	switch pass {
	case state.PassDynamic:
		e.dynamicTick++
	case state.PassFixed:
		e.fixedTick++
	}
	e.buffers.SetActive(e.readPass(pass))

	events := e.queue.Drain()
	if len(events) == 0 {
		return
	}

	var retained []event.Event
	for i := range events {
		ev := &events[i]
		if ev.Handled {
			continue
		}
		if pass == state.PassBeforeRender {
			// only devices that opt into before-render updates consume
			// events here; everything else stays queued for the next
			// ordinary pass
			d, ok := e.byID[ev.DeviceID]
			if !ok || !d.beforeRender {
				retained = append(retained, *ev)
				continue
			}
		}
		e.processEvent(pass, ev)
	}

	if len(retained) > 0 {
		e.queue.Requeue(retained)
	}
}

// readPass maps the ticking pass to the pass generic reads should target.
func (e *Engine) readPass(pass state.Pass) state.Pass {
	if e.buffers.Enabled(pass) {
		return pass
	}
	// the ticking pass owns no region; fall back to a cadenced pass, or
	// failing that to whatever pass owns storage
	if e.buffers.Enabled(state.PassDynamic) {
		return state.PassDynamic
	}
	if e.buffers.Enabled(state.PassFixed) {
		return state.PassFixed
	}
	for _, p := range e.buffers.Passes() {
		return p
	}
	return pass
}

func (e *Engine) processEvent(pass state.Pass, ev *event.Event) {
	for _, fn := range e.eventListeners {
		fn(ev)
		if ev.Handled {
			return
		}
	}

	d, ok := e.byID[ev.DeviceID]
	if !ok {
		// an event for an unknown device is dropped, not an error
		log.Info(fmt.Sprintf("dropping event for unknown device %d", ev.DeviceID), logger.Debug)
		ev.Handled = true
		return
	}

	switch ev.Type {
	case event.TypeState, event.TypeDelta:
		e.applyStateEvent(pass, d, ev)
	case event.TypeConnect:
		if !d.connected {
			d.connected = true
			e.notifyDeviceChange(d, Connected)
		}
	case event.TypeDisconnect:
		if d.connected {
			d.connected = false
			e.buffers.Zero(d.index)
			e.notifyDeviceChange(d, Disconnected)
		}
	default:
		log.Info(fmt.Sprintf("dropping event of unknown type %q", ev.Type), logger.Debug)
	}

	ev.Handled = true
	e.lastUpdated = d
}

// applyStateEvent commits a full or partial state write. Stale, oversized
// or format-mismatched events are silently dropped; a single bad event must
// not halt the stream.
func (e *Engine) applyStateEvent(pass state.Pass, d *Device, ev *event.Event) {
	// last-write-wins on timestamp, not arrival order
	if ev.Time < d.lastEventTime {
		log.Info(fmt.Sprintf("dropping stale event for %q (%f < %f)", d.name, ev.Time, d.lastEventTime), logger.Event)
		return
	}

	stateSize := d.block.SizeBytes()
	var offset uint32
	if ev.Type == event.TypeDelta {
		offset = ev.Offset
	}
	if uint64(offset)+uint64(len(ev.Data)) > uint64(stateSize) {
		log.Info(fmt.Sprintf("dropping oversized event for %q", d.name), logger.Event)
		return
	}
	if ev.Format != d.block.Format {
		log.Info(fmt.Sprintf("dropping event for %q, format %q != %q", d.name, ev.Format, d.block.Format), logger.Event)
		return
	}

	// diff against the current front before any flip or write, so multiple
	// same-tick events compare against the true prior value
	front := e.buffers.Front(e.readPass(pass), d.index)
	if front == nil {
		log.Info(fmt.Sprintf("dropping event for %q, no pass owns storage", d.name), logger.Event)
		return
	}
	signalled := e.diffMonitors(d.index, ev.Data, front, offset)

	flipped := e.flip(pass, d)
	if ev.Type == event.TypeDelta {
		// a delta only covers part of the region; after a flip the whole
		// previous state has to come across first
		for _, p := range flipped {
			copy(e.buffers.Front(p, d.index), e.buffers.Back(p, d.index))
		}
	}

	for _, p := range e.writeTargets(pass) {
		target := e.buffers.Front(p, d.index)
		copy(target[offset:offset+uint32(len(ev.Data))], ev.Data)
	}

	d.writeCount++
	d.lastEventTime = ev.Time

	if signalled {
		e.fireMonitors(d, ev.Time)
	}
}

// flip applies the per-device flip policy for this pass and returns which
// passes flipped.
//
// Before-render never flips. The editor pass has no frame cadence and flips
// on every state event. For the cadenced passes, a device flips at most
// once per cadence-counter cycle; the first fixed tick after a dynamic tick
// catches the fixed buffer up and brings the dynamic buffer along if it has
// not flipped this cycle yet.
func (e *Engine) flip(pass state.Pass, d *Device) []state.Pass {
	var flipped []state.Pass

	switch pass {
	case state.PassBeforeRender:
		// writes go straight to front

	case state.PassEditor:
		if e.buffers.Enabled(state.PassEditor) {
			e.buffers.Swap(state.PassEditor, d.index)
			flipped = append(flipped, state.PassEditor)
		}

	case state.PassDynamic:
		if e.buffers.Enabled(state.PassDynamic) && d.lastDynamicFlip != e.dynamicTick {
			e.buffers.Swap(state.PassDynamic, d.index)
			d.lastDynamicFlip = e.dynamicTick
			flipped = append(flipped, state.PassDynamic)
		}

	case state.PassFixed:
		if e.buffers.Enabled(state.PassFixed) && d.lastFixedFlip != e.fixedTick {
			e.buffers.Swap(state.PassFixed, d.index)
			d.lastFixedFlip = e.fixedTick
			flipped = append(flipped, state.PassFixed)
		}
		if e.buffers.Enabled(state.PassDynamic) && d.lastDynamicFlip != e.dynamicTick {
			e.buffers.Swap(state.PassDynamic, d.index)
			d.lastDynamicFlip = e.dynamicTick
			flipped = append(flipped, state.PassDynamic)
		}
	}

	return flipped
}

// writeTargets lists the passes whose front buffers must receive a state
// write during this tick. Dynamic and fixed both get every write when both
// are enabled, each pass's front reflects the latest truth.
func (e *Engine) writeTargets(pass state.Pass) []state.Pass {
	if pass == state.PassEditor {
		if e.buffers.Enabled(state.PassEditor) {
			return []state.Pass{state.PassEditor}
		}
		return nil
	}

	var targets []state.Pass
	if e.buffers.Enabled(state.PassDynamic) {
		targets = append(targets, state.PassDynamic)
	}
	if e.buffers.Enabled(state.PassFixed) {
		targets = append(targets, state.PassFixed)
	}
	if len(targets) == 0 {
		// a cadence tick on an engine without cadenced regions still has to
		// commit somewhere
		targets = e.buffers.Passes()
	}
	return targets
}
