package engine

import (
	"fmt"

	"github.com/hxio/instate/internal/pkg/logger"
)

// Region is a memory range relative to the start of a device's state block.
type Region struct {
	ByteOffset uint32
	BitOffset  uint32
	SizeBits   uint32
}

// StateChangeListener is notified when the bits covered by a monitored
// region change value.
type StateChangeListener interface {
	StateChanged(d *Device, region Region, time float64)
}

type monitorEntry struct {
	region    Region
	listener  StateChangeListener
	signalled bool
}

// AddChangeMonitor registers (region, listener) on a device. Monitors fire
// in registration order. Regions that are multi-bit but not byte-aligned
// are not supported and rejected loudly rather than silently
// under-detecting changes.
func (e *Engine) AddChangeMonitor(d *Device, region Region, listener StateChangeListener) error {
	if d == nil || listener == nil {
		return fmt.Errorf("%w: device or listener is nil", ErrInvalidArgument)
	}
	if d.index < 0 {
		return fmt.Errorf("%w: device %q is not registered", ErrInvalidArgument, d.name)
	}
	if region.SizeBits == 0 {
		return fmt.Errorf("%w: monitor region is empty", ErrInvalidArgument)
	}
	if region.SizeBits > 1 && (region.BitOffset != 0 || region.SizeBits%8 != 0) {
		return fmt.Errorf("%w: %d bits at bit offset %d", ErrUnsupportedRegion, region.SizeBits, region.BitOffset)
	}

	e.monitors[d.index] = append(e.monitors[d.index], monitorEntry{region: region, listener: listener})
	return nil
}

// RemoveChangeMonitor removes the first entry structurally equal to
// (region, listener). Absent entries are not an error.
func (e *Engine) RemoveChangeMonitor(d *Device, region Region, listener StateChangeListener) {
	if d == nil || d.index < 0 {
		return
	}
	entries := e.monitors[d.index]
	for i := range entries {
		if entries[i].region == region && entries[i].listener == listener {
			e.monitors[d.index] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// diffMonitors compares an incoming write against the current front buffer
// before anything is committed, so several same-tick events each diff
// against the true prior value. incoming starts at writeOffset bytes into
// the device's state block; current is the full front block. Returns
// whether at least one monitor signalled.
func (e *Engine) diffMonitors(devIndex int, incoming, current []byte, writeOffset uint32) bool {
	entries := e.monitors[devIndex]
	if len(entries) == 0 {
		return false
	}

	writeStartBit := uint64(writeOffset) * 8
	writeEndBit := writeStartBit + uint64(len(incoming))*8

	var any bool
	for i := range entries {
		m := &entries[i]
		startBit := uint64(m.region.ByteOffset)*8 + uint64(m.region.BitOffset)
		endBit := startBit + uint64(m.region.SizeBits)
		if endBit <= writeStartBit || startBit >= writeEndBit {
			continue // region untouched by this write
		}

		if m.region.SizeBits == 1 {
			rel := startBit - writeStartBit
			if rel/8 >= uint64(len(incoming)) || startBit/8 >= uint64(len(current)) {
				continue
			}
			in := incoming[rel/8] >> (rel % 8) & 1
			cur := current[startBit/8] >> (startBit % 8) & 1
			if in != cur {
				m.signalled = true
				any = true
			}
			continue
		}

		// byte-aligned whole-byte region, raw range compare over the
		// overlapped bytes only (the rest is untouched by the write)
		from := m.region.ByteOffset
		to := from + m.region.SizeBits/8
		if from < writeOffset {
			from = writeOffset
		}
		if limit := writeOffset + uint32(len(incoming)); to > limit {
			to = limit
		}
		if limit := uint32(len(current)); to > limit {
			to = limit
		}
		for at := from; at < to; at++ {
			if incoming[at-writeOffset] != current[at] {
				m.signalled = true
				any = true
				break
			}
		}
	}
	return any
}

// fireMonitors invokes every signalled listener on the device in
// registration order and clears the flags.
func (e *Engine) fireMonitors(d *Device, time float64) {
	entries := e.monitors[d.index]
	for i := range entries {
		if !entries[i].signalled {
			continue
		}
		entries[i].signalled = false
		log.Info(fmt.Sprintf("monitor fired on %q at byte %d bit %d",
			d.name, entries[i].region.ByteOffset, entries[i].region.BitOffset), logger.Monitor)
		entries[i].listener.StateChanged(d, entries[i].region, time)
	}
}
