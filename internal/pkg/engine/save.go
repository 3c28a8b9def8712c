package engine

import (
	"fmt"

	"github.com/hxio/instate/internal/pkg/event"
	"github.com/hxio/instate/internal/pkg/layout"
	"github.com/hxio/instate/internal/pkg/state"
	"gopkg.in/yaml.v3"
)

type savedDevice struct {
	Name         string             `yaml:"name"`
	Layout       string             `yaml:"layout"`
	ID           int32              `yaml:"id"`
	StateOffset  uint32             `yaml:"stateOffset"`
	BitOffset    uint32             `yaml:"bitOffset"`
	SizeBits     uint32             `yaml:"sizeBits"`
	Format       string             `yaml:"format"`
	Connected    bool               `yaml:"connected"`
	BeforeRender bool               `yaml:"beforeRender"`
	LastTime     float64            `yaml:"lastTime"`
	Description  layout.Description `yaml:"description,omitempty"`
}

type savedAvailable struct {
	Description layout.Description `yaml:"description"`
	ID          int32              `yaml:"id,omitempty"`
	Matched     bool               `yaml:"matched"`
}

// snapshot is the host-facing save/restore form of the engine's data model.
// Change monitors and pending timeouts are deliberately absent, their owners
// re-register after a restore.
type snapshot struct {
	Layouts   layout.Saved     `yaml:"layouts"`
	Devices   []savedDevice    `yaml:"devices"`
	Available []savedAvailable `yaml:"available,omitempty"`
	Buffers   state.Saved      `yaml:"buffers"`
	NextID    int32            `yaml:"nextId"`
}

// Save serializes the engine's full state: layout tables, device list,
// available-device list and raw buffer contents.
func (e *Engine) Save() ([]byte, error) {
	s := snapshot{
		Layouts: e.layouts.Save(),
		Buffers: e.buffers.Save(),
		NextID:  e.nextID,
	}
	for _, d := range e.devices {
		s.Devices = append(s.Devices, savedDevice{
			Name:         d.name,
			Layout:       d.layoutName,
			ID:           d.id,
			StateOffset:  d.block.ByteOffset,
			BitOffset:    d.block.BitOffset,
			SizeBits:     d.block.SizeBits,
			Format:       d.block.Format.String(),
			Connected:    d.connected,
			BeforeRender: d.beforeRender,
			LastTime:     d.lastEventTime,
			Description:  d.description,
		})
	}
	for _, record := range e.available {
		s.Available = append(s.Available, savedAvailable{
			Description: record.desc,
			ID:          record.id,
			Matched:     record.matched,
		})
	}
	return yaml.Marshal(s)
}

// Restore rebuilds the engine from a snapshot. Builder-backed layouts and
// processor/modifier references must have been registered again first;
// monitors and timeouts do not survive, their owners re-register.
func (e *Engine) Restore(data []byte) error {
	var s snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cannot parse snapshot: %w", err)
	}

	if err := e.layouts.Restore(s.Layouts); err != nil {
		return err
	}

	buffers, err := state.RestoreBuffers(s.Buffers)
	if err != nil {
		return err
	}
	e.buffers = buffers
	// later reallocations must rebuild the snapshot's regions, not the
	// constructor's
	e.passes = append([]state.Pass(nil), buffers.Passes()...)

	e.devices = nil
	e.byID = make(map[int32]*Device, len(s.Devices))
	e.monitors = nil
	e.timeouts = nil
	e.available = nil
	e.lastUpdated = nil
	e.nextID = s.NextID

	for i, sd := range s.Devices {
		d := &Device{
			engine:     e,
			id:         sd.ID,
			index:      i,
			name:       sd.Name,
			layoutName: sd.Layout,
			block: state.Block{
				ByteOffset: sd.StateOffset,
				BitOffset:  sd.BitOffset,
				SizeBits:   sd.SizeBits,
				Format:     event.CodeFromString(sd.Format),
			},
			connected:     sd.Connected,
			beforeRender:  sd.BeforeRender,
			lastEventTime: sd.LastTime,
			description:   sd.Description,
		}
		e.devices = append(e.devices, d)
		e.byID[d.id] = d
		e.monitors = append(e.monitors, nil)
		if sd.ID >= e.nextID {
			e.nextID = sd.ID + 1
		}
	}

	for _, sa := range s.Available {
		e.available = append(e.available, availableRecord{
			desc:    sa.Description,
			id:      sa.ID,
			matched: sa.Matched,
		})
	}

	return nil
}
