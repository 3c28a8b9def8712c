package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hxio/instate/internal/pkg/event"
	"github.com/hxio/instate/internal/pkg/layout"
	"github.com/hxio/instate/internal/pkg/logger"
	"github.com/hxio/instate/internal/pkg/state"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// DeviceChangeFunc is notified about device membership and connection
// changes.
type DeviceChangeFunc func(d *Device, c Change)

// EventFunc sees every raw event before the engine processes it; setting
// ev.Handled consumes the event.
type EventFunc func(ev *event.Event)

type availableRecord struct {
	desc    layout.Description
	id      int32 // requested explicit id, 0 for none
	matched bool
}

// Engine is the runtime core: device registry, state buffers, event loop,
// change monitors and timeout scheduler around one shared memory model.
//
// All methods except SubmitEvent are meant to be called from the single
// tick-driving goroutine; the event queue is the only cross-thread boundary.
type Engine struct {
	layouts *layout.Registry
	queue   *event.Queue
	passes  []state.Pass
	buffers *state.Buffers

	devices []*Device
	byID    map[int32]*Device
	nextID  int32

	monitors    [][]monitorEntry
	timeouts    []timeoutEntry
	available   []availableRecord
	lastUpdated *Device

	deviceListeners []DeviceChangeFunc
	eventListeners  []EventFunc

	// cadence counters, bumped once per tick of their pass
	dynamicTick uint64
	fixedTick   uint64
}

// New creates an engine over an explicitly owned layout registry. passes
// selects which update passes get buffer regions; nil means dynamic+fixed.
func New(layouts *layout.Registry, passes []state.Pass, queueCapacity int) *Engine {
	if layouts == nil {
		layouts = layout.NewRegistry()
	}
	if len(passes) == 0 {
		passes = []state.Pass{state.PassDynamic, state.PassFixed}
	}
	if queueCapacity <= 0 {
		queueCapacity = 256
	}
	return &Engine{
		layouts: layouts,
		queue:   event.NewQueue(queueCapacity),
		passes:  passes,
		buffers: state.NewBuffers(passes, nil),
		byID:    make(map[int32]*Device),
		nextID:  1,
	}
}

func (e *Engine) Layouts() *layout.Registry {
	return e.layouts
}

func (e *Engine) Buffers() *state.Buffers {
	return e.buffers
}

// LastUpdatedDevice is the device the loop most recently touched, for
// quick-access accessors.
func (e *Engine) LastUpdatedDevice() *Device {
	return e.lastUpdated
}

func (e *Engine) OnDeviceChange(fn DeviceChangeFunc) {
	if fn != nil {
		e.deviceListeners = append(e.deviceListeners, fn)
	}
}

func (e *Engine) OnEvent(fn EventFunc) {
	if fn != nil {
		e.eventListeners = append(e.eventListeners, fn)
	}
}

func (e *Engine) notifyDeviceChange(d *Device, c Change) {
	log.Info(fmt.Sprintf("device %s: %s", c, d), logger.Device)
	for _, fn := range e.deviceListeners {
		fn(d, c)
	}
}

// SubmitEvent appends to the raw queue. Safe to call from any goroutine;
// nothing is copied into managed state until the next tick.
func (e *Engine) SubmitEvent(ev event.Event) {
	e.queue.Submit(ev)
}

// SubmitRawEvent decodes one wire-format event and submits it.
func (e *Engine) SubmitRawEvent(data []byte) error {
	return e.queue.SubmitRaw(data)
}

// RegisterLayoutBuilder registers a type-backed layout and keeps live
// devices consistent: every device whose layout resolves through name is
// re-created, and unmatched available devices are re-scanned.
func (e *Engine) RegisterLayoutBuilder(name string, builder layout.Builder, base string) error {
	if err := e.layouts.RegisterBuilder(name, builder, base); err != nil {
		return err
	}
	e.recreateDevicesUsing(name)
	e.rescanAvailable()
	return nil
}

// RegisterLayoutSchema registers a text-backed layout, see
// RegisterLayoutBuilder for the consistency protocol.
func (e *Engine) RegisterLayoutSchema(text, name string) (string, error) {
	effective, err := e.layouts.RegisterSchema(text, name)
	if err != nil {
		return "", err
	}
	e.recreateDevicesUsing(effective)
	e.rescanAvailable()
	return effective, nil
}

func (e *Engine) RegisterProcessor(name string, ref interface{}) error {
	return e.layouts.RegisterProcessor(name, ref)
}

func (e *Engine) RegisterModifier(name string, ref interface{}) error {
	return e.layouts.RegisterModifier(name, ref)
}

// recreateDevicesUsing removes and re-adds every device whose layout walks
// through name. State is not migrated across layout changes; neither index
// nor ID survive unless the caller re-assigns them.
func (e *Engine) recreateDevicesUsing(name string) {
	var affected []*Device
	for _, d := range e.devices {
		if e.layouts.IsBasedOn(d.layoutName, name) {
			affected = append(affected, d)
		}
	}
	for _, d := range affected {
		layoutName, desc := d.layoutName, d.description
		e.RemoveDevice(d)
		_, err := e.addDevice(layoutName, 0, desc, "")
		if err != nil {
			log.Info(fmt.Sprintf("cannot re-create device after layout change: %v", err),
				zap.String("layout", layoutName), logger.Warning)
		}
	}
}

// AddDevice builds a device from a named layout.
func (e *Engine) AddDevice(layoutName string) (*Device, error) {
	return e.addDevice(layoutName, 0, layout.Description{}, "")
}

// AddDeviceWithName builds a device from a named layout with an explicit
// display name (still deduplicated).
func (e *Engine) AddDeviceWithName(layoutName, displayName string) (*Device, error) {
	return e.addDevice(layoutName, 0, layout.Description{}, displayName)
}

// AddDeviceFromDescription resolves a layout through the matcher list.
func (e *Engine) AddDeviceFromDescription(desc layout.Description) (*Device, error) {
	name, ok := e.layouts.Match(desc)
	if !ok {
		return nil, fmt.Errorf("%w: no layout matches description %+v", layout.ErrUnknownLayout, desc)
	}
	return e.addDevice(name, 0, desc, "")
}

func (e *Engine) addDevice(layoutName string, explicitID int32, desc layout.Description, displayName string) (*Device, error) {
	l, err := e.layouts.Resolve(layoutName)
	if err != nil {
		return nil, err
	}

	var id int32
	if explicitID != 0 {
		if _, exists := e.byID[explicitID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, explicitID)
		}
		id = explicitID
		if explicitID >= e.nextID {
			e.nextID = explicitID + 1
		}
	} else {
		id = e.nextID
		e.nextID++
	}

	if displayName == "" {
		displayName = l.Name
	}

	d := &Device{
		engine:      e,
		id:          id,
		index:       len(e.devices),
		name:        e.dedupeName(displayName),
		layoutName:  l.Name,
		description: desc,
		block: state.Block{
			ByteOffset: state.OffsetNone,
			SizeBits:   l.StateSizeBits,
			Format:     l.Format,
		},
		connected:    true,
		beforeRender: l.BeforeRender,
	}

	// identity table for migration: existing devices keep their bytes, the
	// new one starts zeroed
	oldIndex := make([]int, len(e.devices)+1)
	for i := range e.devices {
		oldIndex[i] = i
	}
	oldIndex[len(e.devices)] = -1

	e.devices = append(e.devices, d)
	e.byID[id] = d
	e.monitors = append(e.monitors, nil)
	e.reallocate(oldIndex)

	e.notifyDeviceChange(d, Added)
	return d, nil
}

// RemoveDevice is a no-op for devices that are not currently registered.
// Otherwise it compacts indices of all devices after the removed one,
// migrates their bytes, invalidates the device's monitors and cancels its
// timeouts.
func (e *Engine) RemoveDevice(d *Device) {
	if d == nil {
		return
	}
	if current, ok := e.byID[d.id]; !ok || current != d {
		return
	}

	removed := d.index
	e.devices = append(e.devices[:removed], e.devices[removed+1:]...)
	e.monitors = append(e.monitors[:removed], e.monitors[removed+1:]...)
	delete(e.byID, d.id)

	// old-index table so migration can find the shifted devices' bytes
	oldIndex := make([]int, len(e.devices))
	for i := range e.devices {
		if i < removed {
			oldIndex[i] = i
		} else {
			oldIndex[i] = i + 1
		}
	}
	e.reallocate(oldIndex)

	d.block.ByteOffset = state.OffsetNone
	d.index = -1
	d.engine = nil
	e.CancelTimeouts(d)
	if e.lastUpdated == d {
		e.lastUpdated = nil
	}

	e.notifyDeviceChange(d, Removed)
}

// reallocate lays the current device list out into a fresh buffer set and
// migrates existing bytes by device identity. The old buffers stay alive
// until migration is done.
func (e *Engine) reallocate(oldIndex []int) {
	old := e.buffers

	sizes := make([]uint32, len(e.devices))
	for i, d := range e.devices {
		sizes[i] = d.block.AlignedSizeBytes()
	}

	buffers := state.NewBuffers(e.passes, sizes)
	buffers.SetActive(old.Active())
	buffers.Migrate(old, oldIndex)

	offsets := buffers.Offsets()
	for i, d := range e.devices {
		d.index = i
		d.block.ByteOffset = offsets[i]
	}
	e.buffers = buffers
}

// dedupeName makes a display name unique against all current device names,
// case-insensitive, by appending the smallest free positive suffix.
func (e *Engine) dedupeName(name string) string {
	taken := func(candidate string) bool {
		for _, d := range e.devices {
			if strings.EqualFold(d.name, candidate) {
				return true
			}
		}
		return false
	}

	if !taken(name) {
		return name
	}
	for suffix := 1; ; suffix++ {
		candidate := name + strconv.Itoa(suffix)
		if !taken(candidate) {
			return candidate
		}
	}
}

// Devices returns the live device list in index order.
func (e *Engine) Devices() []*Device {
	return append([]*Device(nil), e.devices...)
}

// DeviceByID looks a device up by its stable numeric ID. O(1).
func (e *Engine) DeviceByID(id int32) (*Device, bool) {
	d, ok := e.byID[id]
	return d, ok
}

// DeviceByName finds the first device whose display name or layout name
// matches, case-insensitive. Linear, not a hot path.
func (e *Engine) DeviceByName(name string) (*Device, bool) {
	for _, d := range e.devices {
		if strings.EqualFold(d.name, name) || strings.EqualFold(d.layoutName, name) {
			return d, true
		}
	}
	return nil, false
}

// ReportAvailableDevice records a device description permanently and tries
// to resolve it right away. Descriptions matching nothing are retained and
// retried on every future layout registration.
func (e *Engine) ReportAvailableDevice(desc layout.Description, explicitID int32) (*Device, error) {
	record := availableRecord{desc: desc, id: explicitID}

	name, ok := e.layouts.Match(desc)
	if !ok {
		e.available = append(e.available, record)
		log.Info(fmt.Sprintf("unrecognized device reported: %+v", desc), logger.Device)
		return nil, nil
	}

	d, err := e.addDevice(name, explicitID, desc, "")
	if err != nil {
		return nil, err
	}
	record.matched = true
	e.available = append(e.available, record)
	return d, nil
}

// UnrecognizedDevices lists reported descriptions never matched to a layout.
func (e *Engine) UnrecognizedDevices() []layout.Description {
	var out []layout.Description
	for _, record := range e.available {
		if !record.matched {
			out = append(out, record.desc)
		}
	}
	return out
}

// rescanAvailable retries every unmatched available device against the
// current matcher list and instantiates the newly matched ones.
func (e *Engine) rescanAvailable() {
	for i := range e.available {
		record := &e.available[i]
		if record.matched {
			continue
		}
		name, ok := e.layouts.Match(record.desc)
		if !ok {
			continue
		}
		_, err := e.addDevice(name, record.id, record.desc, "")
		if err != nil {
			log.Info(fmt.Sprintf("cannot instantiate available device: %v", err),
				zap.String("layout", name), logger.Warning)
			continue
		}
		record.matched = true
	}
}
