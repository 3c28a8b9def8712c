package event

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Code is a FourCC tag used for event types and state formats.
type Code [4]byte

func CodeFromString(s string) Code {
	var c Code
	copy(c[:], s)
	return c
}

func (c Code) String() string {
	return string(c[:])
}

// Event types
var (
	TypeState      = CodeFromString("STAT") // full state snapshot
	TypeDelta      = CodeFromString("DLTA") // partial state write at an offset
	TypeConnect    = CodeFromString("CONN")
	TypeDisconnect = CodeFromString("DISC")
)

const (
	// HeaderSize covers {type, total size, device id, timestamp, handled + padding}.
	HeaderSize = 4 + 4 + 4 + 8 + 4

	statePayloadBase = 4 + 4     // format, state size
	deltaPayloadBase = 4 + 4 + 4 // format, state size, byte offset
)

// Event is a single raw input event. Immutable once submitted except for
// Handled, which the processing loop sets to consume it.
type Event struct {
	Type     Code
	DeviceID int32
	Time     float64 // seconds
	Handled  bool

	// State/Delta only
	Format    Code
	StateSize uint32 // byte length of Data
	Offset    uint32 // Delta only, byte offset into the device state block

	Data []byte
}

func NewStateEvent(deviceID int32, t float64, format Code, data []byte) Event {
	return Event{
		Type:      TypeState,
		DeviceID:  deviceID,
		Time:      t,
		Format:    format,
		StateSize: uint32(len(data)),
		Data:      data,
	}
}

func NewDeltaEvent(deviceID int32, t float64, format Code, offset uint32, data []byte) Event {
	return Event{
		Type:      TypeDelta,
		DeviceID:  deviceID,
		Time:      t,
		Format:    format,
		StateSize: uint32(len(data)),
		Offset:    offset,
		Data:      data,
	}
}

func NewConnectEvent(deviceID int32, t float64) Event {
	return Event{Type: TypeConnect, DeviceID: deviceID, Time: t}
}

func NewDisconnectEvent(deviceID int32, t float64) Event {
	return Event{Type: TypeDisconnect, DeviceID: deviceID, Time: t}
}

// Size returns the total wire size of the event in bytes.
func (e *Event) Size() uint32 {
	switch e.Type {
	case TypeState:
		return HeaderSize + statePayloadBase + uint32(len(e.Data))
	case TypeDelta:
		return HeaderSize + deltaPayloadBase + uint32(len(e.Data))
	default:
		return HeaderSize
	}
}

// Marshal encodes the event into its wire representation, little-endian.
func (e *Event) Marshal() []byte {
	buf := make([]byte, e.Size())
	copy(buf[0:4], e.Type[:])
	binary.LittleEndian.PutUint32(buf[4:8], e.Size())
	binary.LittleEndian.PutUint32(buf[8:12], uint32(e.DeviceID))
	binary.LittleEndian.PutUint64(buf[12:20], math.Float64bits(e.Time))
	if e.Handled {
		buf[20] = 1
	}
	// buf[21:24] stays zero, padding

	switch e.Type {
	case TypeState:
		copy(buf[24:28], e.Format[:])
		binary.LittleEndian.PutUint32(buf[28:32], e.StateSize)
		copy(buf[32:], e.Data)
	case TypeDelta:
		copy(buf[24:28], e.Format[:])
		binary.LittleEndian.PutUint32(buf[28:32], e.StateSize)
		binary.LittleEndian.PutUint32(buf[32:36], e.Offset)
		copy(buf[36:], e.Data)
	}
	return buf
}

// Decode parses one event from the beginning of b and returns it together
// with the number of bytes consumed.
func Decode(b []byte) (Event, int, error) {
	if len(b) < HeaderSize {
		return Event{}, 0, fmt.Errorf("event buffer too short: %d bytes", len(b))
	}

	var e Event
	copy(e.Type[:], b[0:4])
	size := binary.LittleEndian.Uint32(b[4:8])
	if size < HeaderSize || uint32(len(b)) < size {
		return Event{}, 0, fmt.Errorf("event size field out of range: %d", size)
	}
	e.DeviceID = int32(binary.LittleEndian.Uint32(b[8:12]))
	e.Time = math.Float64frombits(binary.LittleEndian.Uint64(b[12:20]))
	e.Handled = b[20] != 0

	switch e.Type {
	case TypeState:
		if size < HeaderSize+statePayloadBase {
			return Event{}, 0, fmt.Errorf("state event too short: %d bytes", size)
		}
		copy(e.Format[:], b[24:28])
		e.StateSize = binary.LittleEndian.Uint32(b[28:32])
		e.Data = append([]byte(nil), b[32:size]...)
	case TypeDelta:
		if size < HeaderSize+deltaPayloadBase {
			return Event{}, 0, fmt.Errorf("delta event too short: %d bytes", size)
		}
		copy(e.Format[:], b[24:28])
		e.StateSize = binary.LittleEndian.Uint32(b[28:32])
		e.Offset = binary.LittleEndian.Uint32(b[32:36])
		e.Data = append([]byte(nil), b[36:size]...)
	}

	return e, int(size), nil
}
