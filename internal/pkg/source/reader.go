package source

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/holoplot/go-evdev"
	"github.com/hxio/instate/internal/pkg/event"
	"github.com/hxio/instate/internal/pkg/logger"
	"go.uber.org/zap"
)

// The generic evdev state image: a key bitmap followed by eight axes.
const (
	FormatTag   = "EVDV"
	keymapBytes = 32 // KEY_0..KEY_255, one bit each
	axisCount   = 8
	StateSize   = keymapBytes + axisCount*4
)

// Schema is the built-in layout every evdev device resolves to unless a
// more specific one is registered first.
const Schema = `name: Evdev
format: EVDV
stateSizeBits: 512
device:
  interface: evdev
`

// ReadEvents pumps one device's evdev stream into the raw event queue as
// delta writes against the generic state image, after an initial full
// snapshot. Returns when the device goes away or the context is cancelled.
func ReadEvents(ctx context.Context, info DeviceInfo, deviceID int32, grab bool, submit func(event.Event)) error {
	dev, err := evdev.Open(info.Path)
	if err != nil {
		return fmt.Errorf("cannot open %q: %w", info.Path, err)
	}

	go func() {
		<-ctx.Done()
		err := dev.Close()
		if err != nil {
			log.Info(fmt.Sprintf("device close failed: %v", err), zap.String("device_name", info.Name), logger.Debug)
		}
	}()

	if grab {
		_ = dev.Grab()
		log.Info("grabbing device for exclusive usage", zap.String("device_name", info.Name), logger.Debug)
	}

	format := event.CodeFromString(FormatTag)
	var image [StateSize]byte

	log.Info("reading input events", zap.String("device_name", info.Name), logger.Debug)

	var announced bool
	for {
		ev, err := dev.ReadOne()
		if err != nil {
			break
		}
		t := float64(ev.Time.Sec) + float64(ev.Time.Usec)/1e6

		if !announced {
			submit(event.NewConnectEvent(deviceID, t))
			submit(event.NewStateEvent(deviceID, t, format, append([]byte(nil), image[:]...)))
			announced = true
		}

		switch ev.Type {
		case evdev.EV_KEY:
			if ev.Value == 2 { // repeat
				continue
			}
			if ev.Code >= keymapBytes*8 {
				continue
			}
			at := uint32(ev.Code) / 8
			bit := byte(1) << (ev.Code % 8)
			if ev.Value != 0 {
				image[at] |= bit
			} else {
				image[at] &^= bit
			}
			submit(event.NewDeltaEvent(deviceID, t, format, at, []byte{image[at]}))

		case evdev.EV_ABS:
			if ev.Code >= axisCount {
				continue
			}
			at := uint32(keymapBytes) + uint32(ev.Code)*4
			binary.LittleEndian.PutUint32(image[at:at+4], uint32(ev.Value))
			submit(event.NewDeltaEvent(deviceID, t, format, at, append([]byte(nil), image[at:at+4]...)))
		}
	}

	if grab {
		_ = dev.Ungrab()
	}
	log.Info("reading input events finished", zap.String("device_name", info.Name), logger.Debug)
	return nil
}
