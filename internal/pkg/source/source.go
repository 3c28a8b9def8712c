package source

import (
	"context"
	"fmt"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/hxio/instate/internal/pkg/layout"
	"github.com/hxio/instate/internal/pkg/logger"
)

var log = logger.GetLogger()

// DeviceInfo identifies one evdev node together with the description the
// runtime matches layouts against.
type DeviceInfo struct {
	Path        string
	Name        string
	Description layout.Description
}

// Notification reports a device appearing or disappearing.
type Notification struct {
	Info DeviceInfo
	Gone bool
}

func describe(path string) (DeviceInfo, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("cannot open %q: %w", path, err)
	}
	defer dev.Close()

	name, err := dev.Name()
	if err != nil {
		name = ""
	}

	class := "Keyboard"
	for _, t := range dev.CapableTypes() {
		if t == evdev.EV_ABS {
			class = "Gamepad"
			break
		}
	}

	var serial, version string
	if id, err := dev.InputID(); err == nil {
		serial = fmt.Sprintf("%04x:%04x", id.Vendor, id.Product)
		version = fmt.Sprintf("%04x", id.Version)
	}

	return DeviceInfo{
		Path: path,
		Name: name,
		Description: layout.Description{
			Interface:   "evdev",
			DeviceClass: class,
			Product:     name,
			Serial:      serial,
			Version:     version,
		},
	}, nil
}

// Monitor polls the evdev device list and reports appearances and
// disappearances until the context is cancelled.
func Monitor(ctx context.Context, rate time.Duration) <-chan Notification {
	var out = make(chan Notification)

	go func() {
		defer close(out)
		log.Info("device monitor engaged", logger.Debug)

		var tracked = make(map[string]DeviceInfo)

	root:
		for {
			select {
			case <-ctx.Done():
				break root
			default:
			}

			paths, err := evdev.ListDevicePaths()
			if err != nil {
				log.Info(fmt.Sprintf("cannot list input devices: %v", err), logger.Warning)
				time.Sleep(rate)
				continue
			}

			current := make(map[string]bool, len(paths))
			for _, p := range paths {
				current[p.Path] = true
				if _, ok := tracked[p.Path]; ok {
					continue
				}
				info, err := describe(p.Path)
				if err != nil {
					log.Info(fmt.Sprintf("cannot describe device: %v", err), logger.Debug)
					continue
				}
				tracked[p.Path] = info
				out <- Notification{Info: info}
			}

			for path, info := range tracked {
				if current[path] {
					continue
				}
				delete(tracked, path)
				out <- Notification{Info: info, Gone: true}
			}

			time.Sleep(rate)
		}

		log.Info("device monitor disengaged", logger.Debug)
	}()

	return out
}
