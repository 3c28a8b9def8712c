package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hxio/instate/internal/pkg/engine"
	"github.com/hxio/instate/internal/pkg/event"
	"github.com/hxio/instate/internal/pkg/instate"
	"github.com/hxio/instate/internal/pkg/layout"
	"github.com/hxio/instate/internal/pkg/logger"
	"github.com/hxio/instate/internal/pkg/source"
	"github.com/hxio/instate/internal/pkg/state"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// runManager drives the engine. Every engine call happens on this
// goroutine; device readers only touch the thread-safe event queue.
func runManager(ctx context.Context, cfg instate.Config, grab bool, eng *engine.Engine, statuses chan<- []deviceStatus) {
	layoutChange := layout.DetectChanges(ctx, cfg.LayoutDir)
	notifications := source.Monitor(ctx, cfg.Source.DiscoveryRate)

	dynamic := time.NewTicker(cfg.Engine.DynamicRate)
	defer dynamic.Stop()
	fixed := time.NewTicker(cfg.Engine.FixedRate)
	defer fixed.Stop()
	status := time.NewTicker(time.Second / 4)
	defer status.Stop()

	start := time.Now()
	now := func() float64 { return time.Since(start).Seconds() }

	// evdev path → live device id, for routing disappearances
	readers := make(map[string]int32)
	wg := sync.WaitGroup{}

	log.Info("run manager", logger.Debug)
root:
	for {
		select {
		case <-ctx.Done():
			break root

		case <-dynamic.C:
			eng.Tick(state.PassDynamic, now())

		case <-fixed.C:
			eng.Tick(state.PassFixed, now())

		case <-status.C:
			select {
			case statuses <- collectStatuses(eng):
			default:
			}

		case <-layoutChange:
			log.Info("handling layout change", logger.Debug)
			texts, err := layout.LoadDir(cfg.LayoutDir)
			if err != nil {
				log.Info(fmt.Sprintf("layout reload failed: %v", err), logger.Error)
				continue
			}
			for _, text := range texts {
				_, err := eng.RegisterLayoutSchema(text, "")
				if err != nil {
					log.Info(fmt.Sprintf("cannot re-register layout: %v", err), logger.Warning)
				}
			}

		case n, ok := <-notifications:
			if !ok {
				break root
			}
			if n.Gone {
				if id, tracked := readers[n.Info.Path]; tracked {
					eng.SubmitEvent(event.NewDisconnectEvent(id, now()))
					delete(readers, n.Info.Path)
				}
				continue
			}

			d, err := eng.ReportAvailableDevice(n.Info.Description, 0)
			if err != nil {
				log.Info(fmt.Sprintf("cannot add device: %v", err),
					zap.String("device_name", n.Info.Name), logger.Error)
				continue
			}
			if d == nil {
				// retained as available, retried on future layout registration
				continue
			}

			readers[n.Info.Path] = d.ID()
			wg.Add(1)
			go func(info source.DeviceInfo, id int32) {
				defer wg.Done()
				err := source.ReadEvents(ctx, info, id, grab, eng.SubmitEvent)
				if err != nil {
					log.Info(fmt.Sprintf("device reader failed: %v", err),
						zap.String("device_name", info.Name), logger.Warning)
				}
			}(n.Info, d.ID())
		}
	}

	wg.Wait()
	log.Info("exit manager", logger.Debug)
}

type deviceStatus struct {
	Name      string
	Layout    string
	ID        int32
	Connected bool
	Writes    uint64
	Preview   []byte
}

func collectStatuses(eng *engine.Engine) []deviceStatus {
	devices := eng.Devices()
	out := make([]deviceStatus, 0, len(devices))
	for _, d := range devices {
		preview := d.State()
		if len(preview) > 16 {
			preview = preview[:16]
		}
		out = append(out, deviceStatus{
			Name:      d.Name(),
			Layout:    d.Layout(),
			ID:        d.ID(),
			Connected: d.Connected(),
			Writes:    d.WriteCount(),
			Preview:   preview,
		})
	}
	return out
}
