package layout

import (
	"context"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/hxio/instate/internal/pkg/logger"
)

var log = logger.GetLogger()

// DetectChanges watches the layout schema directory and signals whenever a
// schema file is written, so the host can re-register layouts.
func DetectChanges(ctx context.Context, path string) <-chan bool {
	var change = make(chan bool)

	go func() {
		defer close(change)
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return
		}

		go func() {
			<-ctx.Done()
			err := watcher.Close()
			if err != nil {
				log.Info(fmt.Sprintf("closing layout watcher failed: %v", err), logger.Debug)
			}
		}()

		err = watcher.Add(path)
		if err != nil {
			log.Info(fmt.Sprintf("cannot watch layout directory: %v", err), logger.Warning)
			return
		}

		for event := range watcher.Events {
			if event.Op != fsnotify.Write && event.Op != fsnotify.Create {
				continue
			}

			name := strings.ToLower(event.Name)
			if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
				log.Info(fmt.Sprintf("layout change detected: %s", event.Name), logger.Info)
				change <- true
			}
		}
	}()

	return change
}
