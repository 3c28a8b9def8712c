package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/awesome-gocui/gocui"
	"github.com/hxio/instate/internal/pkg/engine"
	"github.com/hxio/instate/internal/pkg/instate"
	"github.com/hxio/instate/internal/pkg/layout"
	"github.com/hxio/instate/internal/pkg/logger"
	"github.com/hxio/instate/internal/pkg/source"
	"github.com/logrusorgru/aurora"
)

var (
	profile    = flag.Bool("profile", false, "runs web server for performance profiling (go tool pprof)")
	grab       = flag.Bool("grab", false, "grab input devices for exclusive usage")
	ui         = flag.Bool("ui", false, "engage debug ui")
	nocolor    = flag.Bool("nocolor", false, "disable color")
	configPath = flag.String("config", "./config/instate.config", "app config file location")
	logLevel   = flag.Int("loglevel", 3,
		"logging level, each level enables additional information class (0-6)\n"+
			"0: errors, 1: warnings, 2: general info\n"+
			"3: device events (add/remove/connect/disconnect)\n"+
			"4: state event handling, 5: change monitor activity, 6: debug",
	)
)

func init() {
	flag.Parse()
}

func handleSigs(wg *sync.WaitGroup, sigs <-chan os.Signal, cancel func(), server *http.Server, g *gocui.Gui) {
	defer wg.Done()
	var counter int
	for sig := range sigs {
		if counter > 0 {
			fmt.Println("Dirty exit")
			os.Exit(1)
		}
		log.Info(fmt.Sprintf("signal received: %v", sig), logger.Debug)
		cancel()
		if server != nil {
			err := server.Close()
			if err != nil {
				log.Info(fmt.Sprintf("failed to close server: %v", err), logger.Warning)
			}
		}
		if g != nil {
			g.Close()
		}
		counter++
	}
}

func runProfileServer(wg *sync.WaitGroup) *http.Server {
	var server *http.Server
	if *profile {
		addr := "0.0.0.0:8080"
		log.Info(fmt.Sprintf("profiling enabled and hosted on %s", addr), logger.Info)
		server = &http.Server{Addr: addr, Handler: nil}
		wg.Add(1)
		go func() {
			log.Info(fmt.Sprintf("profiling server exited: %v", server.ListenAndServe()), logger.Info)
			wg.Done()
		}()
	}
	return server
}

func runUI(cfg instate.Config, sigs chan os.Signal) *gocui.Gui {
	g, err := GetCli()
	if err != nil {
		panic(err)
	}

	go func() {
		if err := g.MainLoop(); err != nil {
			if err != gocui.ErrQuit {
				panic(err)
			}
			g.Close()
			sigs <- syscall.SIGINT // pretend we received a signal when exited from gui
		}
		g.Close()
	}()

	go func() {
		for {
			g.Update(Layout)
			time.Sleep(cfg.UI.LogViewRate)
		}
	}()

	time.Sleep(time.Millisecond * 500) // waiting for view init
	return g
}

// registerLayouts installs the built-in evdev layout and everything found
// in the layout schema directory.
func registerLayouts(eng *engine.Engine, dir string) {
	_, err := eng.RegisterLayoutSchema(source.Schema, "")
	if err != nil {
		panic(err)
	}

	texts, err := layout.LoadDir(dir)
	if err != nil {
		log.Info(fmt.Sprintf("layout directory load failed: %v", err), logger.Error)
		return
	}
	for _, text := range texts {
		name, err := eng.RegisterLayoutSchema(text, "")
		if err != nil {
			log.Info(fmt.Sprintf("cannot register layout: %v", err), logger.Warning)
			continue
		}
		log.Info(fmt.Sprintf("layout registered: %s", name), logger.Debug)
	}
}

func main() {
	var cfg = instate.LoadConfig(*configPath)
	log.Info(fmt.Sprintf("config: %+v", cfg), logger.Debug)

	var sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())

	var g *gocui.Gui
	if *ui {
		g = runUI(cfg, sigs)
	}

	wg := sync.WaitGroup{}
	server := runProfileServer(&wg)

	wg.Add(1)
	go handleSigs(&wg, sigs, cancel, server, g)

	registry := layout.NewRegistry()
	eng := engine.New(registry, cfg.Engine.Passes, cfg.Engine.QueueSize)
	registerLayouts(eng, cfg.LayoutDir)

	statuses := make(chan []deviceStatus, 4)
	if *ui {
		go logView(g, !*nocolor, *logLevel)
		go overviewView(g, statuses)
	} else {
		go func() {
			for range statuses {
			}
		}()
		go func() {
			au := aurora.NewAurora(!*nocolor)
			for data := range logger.Messages {
				msg, err := unpack(data)
				if err != nil {
					fmt.Printf("%s\n", string(data))
					continue
				}
				m := prepareString(msg, au, -1, *logLevel)
				if m != "" {
					fmt.Printf("%s\n", m)
				}
			}
		}()
	}

	runManager(ctx, cfg, *grab, eng, statuses)
	close(statuses)

	close(sigs)
	wg.Wait()
	close(logger.Messages)
}
