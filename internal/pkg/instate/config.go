package instate

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"github.com/hxio/instate/internal/pkg/state"
)

type Config struct {
	Engine struct {
		Passes      []state.Pass
		QueueSize   int
		DynamicRate time.Duration // dynamic tick interval
		FixedRate   time.Duration // fixed tick interval
	}

	Source struct {
		DiscoveryRate time.Duration
		Grab          bool
	}

	UI struct {
		LogViewRate time.Duration
	}

	LayoutDir string
}

func DefaultConfig() Config {
	var c Config
	c.Engine.Passes = []state.Pass{state.PassDynamic, state.PassFixed}
	c.Engine.QueueSize = 256
	c.Engine.DynamicRate = time.Second / 60
	c.Engine.FixedRate = time.Second / 50
	c.Source.DiscoveryRate = time.Second
	c.Source.Grab = false
	c.UI.LogViewRate = time.Second / 20
	c.LayoutDir = "./config/layouts"
	return c
}

// LoadConfig reads the INI app config. A missing file means defaults; a
// broken file is a startup-stopping problem.
func LoadConfig(path string) Config {
	c := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c
		}
		panic(err)
	}

	cfg, err := ini.Load(data)
	if err != nil {
		panic(err)
	}

	// [engine]
	engine := cfg.Section("engine")
	if raw := engine.Key("passes").String(); raw != "" {
		var passes []state.Pass
		for _, name := range strings.Split(raw, ",") {
			pass, err := state.PassFromString(strings.TrimSpace(name))
			if err != nil {
				panic(fmt.Errorf("config: %w", err))
			}
			passes = append(passes, pass)
		}
		c.Engine.Passes = passes
	}
	c.Engine.QueueSize = engine.Key("queue_size").MustInt(c.Engine.QueueSize)
	if rate := engine.Key("dynamic_rate").MustInt(0); rate > 0 {
		c.Engine.DynamicRate = time.Second / time.Duration(rate)
	}
	if rate := engine.Key("fixed_rate").MustInt(0); rate > 0 {
		c.Engine.FixedRate = time.Second / time.Duration(rate)
	}

	// [source]
	source := cfg.Section("source")
	if rate := source.Key("discovery_rate").MustInt(0); rate > 0 {
		c.Source.DiscoveryRate = time.Second / time.Duration(rate)
	}
	c.Source.Grab = source.Key("grab").MustBool(c.Source.Grab)

	// [ui]
	uiSection := cfg.Section("ui")
	if rate := uiSection.Key("log_view_rate").MustInt(0); rate > 0 {
		c.UI.LogViewRate = time.Second / time.Duration(rate)
	}

	c.LayoutDir = cfg.Section("layouts").Key("dir").MustString(c.LayoutDir)

	return c
}
