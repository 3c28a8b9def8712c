package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/awesome-gocui/gocui"
	"github.com/hxio/instate/internal/pkg/logger"
	"github.com/logrusorgru/aurora"
)

const (
	ViewLogs     = "logs"
	ViewOverview = "overview"
)

func GetCli() (*gocui.Gui, error) {
	g, err := gocui.NewGui(gocui.Output256, true)
	if err != nil {
		return nil, err
	}

	g.SetManagerFunc(Layout)

	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return nil, err
	}

	return g, nil
}

func Layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView(ViewOverview, 0, 0, maxX-1, 9, 0); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "[Devices]"
		v.Autoscroll = false
		v.Wrap = false
		v.Frame = true
	}

	if v, err := g.SetView(ViewLogs, 0, 9, maxX-1, maxY-1, gocui.TOP); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "[Logs]"
		v.Autoscroll = false
		v.Wrap = false
		v.Frame = true
	}
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

type TimeNanosecond time.Time

func (j *TimeNanosecond) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*j = TimeNanosecond(time.Unix(0, v))
	return nil
}

func (j TimeNanosecond) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(j))
}

type Entry struct {
	Ts     TimeNanosecond `json:"ts"`
	Caller string         `json:"caller"`
	Msg    string         `json:"msg"`
	Level  int            `json:"level"`

	Device string `json:"device_name"`
	Layout string `json:"layout"`
}

func unpack(data []byte) (Entry, error) {
	var v Entry
	err := json.Unmarshal(data, &v)
	return v, err
}

func gray(v uint8) aurora.Color {
	if v > 23 {
		v = 23
	}
	return aurora.Color(232+v) << 16
}

func color(r, g, b uint8) aurora.Color {
	return aurora.Color(16+36*r+6*g+b) << 16
}

// colorForString returns a stable pseudo-random color for a string.
func colorForString(au aurora.Aurora, s string) aurora.Value {
	h := fnv.New32a()
	h.Write([]byte(s))
	sum := h.Sum32()

	r, g, b := uint8(sum)&0b111, uint8(sum>>8)&0b111, uint8(sum>>16)&0b111
	if r > 5 {
		r = 5
	}
	if g > 5 {
		g = 5
	}
	if b > 5 {
		b = 5
	}

	// avoid dark colors
	if r+g+b < 3 {
		r += 1
		g += 1
		b += 1
	}

	return au.Index(16+36*r+6*g+b, s)
}

func prepareString(msg Entry, au aurora.Aurora, width, logLevel int) string {
	if msg.Level > logLevel {
		return ""
	}

	var msgColor aurora.Color
	switch msg.Level {
	case logger.ErrorLvl:
		msgColor = color(5, 1, 1)
	case logger.WarningLvl:
		msgColor = color(5, 5, 1)
	case logger.InfoLvl, logger.DeviceLvl:
		msgColor = gray(18)
	case logger.EventLvl:
		msgColor = gray(15)
	case logger.MonitorLvl:
		msgColor = gray(13)
	case logger.DebugLvl:
		msgColor = gray(9)
	}

	t := time.Time(msg.Ts)
	timestamp := fmt.Sprintf("[%s]", au.Reset(t.Format("15:04:05.000")).Colorize(color(1, 1, 5)).String())

	fields := ""
	if msg.Layout != "" {
		fields += fmt.Sprintf(" [layout=%s]", colorForString(au, msg.Layout).String())
	}
	if msg.Device != "" {
		fields += fmt.Sprintf(" [dev=%s]", colorForString(au, msg.Device).String())
	}
	if logLevel >= logger.DebugLvl && msg.Caller != "" {
		x := strings.Split(msg.Caller, ":")
		fields += fmt.Sprintf(" (%s:%s)", colorForString(au, x[0]).String(), x[1])
	}
	if fields != "" {
		fields = fields[1:]
	}

	m := au.Reset(msg.Msg).Colorize(msgColor).String()
	if width > -1 && len(msg.Msg) > width {
		m = au.Reset(msg.Msg[:width] + "(…)").Colorize(msgColor).String()
	}
	return fmt.Sprintf("%s %s %s", timestamp, m, fields)
}

func logView(g *gocui.Gui, color bool, logLevel int) {
	au := aurora.NewAurora(color)
	var v *gocui.View
	var err error
	for {
		v, err = g.View(ViewLogs)
		if err == nil {
			break
		}
		time.Sleep(time.Millisecond * 100)
	}

	for data := range logger.Messages {
		msg, err := unpack(data)
		if err != nil {
			v.Write(data)
			v.Write([]byte{'\n'})
			continue
		}
		s := prepareString(msg, au, -1, logLevel)
		if s != "" {
			v.Write([]byte(s))
			v.Write([]byte{'\n'})
		}
	}
}
