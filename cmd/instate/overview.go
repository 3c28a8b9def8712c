package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/awesome-gocui/gocui"
)

// overviewView renders the device table from the snapshots the manager
// publishes, so it never touches the engine directly.
func overviewView(g *gocui.Gui, statuses <-chan []deviceStatus) {
	var v *gocui.View
	var err error
	for {
		v, err = g.View(ViewOverview)
		if err == nil {
			break
		}
		time.Sleep(time.Millisecond * 100)
	}

	for devices := range statuses {
		var b strings.Builder
		for _, d := range devices {
			link := "connected"
			if !d.Connected {
				link = "disconnected"
			}
			fmt.Fprintf(&b, "%3d %-24s %-12s %-12s writes: %-6d %s\n",
				d.ID, d.Name, d.Layout, link, d.Writes, hexPreview(d.Preview))
		}
		v.Clear()
		v.Write([]byte(b.String()))
	}
}

func hexPreview(data []byte) string {
	var b strings.Builder
	for i, x := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", x)
	}
	return b.String()
}
