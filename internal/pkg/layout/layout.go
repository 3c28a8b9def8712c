package layout

import (
	"errors"
	"strings"

	"github.com/hxio/instate/internal/pkg/event"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownLayout   = errors.New("unknown layout")
)

// Control is a named sub-region of a layout's state block. The runtime only
// needs its geometry; field derivation from concrete types lives elsewhere.
type Control struct {
	Name       string `yaml:"name"`
	ByteOffset uint32 `yaml:"byteOffset"`
	BitOffset  uint32 `yaml:"bitOffset"`
	SizeBits   uint32 `yaml:"sizeBits"`
}

// Layout is a resolved blueprint: everything the runtime needs to allocate
// and route state for one device.
type Layout struct {
	Name          string
	Format        event.Code
	StateSizeBits uint32
	BeforeRender  bool
	Controls      []Control
}

// Control looks up a named control region, case-insensitive.
func (l *Layout) Control(name string) (Control, bool) {
	for _, c := range l.Controls {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Control{}, false
}

// Builder produces a layout programmatically, the type-backed alternative to
// schema text.
type Builder func() Layout

// Description is a loose record of what a device reports about itself. Used
// for matching against layouts, never for identity.
type Description struct {
	Interface    string `yaml:"interface,omitempty"`
	DeviceClass  string `yaml:"deviceClass,omitempty"`
	Manufacturer string `yaml:"manufacturer,omitempty"`
	Product      string `yaml:"product,omitempty"`
	Serial       string `yaml:"serial,omitempty"`
	Version      string `yaml:"version,omitempty"`
	Capabilities string `yaml:"capabilities,omitempty"`
}

func (d Description) Empty() bool {
	return d == Description{}
}

// Matches reports whether every non-empty field of the matcher d is found
// (case-insensitive substring) in the corresponding field of other.
func (d Description) Matches(other Description) bool {
	if d.Empty() {
		return false
	}
	for _, pair := range [][2]string{
		{d.Interface, other.Interface},
		{d.DeviceClass, other.DeviceClass},
		{d.Manufacturer, other.Manufacturer},
		{d.Product, other.Product},
		{d.Serial, other.Serial},
		{d.Version, other.Version},
		{d.Capabilities, other.Capabilities},
	} {
		if pair[0] == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(pair[1]), strings.ToLower(pair[0])) {
			return false
		}
	}
	return true
}
