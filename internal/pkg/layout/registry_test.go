package layout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hxio/instate/internal/pkg/event"
)

const gamepadSchema = `
name: Gamepad
format: GPAD
stateSizeBits: 32
device:
  product: xbox
controls:
  - name: buttonSouth
    byteOffset: 0
    bitOffset: 0
    sizeBits: 1
`

func TestRegisterSchema(t *testing.T) {
	r := NewRegistry()
	name, err := r.RegisterSchema(gamepadSchema, "")
	assert.Equal(t, nil, err)
	assert.Equal(t, "Gamepad", name)
	assert.Equal(t, true, r.Exists("gamepad")) // case-insensitive

	l, err := r.Resolve("Gamepad")
	assert.Equal(t, nil, err)
	assert.Equal(t, event.CodeFromString("GPAD"), l.Format)
	assert.Equal(t, uint32(32), l.StateSizeBits)
	assert.Equal(t, 1, len(l.Controls))
}

func TestRegisterSchemaErrors(t *testing.T) {
	r := NewRegistry()

	_, err := r.RegisterSchema("", "")
	assert.Equal(t, true, errors.Is(err, ErrInvalidArgument))

	_, err = r.RegisterSchema("stateSizeBits: 16", "")
	assert.Equal(t, true, errors.Is(err, ErrInvalidArgument)) // no name anywhere

	_, err = r.RegisterSchema("name: Pad\nformat: TOOLONG", "")
	assert.NotEqual(t, nil, err)

	_, err = r.RegisterSchema("name: Pad\n\tbroken", "")
	assert.NotEqual(t, nil, err)
}

func TestRegisterBuilder(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterBuilder("Pad", func() Layout {
		return Layout{Format: event.CodeFromString("GPAD"), StateSizeBits: 16}
	}, "")
	assert.Equal(t, nil, err)

	l, err := r.Resolve("pad")
	assert.Equal(t, nil, err)
	assert.Equal(t, "Pad", l.Name) // registered case wins
	assert.Equal(t, uint32(16), l.StateSizeBits)

	err = r.RegisterBuilder("", nil, "")
	assert.Equal(t, true, errors.Is(err, ErrInvalidArgument))
}

func TestSchemaShadowsBuilder(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterBuilder("Gamepad", func() Layout {
		return Layout{StateSizeBits: 8}
	}, "")
	assert.Equal(t, nil, err)
	_, err = r.RegisterSchema(gamepadSchema, "")
	assert.Equal(t, nil, err)

	l, err := r.Resolve("Gamepad")
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(32), l.StateSizeBits)
}

func TestResolveBaseChain(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterSchema(`
name: Controller
format: CTRL
stateSizeBits: 64
controls:
  - name: buttonSouth
    byteOffset: 0
    bitOffset: 0
    sizeBits: 1
`, "")
	assert.Equal(t, nil, err)
	_, err = r.RegisterSchema(`
name: Gamepad
extend: Controller
format: GPAD
controls:
  - name: buttonEast
    byteOffset: 0
    bitOffset: 1
    sizeBits: 1
`, "")
	assert.Equal(t, nil, err)

	l, err := r.Resolve("Gamepad")
	assert.Equal(t, nil, err)
	assert.Equal(t, event.CodeFromString("GPAD"), l.Format)
	assert.Equal(t, uint32(64), l.StateSizeBits) // inherited
	assert.Equal(t, 2, len(l.Controls))
	assert.Equal(t, "buttonSouth", l.Controls[0].Name)
	assert.Equal(t, "buttonEast", l.Controls[1].Name)

	assert.Equal(t, true, r.IsBasedOn("Gamepad", "Controller"))
	assert.Equal(t, true, r.IsBasedOn("Gamepad", "gamepad"))
	assert.Equal(t, false, r.IsBasedOn("Controller", "Gamepad"))
}

func TestResolveErrors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("nothing")
	assert.Equal(t, true, errors.Is(err, ErrUnknownLayout))

	// a layout without state size anywhere in its chain is unusable
	_, err = r.RegisterSchema("name: Empty\nformat: NONE", "")
	assert.Equal(t, nil, err)
	_, err = r.Resolve("Empty")
	assert.Equal(t, true, errors.Is(err, ErrUnknownLayout))

	// cyclic base chains terminate
	_, err = r.RegisterSchema("name: A\nextend: B\nstateSizeBits: 8", "")
	assert.Equal(t, nil, err)
	_, err = r.RegisterSchema("name: B\nextend: A\nstateSizeBits: 8", "")
	assert.Equal(t, nil, err)
	_, err = r.Resolve("A")
	assert.Equal(t, true, errors.Is(err, ErrUnknownLayout))
}

func TestMatchOrderAndFallback(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterSchema(gamepadSchema, "")
	assert.Equal(t, nil, err)
	_, err = r.RegisterSchema("name: Keyboard\nformat: KEYB\nstateSizeBits: 256", "")
	assert.Equal(t, nil, err)
	r.AddMatcher("Keyboard", Description{Manufacturer: "logi"})

	// inline matcher registered first wins even when both match
	name, ok := r.Match(Description{Product: "XBox Elite", Manufacturer: "Logitech"})
	assert.Equal(t, true, ok)
	assert.Equal(t, "Gamepad", name)

	name, ok = r.Match(Description{Manufacturer: "Logitech"})
	assert.Equal(t, true, ok)
	assert.Equal(t, "Keyboard", name)

	// no matcher, device class naming a layout works as fallback
	name, ok = r.Match(Description{DeviceClass: "keyboard"})
	assert.Equal(t, true, ok)
	assert.Equal(t, "Keyboard", name)

	_, ok = r.Match(Description{Product: "unknown thing"})
	assert.Equal(t, false, ok)
}

func TestReregistrationReplacesInlineMatcher(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterSchema(gamepadSchema, "")
	assert.Equal(t, nil, err)
	r.AddMatcher("Gamepad", Description{Serial: "0001"})

	// the new device block supersedes the old one entirely
	_, err = r.RegisterSchema(`
name: Gamepad
format: GPAD
stateSizeBits: 32
device:
  product: sony
`, "")
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(r.matchers))

	_, ok := r.Match(Description{Product: "XBox Elite"})
	assert.Equal(t, false, ok)
	name, ok := r.Match(Description{Product: "Sony DualSense"})
	assert.Equal(t, true, ok)
	assert.Equal(t, "Gamepad", name)

	// the explicitly added matcher is untouched
	name, ok = r.Match(Description{Serial: "0001"})
	assert.Equal(t, true, ok)
	assert.Equal(t, "Gamepad", name)

	// re-registering the identical schema does not grow the list
	for i := 0; i < 3; i++ {
		_, err = r.RegisterSchema(gamepadSchema, "")
		assert.Equal(t, nil, err)
	}
	assert.Equal(t, 2, len(r.matchers))
}

func TestSetupVersionBumpsOnMutation(t *testing.T) {
	r := NewRegistry()
	v0 := r.SetupVersion()

	_, err := r.RegisterSchema(gamepadSchema, "")
	assert.Equal(t, nil, err)
	v1 := r.SetupVersion()
	assert.Equal(t, true, v1 > v0)

	r.AddMatcher("Gamepad", Description{Serial: "abc"})
	assert.Equal(t, true, r.SetupVersion() > v1)
}

func TestProcessorAndModifierTables(t *testing.T) {
	r := NewRegistry()
	fn := func() {}
	err := r.RegisterProcessor("Deadzone", fn)
	assert.Equal(t, nil, err)

	_, ok := r.Processor("deadzone")
	assert.Equal(t, true, ok)
	_, ok = r.Modifier("deadzone")
	assert.Equal(t, false, ok)

	err = r.RegisterModifier("", nil)
	assert.Equal(t, true, errors.Is(err, ErrInvalidArgument))
}

func TestRegistrySaveRestore(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterSchema(gamepadSchema, "")
	assert.Equal(t, nil, err)
	r.AddMatcher("Gamepad", Description{Serial: "0001"})
	saved := r.Save()

	restored := NewRegistry()
	err = restored.Restore(saved)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, restored.Exists("Gamepad"))
	assert.Equal(t, r.SetupVersion(), restored.SetupVersion())

	// matchers come back verbatim, inline ones are not duplicated
	name, ok := restored.Match(Description{Serial: "0001"})
	assert.Equal(t, true, ok)
	assert.Equal(t, "Gamepad", name)
	assert.Equal(t, len(r.matchers), len(restored.matchers))
}

func TestNames(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterSchema(gamepadSchema, "")
	assert.Equal(t, nil, err)
	err = r.RegisterBuilder("gamepad", func() Layout { return Layout{StateSizeBits: 8} }, "")
	assert.Equal(t, nil, err)
	err = r.RegisterBuilder("Keyboard", func() Layout { return Layout{StateSizeBits: 8} }, "")
	assert.Equal(t, nil, err)

	assert.Equal(t, []string{"Gamepad", "Keyboard"}, r.Names())
}
