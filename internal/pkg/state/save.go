package state

import "fmt"

// PassFromString is the inverse of Pass.String.
func PassFromString(s string) (Pass, error) {
	switch s {
	case "dynamic":
		return PassDynamic, nil
	case "fixed":
		return PassFixed, nil
	case "editor":
		return PassEditor, nil
	case "beforeRender":
		return PassBeforeRender, nil
	default:
		return 0, fmt.Errorf("unknown pass %q", s)
	}
}

// SavedPass is one pass's region in persisted form.
type SavedPass struct {
	Pass     string `yaml:"pass"`
	BufferA  []byte `yaml:"bufferA"`
	BufferB  []byte `yaml:"bufferB"`
	FrontIsB []bool `yaml:"frontIsB"`
}

// Saved is the full buffer set in persisted form, offsets, sizes and raw
// contents included.
type Saved struct {
	Offsets []uint32    `yaml:"offsets"`
	Sizes   []uint32    `yaml:"sizes"`
	Active  string      `yaml:"active"`
	Passes  []SavedPass `yaml:"passes"`
}

func (b *Buffers) Save() Saved {
	s := Saved{
		Offsets: append([]uint32(nil), b.offsets...),
		Sizes:   append([]uint32(nil), b.sizes...),
		Active:  b.active.String(),
	}
	for _, pass := range b.order {
		pb := b.passes[pass]
		s.Passes = append(s.Passes, SavedPass{
			Pass:     pass.String(),
			BufferA:  append([]byte(nil), pb.bufferA...),
			BufferB:  append([]byte(nil), pb.bufferB...),
			FrontIsB: append([]bool(nil), pb.frontIsB...),
		})
	}
	return s
}

// RestoreBuffers rebuilds a buffer set, contents and front/back roles
// included, from its persisted form.
func RestoreBuffers(s Saved) (*Buffers, error) {
	active, err := PassFromString(s.Active)
	if err != nil {
		return nil, err
	}

	b := &Buffers{
		passes:  make(map[Pass]*passBuffers),
		offsets: append([]uint32(nil), s.Offsets...),
		sizes:   append([]uint32(nil), s.Sizes...),
		active:  active,
	}
	for _, size := range b.sizes {
		b.total += size
	}

	for _, sp := range s.Passes {
		pass, err := PassFromString(sp.Pass)
		if err != nil {
			return nil, err
		}
		pb := &passBuffers{
			bufferA:  make([]byte, b.total),
			bufferB:  make([]byte, b.total),
			frontIsB: make([]bool, len(b.offsets)),
		}
		copy(pb.bufferA, sp.BufferA)
		copy(pb.bufferB, sp.BufferB)
		copy(pb.frontIsB, sp.FrontIsB)
		b.passes[pass] = pb
		b.order = append(b.order, pass)
	}

	return b, nil
}
