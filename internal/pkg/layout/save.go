package layout

import "fmt"

// SavedMatcher is one matcher entry in persisted form.
type SavedMatcher struct {
	Layout string      `yaml:"layout"`
	Device Description `yaml:"device"`
	Inline bool        `yaml:"inline,omitempty"`
}

// Saved is the registry's persisted form. Builder-backed entries cannot
// round-trip through it, they serialize by name only and must be registered
// again before Restore.
type Saved struct {
	Schemas      map[string]string `yaml:"schemas"` // name → schema text
	Builders     []string          `yaml:"builders"`
	Matchers     []SavedMatcher    `yaml:"matchers"`
	Processors   map[string]string `yaml:"processors"` // name → type name
	Modifiers    map[string]string `yaml:"modifiers"`
	SetupVersion uint64            `yaml:"setupVersion"`
}

func (r *Registry) Save() Saved {
	s := Saved{
		Schemas:      make(map[string]string, len(r.schemas)),
		Processors:   make(map[string]string, len(r.processors)),
		Modifiers:    make(map[string]string, len(r.modifiers)),
		SetupVersion: r.setupVersion,
	}
	for _, e := range r.schemas {
		s.Schemas[e.name] = e.schema
	}
	for _, e := range r.builders {
		s.Builders = append(s.Builders, e.name)
	}
	for _, m := range r.matchers {
		s.Matchers = append(s.Matchers, SavedMatcher{Layout: m.layout, Device: m.desc, Inline: m.inline})
	}
	for _, p := range r.processors {
		s.Processors[p.name] = fmt.Sprintf("%T", p.ref)
	}
	for _, m := range r.modifiers {
		s.Modifiers[m.name] = fmt.Sprintf("%T", m.ref)
	}
	return s
}

// Restore re-registers all schema-backed entries and replaces the matcher
// list with the persisted one. Builder entries and processor/modifier
// references are expected to have been registered again by the host; their
// persisted tables are name records only.
func (r *Registry) Restore(s Saved) error {
	for name, text := range s.Schemas {
		if _, err := r.RegisterSchema(text, name); err != nil {
			return fmt.Errorf("restoring layout %q: %w", name, err)
		}
	}
	r.matchers = nil
	for _, m := range s.Matchers {
		r.matchers = append(r.matchers, matcher{layout: m.Layout, desc: m.Device, inline: m.Inline})
	}
	r.setupVersion = s.SetupVersion
	return nil
}
