package layout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hxio/instate/internal/pkg/event"
)

type entry struct {
	name    string // case as registered
	base    string
	builder Builder // type-backed namespace
	schema  string  // text-backed namespace, raw text
	parsed  schema  // cached parse of schema
}

type matcher struct {
	layout string
	desc   Description
	inline bool // declared in the layout's own schema text
}

type namedRef struct {
	name string
	ref  interface{}
}

// Registry stores named device blueprints, their base chain and their
// device-matching descriptions, plus the processor/modifier name tables.
// Names are stored with their original case and matched case-insensitively.
// Entries are never deleted, re-registration shadows.
//
// The registry is explicitly owned and passed to whoever needs lookups, it
// is not safe for concurrent mutation.
type Registry struct {
	builders   map[string]*entry // key: lowercase name
	schemas    map[string]*entry
	matchers   []matcher // registration order
	processors map[string]namedRef
	modifiers  map[string]namedRef

	// setupVersion bumps on every mutation; consumers use it to invalidate
	// cached resolutions.
	setupVersion uint64
}

func NewRegistry() *Registry {
	return &Registry{
		builders:   make(map[string]*entry),
		schemas:    make(map[string]*entry),
		processors: make(map[string]namedRef),
		modifiers:  make(map[string]namedRef),
	}
}

func (r *Registry) SetupVersion() uint64 {
	return r.setupVersion
}

// RegisterBuilder registers a type-backed layout under name, replacing any
// previous builder entry with that name.
func (r *Registry) RegisterBuilder(name string, builder Builder, base string) error {
	if name == "" {
		return fmt.Errorf("%w: layout name is empty", ErrInvalidArgument)
	}
	if builder == nil {
		return fmt.Errorf("%w: layout builder is nil", ErrInvalidArgument)
	}
	r.builders[strings.ToLower(name)] = &entry{name: name, base: base, builder: builder}
	r.setupVersion++
	return nil
}

// RegisterSchema registers a text-backed layout. When name is empty the
// schema's own name field is used. Returns the effective layout name. A
// matcher declared inline in the schema is appended to the matcher list.
func (r *Registry) RegisterSchema(text, name string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("%w: layout schema is empty", ErrInvalidArgument)
	}
	parsed, err := parseSchema(text)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = parsed.Name
	}
	if name == "" {
		return "", fmt.Errorf("%w: layout schema has no name", ErrInvalidArgument)
	}

	r.schemas[strings.ToLower(name)] = &entry{
		name:   name,
		base:   parsed.Extend,
		schema: text,
		parsed: parsed,
	}

	// re-registration replaces the entry, its previous inline matcher
	// included; explicitly added matchers are not the schema's to drop
	kept := r.matchers[:0]
	for _, m := range r.matchers {
		if m.inline && strings.EqualFold(m.layout, name) {
			continue
		}
		kept = append(kept, m)
	}
	r.matchers = kept
	if !parsed.Device.Empty() {
		r.matchers = append(r.matchers, matcher{layout: name, desc: parsed.Device, inline: true})
	}
	r.setupVersion++
	return name, nil
}

// AddMatcher appends a (description → layout) matcher. Matchers are scanned
// in registration order.
func (r *Registry) AddMatcher(layoutName string, desc Description) {
	r.matchers = append(r.matchers, matcher{layout: layoutName, desc: desc})
	r.setupVersion++
}

func (r *Registry) RegisterProcessor(name string, ref interface{}) error {
	if name == "" || ref == nil {
		return fmt.Errorf("%w: processor name or reference missing", ErrInvalidArgument)
	}
	r.processors[strings.ToLower(name)] = namedRef{name: name, ref: ref}
	r.setupVersion++
	return nil
}

func (r *Registry) RegisterModifier(name string, ref interface{}) error {
	if name == "" || ref == nil {
		return fmt.Errorf("%w: modifier name or reference missing", ErrInvalidArgument)
	}
	r.modifiers[strings.ToLower(name)] = namedRef{name: name, ref: ref}
	r.setupVersion++
	return nil
}

func (r *Registry) Processor(name string) (interface{}, bool) {
	v, ok := r.processors[strings.ToLower(name)]
	return v.ref, ok
}

func (r *Registry) Modifier(name string) (interface{}, bool) {
	v, ok := r.modifiers[strings.ToLower(name)]
	return v.ref, ok
}

func (r *Registry) lookup(name string) *entry {
	key := strings.ToLower(name)
	// text-backed entries shadow type-backed ones of the same name
	if e, ok := r.schemas[key]; ok {
		return e
	}
	if e, ok := r.builders[key]; ok {
		return e
	}
	return nil
}

// Exists reports whether any entry is registered under name.
func (r *Registry) Exists(name string) bool {
	return name != "" && r.lookup(name) != nil
}

// Resolve builds the usable layout for name, walking the base chain and
// overlaying each level's fields over its base.
func (r *Registry) Resolve(name string) (Layout, error) {
	l, err := r.resolve(name, 0)
	if err != nil {
		return Layout{}, err
	}
	if l.StateSizeBits == 0 {
		return Layout{}, fmt.Errorf("%w: %q declares no state size", ErrUnknownLayout, name)
	}
	l.Name = r.lookup(name).name
	return l, nil
}

func (r *Registry) resolve(name string, depth int) (Layout, error) {
	if depth > 16 {
		return Layout{}, fmt.Errorf("%w: base chain of %q too deep or cyclic", ErrUnknownLayout, name)
	}
	e := r.lookup(name)
	if e == nil {
		return Layout{}, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
	}

	var base Layout
	if e.base != "" {
		var err error
		base, err = r.resolve(e.base, depth+1)
		if err != nil {
			return Layout{}, err
		}
	}

	var own Layout
	if e.schema != "" {
		own = Layout{
			Format:        e.parsed.format(),
			StateSizeBits: e.parsed.StateSizeBits,
			BeforeRender:  e.parsed.BeforeRender,
			Controls:      e.parsed.Controls,
		}
	} else {
		own = e.builder()
	}

	return merge(base, own), nil
}

// merge overlays the fields own actually sets over base.
func merge(base, own Layout) Layout {
	out := base
	if own.Format != (event.Code{}) {
		out.Format = own.Format
	}
	if own.StateSizeBits != 0 {
		out.StateSizeBits = own.StateSizeBits
	}
	if own.BeforeRender {
		out.BeforeRender = true
	}
	out.Controls = append(append([]Control(nil), base.Controls...), own.Controls...)
	return out
}

// IsBasedOn reports whether layout name equals base or reaches it through
// its base chain.
func (r *Registry) IsBasedOn(name, base string) bool {
	for depth := 0; name != "" && depth <= 16; depth++ {
		if strings.EqualFold(name, base) {
			return true
		}
		e := r.lookup(name)
		if e == nil {
			return false
		}
		name = e.base
	}
	return false
}

// Match scans matchers in registration order and returns the first layout
// whose description matches. Falls back to the description's device class
// naming a registered layout.
func (r *Registry) Match(desc Description) (string, bool) {
	for _, m := range r.matchers {
		if m.desc.Matches(desc) {
			return m.layout, true
		}
	}
	if desc.DeviceClass != "" && r.Exists(desc.DeviceClass) {
		return r.lookup(desc.DeviceClass).name, true
	}
	return "", false
}

// Names returns all registered layout names, without duplicates, sorted.
func (r *Registry) Names() []string {
	seen := make(map[string]string, len(r.builders)+len(r.schemas))
	for key, e := range r.builders {
		seen[key] = e.name
	}
	for key, e := range r.schemas {
		seen[key] = e.name
	}
	names := make([]string, 0, len(seen))
	for _, name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
