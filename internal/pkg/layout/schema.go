package layout

import (
	"fmt"

	"github.com/hxio/instate/internal/pkg/event"
	"gopkg.in/yaml.v3"
)

// schema is the YAML shape of a text-backed layout.
//
//	name: Gamepad
//	extend: Controller
//	format: GPAD
//	stateSizeBits: 64
//	beforeRender: false
//	device:
//	  product: xbox
//	controls:
//	  - name: buttonSouth
//	    byteOffset: 0
//	    bitOffset: 0
//	    sizeBits: 1
type schema struct {
	Name          string      `yaml:"name"`
	Extend        string      `yaml:"extend"`
	Format        string      `yaml:"format"`
	StateSizeBits uint32      `yaml:"stateSizeBits"`
	BeforeRender  bool        `yaml:"beforeRender"`
	Device        Description `yaml:"device"`
	Controls      []Control   `yaml:"controls"`
}

func parseSchema(text string) (schema, error) {
	var s schema
	err := yaml.Unmarshal([]byte(text), &s)
	if err != nil {
		return schema{}, fmt.Errorf("cannot parse layout schema: %w", err)
	}
	if s.Format != "" && len(s.Format) != 4 {
		return schema{}, fmt.Errorf("layout format must be a four character code, got %q", s.Format)
	}
	return s, nil
}

func (s *schema) format() event.Code {
	if s.Format == "" {
		return event.Code{}
	}
	return event.CodeFromString(s.Format)
}
