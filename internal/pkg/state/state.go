package state

import (
	"github.com/hxio/instate/internal/pkg/event"
)

// Pass identifies one of the independently double-buffered update contexts.
type Pass int

const (
	PassDynamic Pass = iota // variable-rate, once per frame
	PassFixed               // fixed-rate
	PassEditor              // no frame cadence, flips on every state event
	PassBeforeRender        // owns no buffers, writes land in the cadenced passes
)

func (p Pass) String() string {
	switch p {
	case PassDynamic:
		return "dynamic"
	case PassFixed:
		return "fixed"
	case PassEditor:
		return "editor"
	case PassBeforeRender:
		return "beforeRender"
	default:
		return "unknown"
	}
}

// OffsetNone marks a state block that has no allocation in the buffer set.
const OffsetNone = ^uint32(0)

// Block locates a device's data within a pass's buffer region.
type Block struct {
	ByteOffset uint32
	BitOffset  uint32
	SizeBits   uint32
	Format     event.Code
}

func (b Block) SizeBytes() uint32 {
	return (b.SizeBits + 7) / 8
}

// AlignedSizeBytes is the block's footprint in the buffer region, padded to
// 4-byte natural alignment.
func (b Block) AlignedSizeBytes() uint32 {
	return (b.SizeBytes() + 3) &^ 3
}
