package state

// passBuffers is one pass's region: all devices' blocks back-to-back, in two
// copies. Which copy plays "front" is a per-device role, not a global one.
type passBuffers struct {
	bufferA  []byte
	bufferB  []byte
	frontIsB []bool
}

// Buffers owns the double-buffered memory for every enabled pass. The offset
// table is shared structurally across passes, a device sits at the same byte
// offset in each region.
type Buffers struct {
	passes  map[Pass]*passBuffers
	order   []Pass
	offsets []uint32
	sizes   []uint32 // aligned block size per device
	total   uint32
	active  Pass
}

// NewBuffers lays out the given per-device aligned block sizes contiguously
// and allocates a doubled region for each enabled pass. PassBeforeRender is
// ignored, it owns no storage.
func NewBuffers(passes []Pass, sizes []uint32) *Buffers {
	b := &Buffers{
		passes:  make(map[Pass]*passBuffers),
		offsets: make([]uint32, len(sizes)),
		sizes:   make([]uint32, len(sizes)),
		active:  PassDynamic,
	}

	var offset uint32
	for i, size := range sizes {
		size = (size + 3) &^ 3
		b.offsets[i] = offset
		b.sizes[i] = size
		offset += size
	}
	b.total = offset

	for _, pass := range passes {
		if pass == PassBeforeRender {
			continue
		}
		if _, ok := b.passes[pass]; ok {
			continue
		}
		b.passes[pass] = &passBuffers{
			bufferA:  make([]byte, b.total),
			bufferB:  make([]byte, b.total),
			frontIsB: make([]bool, len(sizes)),
		}
		b.order = append(b.order, pass)
	}

	return b
}

// Offsets returns the shared device → byte offset table.
func (b *Buffers) Offsets() []uint32 {
	return b.offsets
}

// Passes returns the passes that own storage, in allocation order.
func (b *Buffers) Passes() []Pass {
	return b.order
}

func (b *Buffers) Enabled(pass Pass) bool {
	_, ok := b.passes[pass]
	return ok
}

// SetActive selects which pass a generic snapshot read targets. It does not
// touch storage.
func (b *Buffers) SetActive(pass Pass) {
	if b.Enabled(pass) {
		b.active = pass
	}
}

func (b *Buffers) Active() Pass {
	return b.active
}

// Front returns the device's block in the pass's front copy.
func (b *Buffers) Front(pass Pass, device int) []byte {
	pb, ok := b.passes[pass]
	if !ok || device < 0 || device >= len(b.offsets) {
		return nil
	}
	off, size := b.offsets[device], b.sizes[device]
	if pb.frontIsB[device] {
		return pb.bufferB[off : off+size]
	}
	return pb.bufferA[off : off+size]
}

// Back returns the device's block in the pass's back copy.
func (b *Buffers) Back(pass Pass, device int) []byte {
	pb, ok := b.passes[pass]
	if !ok || device < 0 || device >= len(b.offsets) {
		return nil
	}
	off, size := b.offsets[device], b.sizes[device]
	if pb.frontIsB[device] {
		return pb.bufferA[off : off+size]
	}
	return pb.bufferB[off : off+size]
}

// CurrentFront reads through the active pass.
func (b *Buffers) CurrentFront(device int) []byte {
	return b.Front(b.active, device)
}

// Swap exchanges the front/back role of one device's block within one pass.
// This is the unit of frame advancement.
func (b *Buffers) Swap(pass Pass, device int) {
	pb, ok := b.passes[pass]
	if !ok || device < 0 || device >= len(pb.frontIsB) {
		return
	}
	pb.frontIsB[device] = !pb.frontIsB[device]
}

// Zero clears the device's block, front and back, in every pass.
func (b *Buffers) Zero(device int) {
	for _, pb := range b.passes {
		off, size := b.offsets[device], b.sizes[device]
		for i := off; i < off+size; i++ {
			pb.bufferA[i] = 0
			pb.bufferB[i] = 0
		}
	}
}

// Migrate copies device state from an old buffer set into this one by device
// identity. oldIndex maps each device's new index to its index in the old
// layout, or -1 if it had no prior allocation (left zeroed). Old buffers are
// untouched; freeing them is the caller's business, after migration.
func (b *Buffers) Migrate(old *Buffers, oldIndex []int) {
	if old == nil {
		return
	}
	for newIdx, oldIdx := range oldIndex {
		if oldIdx < 0 || newIdx >= len(b.offsets) {
			continue
		}
		for pass := range b.passes {
			if !old.Enabled(pass) {
				continue
			}
			copySlice(b.Front(pass, newIdx), old.Front(pass, oldIdx))
			copySlice(b.Back(pass, newIdx), old.Back(pass, oldIdx))
		}
	}
}

func copySlice(dst, src []byte) {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	copy(dst[:n], src[:n])
}
