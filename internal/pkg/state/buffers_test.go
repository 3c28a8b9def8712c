package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferLayoutAndAlignment(t *testing.T) {
	b := NewBuffers([]Pass{PassDynamic, PassFixed}, []uint32{5, 8, 1})

	assert.Equal(t, []uint32{0, 8, 16}, b.Offsets())
	assert.Equal(t, 8, len(b.Front(PassDynamic, 0))) // 5 rounded up
	assert.Equal(t, 8, len(b.Front(PassDynamic, 1)))
	assert.Equal(t, 4, len(b.Front(PassDynamic, 2)))
	assert.Equal(t, []Pass{PassDynamic, PassFixed}, b.Passes())
}

func TestBeforeRenderOwnsNoStorage(t *testing.T) {
	b := NewBuffers([]Pass{PassDynamic, PassBeforeRender}, []uint32{4})

	assert.Equal(t, false, b.Enabled(PassBeforeRender))
	var nilBytes []byte
	assert.Equal(t, nilBytes, b.Front(PassBeforeRender, 0))
}

func TestSwapIsPerDevice(t *testing.T) {
	b := NewBuffers([]Pass{PassDynamic}, []uint32{4, 4})

	b.Front(PassDynamic, 0)[0] = 0x11
	b.Front(PassDynamic, 1)[0] = 0x22

	b.Swap(PassDynamic, 0)

	// device 0 now fronts its other copy, device 1 is untouched
	assert.Equal(t, byte(0), b.Front(PassDynamic, 0)[0])
	assert.Equal(t, byte(0x11), b.Back(PassDynamic, 0)[0])
	assert.Equal(t, byte(0x22), b.Front(PassDynamic, 1)[0])
}

func TestZeroClearsBothCopiesEverywhere(t *testing.T) {
	b := NewBuffers([]Pass{PassDynamic, PassFixed}, []uint32{4, 4})

	for _, pass := range b.Passes() {
		b.Front(pass, 0)[1] = 0xff
		b.Back(pass, 0)[1] = 0xff
		b.Front(pass, 1)[1] = 0x77
	}

	b.Zero(0)

	for _, pass := range b.Passes() {
		assert.Equal(t, byte(0), b.Front(pass, 0)[1])
		assert.Equal(t, byte(0), b.Back(pass, 0)[1])
		assert.Equal(t, byte(0x77), b.Front(pass, 1)[1])
	}
}

func TestMigratePreservesSurvivorBytes(t *testing.T) {
	old := NewBuffers([]Pass{PassDynamic, PassFixed}, []uint32{4, 4, 4})
	for i := 0; i < 3; i++ {
		old.Front(PassDynamic, i)[0] = byte(0x10 + i)
		old.Back(PassDynamic, i)[0] = byte(0x20 + i)
		old.Front(PassFixed, i)[0] = byte(0x30 + i)
	}
	old.Swap(PassDynamic, 2) // device 2 fronted its B copy

	// device 1 removed, survivors compact down
	next := NewBuffers([]Pass{PassDynamic, PassFixed}, []uint32{4, 4})
	next.Migrate(old, []int{0, 2})

	assert.Equal(t, byte(0x10), next.Front(PassDynamic, 0)[0])
	assert.Equal(t, byte(0x20), next.Back(PassDynamic, 0)[0])
	assert.Equal(t, byte(0x30), next.Front(PassFixed, 0)[0])
	// migration follows the front/back roles, not the raw copies
	assert.Equal(t, byte(0x22), next.Front(PassDynamic, 1)[0])
	assert.Equal(t, byte(0x12), next.Back(PassDynamic, 1)[0])
}

func TestMigrateLeavesNewDevicesZeroed(t *testing.T) {
	old := NewBuffers([]Pass{PassDynamic}, []uint32{4})
	old.Front(PassDynamic, 0)[0] = 0xaa

	next := NewBuffers([]Pass{PassDynamic}, []uint32{4, 4})
	next.Migrate(old, []int{0, -1})

	assert.Equal(t, byte(0xaa), next.Front(PassDynamic, 0)[0])
	assert.Equal(t, byte(0), next.Front(PassDynamic, 1)[0])
	assert.Equal(t, byte(0), next.Back(PassDynamic, 1)[0])
}

func TestSaveRestoreBuffers(t *testing.T) {
	b := NewBuffers([]Pass{PassDynamic, PassFixed}, []uint32{4})
	b.Front(PassDynamic, 0)[0] = 0x5a
	b.Swap(PassFixed, 0)
	b.SetActive(PassFixed)

	restored, err := RestoreBuffers(b.Save())
	assert.Equal(t, nil, err)
	assert.Equal(t, byte(0x5a), restored.Front(PassDynamic, 0)[0])
	assert.Equal(t, b.Offsets(), restored.Offsets())
	assert.Equal(t, PassFixed, restored.Active())
	// front/back roles survive
	assert.Equal(t, b.Front(PassFixed, 0), restored.Front(PassFixed, 0))
}
