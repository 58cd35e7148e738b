package mmio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uptime-induestries/uiotest/pkg/mmio"
)

func TestWindow_ReadWrite(t *testing.T) {
	t.Parallel()

	backing := make([]uint32, 4)
	w := mmio.NewWindow(backing)
	assert.Equal(t, 16, w.Len())

	w.Write32(0x4, 0xdeadbeef)
	assert.Equal(t, uint32(0xdeadbeef), backing[1])
	assert.Equal(t, uint32(0xdeadbeef), w.Read32(0x4))

	backing[3] = 42
	assert.Equal(t, uint32(42), w.Read32(0xc))
}

func TestWindow_InvalidOffsetsPanic(t *testing.T) {
	t.Parallel()

	w := mmio.NewWindow(make([]uint32, 2))

	assert.Panics(t, func() { w.Read32(0x2) }, "unaligned read")
	assert.Panics(t, func() { w.Write32(0x1, 0) }, "unaligned write")
	assert.Panics(t, func() { w.Read32(0x8) }, "read past the window")
	assert.Panics(t, func() { w.Write32(0x100, 0) }, "write past the window")
}

func TestWindow_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	w := mmio.NewWindow(make([]uint32, 1))
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
	assert.Equal(t, 0, w.Len())
}
