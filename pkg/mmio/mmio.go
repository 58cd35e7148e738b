// Package mmio provides access to memory-mapped peripheral registers.
package mmio

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Window is a block of 32 bit registers. Every access is a single atomic
// load or store, so accesses are neither cached nor reordered by the compiler.
type Window struct {
	mem   []byte
	regs  []uint32
	unmap func([]byte) error
}

// NewWindow returns a window backed by regular memory, e.g. for simulated
// peripherals.
func NewWindow(regs []uint32) *Window {
	return &Window{regs: regs}
}

// Len returns the size of the window in bytes.
func (w *Window) Len() int {
	return len(w.regs) * 4
}

// Read32 loads the register at the byte offset off.
func (w *Window) Read32(off uintptr) uint32 {
	return atomic.LoadUint32(w.reg(off))
}

// Write32 stores val into the register at the byte offset off.
func (w *Window) Write32(off uintptr, val uint32) {
	atomic.StoreUint32(w.reg(off), val)
}

func (w *Window) reg(off uintptr) *uint32 {
	if off%4 != 0 {
		panic(fmt.Sprintf("mmio: unaligned register offset %#x", off))
	}
	idx := off / 4
	if idx >= uintptr(len(w.regs)) {
		panic(fmt.Sprintf("mmio: register offset %#x outside of %#x byte window", off, w.Len()))
	}
	return &w.regs[idx]
}

// Close releases the mapping. Only the first call unmaps; later calls are no-ops.
func (w *Window) Close() error {
	mem, unmap := w.mem, w.unmap
	w.mem, w.regs, w.unmap = nil, nil, nil
	if mem == nil || unmap == nil {
		return nil
	}
	return unmap(mem)
}

// words reinterprets mapped bytes as 32 bit registers; mmap returns page
// aligned memory.
func words(mem []byte) []uint32 {
	if len(mem) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(unsafe.SliceData(mem))), len(mem)/4)
}
