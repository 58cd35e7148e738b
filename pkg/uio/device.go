// Package uio talks to a Linux Userspace I/O device: it maps the register
// window and implements the unmask/wait interrupt protocol on the device file.
package uio

import (
	"context"
)

// eventSize is the size of the unmask word and of the event count; the UIO
// ABI fixes both at 32 bit.
const eventSize = 4

// Registers is offset indexed access to the mapped register window.
// *mmio.Window implements it.
type Registers interface {
	Read32(off uintptr) uint32
	Write32(off uintptr, val uint32)
}

// InterruptDevice is the interrupt side of a UIO device together with its
// register window.
type InterruptDevice interface {
	// Registers returns the mapped register window
	Registers() Registers
	// Unmask re-arms interrupt delivery
	Unmask() error
	// Wait blocks until the kernel reports an interrupt and returns the event count
	Wait(ctx context.Context) (uint32, error)
	// Close unmaps the register window and closes the device file
	Close() error
}
