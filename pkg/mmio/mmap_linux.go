//go:build linux

package mmio

import (
	"os"

	"golang.org/x/sys/unix"
)

// Map maps length bytes at offset 0 of file as a shared read/write register
// window.
func Map(file *os.File, length int) (*Window, error) {
	mem, err := unix.Mmap(
		int(file.Fd()),
		0,
		length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, err
	}
	return &Window{
		mem:   mem,
		regs:  words(mem),
		unmap: unix.Munmap,
	}, nil
}
