package uio

import (
	"fmt"
)

// OpenError reports a device file that could not be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open UIO device %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// MapError reports a register window that could not be mapped.
type MapError struct {
	Path string
	Size int
	Err  error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("failed to map %#x bytes of %s: %v", e.Size, e.Path, e.Err)
}

func (e *MapError) Unwrap() error { return e.Err }

// ShortIOError reports a transfer on the device file that moved fewer bytes
// than the UIO ABI requires. It indicates a broken binding and is not retried.
type ShortIOError struct {
	Op   string
	N    int
	Want int
}

func (e *ShortIOError) Error() string {
	return fmt.Sprintf("short %s on UIO device: %d of %d bytes", e.Op, e.N, e.Want)
}
