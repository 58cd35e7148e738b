//go:build !linux

package uio

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by every device operation outside linux.
var ErrUnsupported = errors.New("UIO devices are only available on linux")

// Device is unavailable on this platform.
type Device struct{}

// Open always fails with an OpenError wrapping ErrUnsupported.
func Open(path string, _ int) (*Device, error) {
	return nil, &OpenError{Path: path, Err: ErrUnsupported}
}

// Registers returns nil, there is no register window.
func (*Device) Registers() Registers { return nil }

// Unmask returns ErrUnsupported.
func (*Device) Unmask() error { return ErrUnsupported }

// Wait returns ErrUnsupported without blocking.
func (*Device) Wait(context.Context) (uint32, error) { return 0, ErrUnsupported }

// Close is a no-op.
func (*Device) Close() error { return nil }
