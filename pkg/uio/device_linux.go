//go:build linux

package uio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/uptime-induestries/uiotest/pkg/mmio"
	"golang.org/x/sys/unix"
)

// fails if Device does not implement InterruptDevice
var _ InterruptDevice = &Device{}

// Device is an opened UIO device with its mapped register window.
type Device struct {
	path string
	file *os.File
	fd   int
	regs *mmio.Window

	// wakeFd is an eventfd that interrupts a blocked Wait
	wakeFd int

	closeOnce sync.Once
	closeErr  error
}

// Open opens the UIO device at path and maps size bytes of its first memory
// region. On a mapping failure the device file is closed again.
func Open(path string, size int) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	regs, err := mmio.Map(file, size)
	if err != nil {
		file.Close()
		return nil, &MapError{Path: path, Size: size, Err: err}
	}

	dev, err := newDevice(path, file, regs)
	if err != nil {
		regs.Close()
		file.Close()
		return nil, err
	}
	return dev, nil
}

func newDevice(path string, file *os.File, regs *mmio.Window) (*Device, error) {
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to create eventfd: %w", err)
	}

	return &Device{
		path:   path,
		file:   file,
		fd:     int(file.Fd()),
		regs:   regs,
		wakeFd: wakeFd,
	}, nil
}

func (d *Device) Registers() Registers {
	return d.regs
}

// Unmask writes the unmask word to the device file.
func (d *Device) Unmask() error {
	buf := make([]byte, eventSize)
	binary.NativeEndian.PutUint32(buf, 1)

	n, err := retryEINTR(func() (int, error) { return unix.Write(d.fd, buf) })
	if err != nil {
		return fmt.Errorf("failed to unmask interrupt on %s: %w", d.path, err)
	}
	if n < eventSize {
		return &ShortIOError{Op: "unmask", N: n, Want: eventSize}
	}
	return nil
}

// Wait blocks until the device becomes readable and returns the interrupt
// event count. Cancelling ctx wakes a blocked Wait, which then returns
// ctx.Err().
func (d *Device) Wait(ctx context.Context) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	stop := context.AfterFunc(ctx, d.wake)
	defer stop()

	fds := []unix.PollFd{
		{Fd: int32(d.fd), Events: unix.POLLIN},
		{Fd: int32(d.wakeFd), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(fds, -1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to poll %s: %w", d.path, err)
		}
		if fds[1].Revents&unix.POLLIN != 0 {
			d.drainWake()
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if fds[0].Revents&unix.POLLIN != 0 {
			break
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return 0, fmt.Errorf("UIO device %s failed (revents %#x)", d.path, fds[0].Revents)
		}
	}

	buf := make([]byte, eventSize)
	n, err := retryEINTR(func() (int, error) { return unix.Read(d.fd, buf) })
	if err != nil {
		return 0, fmt.Errorf("failed to read interrupt count from %s: %w", d.path, err)
	}
	if n < eventSize {
		return 0, &ShortIOError{Op: "wait", N: n, Want: eventSize}
	}
	return binary.NativeEndian.Uint32(buf), nil
}

func (d *Device) wake() {
	buf := make([]byte, 8)
	binary.NativeEndian.PutUint64(buf, 1)
	_, _ = unix.Write(d.wakeFd, buf)
}

func (d *Device) drainWake() {
	buf := make([]byte, 8)
	_, _ = unix.Read(d.wakeFd, buf)
}

// Close unmaps the register window, then closes the device file. Only the
// first call releases anything.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = errors.Join(
			d.regs.Close(),
			d.file.Close(),
			unix.Close(d.wakeFd),
		)
	})
	return d.closeErr
}

func retryEINTR(fn func() (int, error)) (int, error) {
	for {
		n, err := fn()
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return n, err
	}
}
