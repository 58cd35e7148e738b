package uio

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// fails if DeviceMock does not implement InterruptDevice
var _ InterruptDevice = &DeviceMock{}

// DeviceMock implements a mock for the InterruptDevice interface
type DeviceMock struct {
	mock.Mock
}

func (m *DeviceMock) Registers() Registers {
	args := m.Called()
	return args.Get(0).(Registers)
}

func (m *DeviceMock) Unmask() error {
	args := m.Called()
	return args.Error(0)
}

func (m *DeviceMock) Wait(ctx context.Context) (uint32, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint32), args.Error(1)
}

func (m *DeviceMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
