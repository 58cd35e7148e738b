package axigpio

import (
	"github.com/stretchr/testify/mock"
)

// fails if RegistersMock does not implement Registers
var _ Registers = &RegistersMock{}

// RegistersMock implements a mock for the Registers interface
type RegistersMock struct {
	mock.Mock
}

func (m *RegistersMock) Read32(off uintptr) uint32 {
	args := m.Called(off)
	return args.Get(0).(uint32)
}

func (m *RegistersMock) Write32(off uintptr, val uint32) {
	m.Called(off, val)
}
