package util

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockClock implements the Clock interface using the testify mock package.
type MockClock struct {
	mock.Mock
}

func (mc *MockClock) Now() time.Time {
	args := mc.Called()
	return args.Get(0).(time.Time)
}

// After returns the channel given to Return; both directions are accepted.
func (mc *MockClock) After(d time.Duration) <-chan time.Time {
	args := mc.Called(d)
	switch ch := args.Get(0).(type) {
	case chan time.Time:
		return ch
	case <-chan time.Time:
		return ch
	default:
		panic("MockClock.After: return value is not a time channel")
	}
}

// Elapsed is a timer channel that has already fired at t.
func Elapsed(t time.Time) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- t
	return ch
}
