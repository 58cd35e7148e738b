package main

import (
	"fmt"
	"os"
)

// usageError is a bad or incomplete command line; usage is printed with it.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// ForkError reports that the detached background process could not be started.
type ForkError struct {
	Err error
}

func (e *ForkError) Error() string { return fmt.Sprintf("failed to daemonize: %v", e.Err) }
func (e *ForkError) Unwrap() error { return e.Err }

// signalError is the cancellation cause when a signal stops the tester.
type signalError struct {
	sig os.Signal
}

func (e *signalError) Error() string { return fmt.Sprintf("signal %s received", e.sig) }

// loggedError has already been reported through the logger.
type loggedError struct {
	err error
}

func (e *loggedError) Error() string { return e.err.Error() }
func (e *loggedError) Unwrap() error { return e.err }
