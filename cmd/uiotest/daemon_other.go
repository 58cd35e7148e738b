//go:build !linux

package main

import "errors"

func isDaemonChild() bool {
	return false
}

func daemonize() (int, error) {
	return 0, errors.New("daemonizing is only supported on linux")
}
