package main

import (
	"os"
	"os/exec"
	"syscall"
)

// daemonChildEnv marks the detached re-executed process
const daemonChildEnv = "UIOTEST_DAEMON_CHILD"

func isDaemonChild() bool {
	return os.Getenv(daemonChildEnv) == "1"
}

// daemonize re-executes the binary in a new session and returns the child PID.
func daemonize() (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}

	child := exec.Command(exe, os.Args[1:]...)
	child.Env = append(os.Environ(), daemonChildEnv+"=1")
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := child.Start(); err != nil {
		return 0, err
	}

	pid := child.Process.Pid
	return pid, child.Process.Release()
}
