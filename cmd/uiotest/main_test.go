package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptime-induestries/uiotest/pkg/uio"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd, _ := newCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMissingDeviceIsUsageError(t *testing.T) {
	_, err := execute(t)

	var usageErr *usageError
	require.ErrorAs(t, err, &usageErr)
	assert.Contains(t, err.Error(), "no UIO device")
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	_, err := execute(t, "-x")

	var usageErr *usageError
	require.ErrorAs(t, err, &usageErr)
}

func TestPositionalArgumentsAreRejected(t *testing.T) {
	_, err := execute(t, "-d", "/dev/uio0", "extra")
	assert.Error(t, err)
}

func TestMissingDeviceNodeFails(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "uio9")

	_, err := execute(t, "-d", missing, "--settle-delay", "1ms")

	require.Error(t, err)
	var logged *loggedError
	require.ErrorAs(t, err, &logged)
	var openErr *uio.OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, missing, openErr.Path)
}

func TestLoadConfigFromFlags(t *testing.T) {
	cmd, v := newCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"-d", "3",
		"--settle-delay", "10ms",
		"--stimulus-chip", "gpiochip1",
		"--stimulus-line", "7",
		"--stimulus-pulse-width", "2ms",
	}))

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "/dev/uio3", cfg.Device)
	assert.Equal(t, 10*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, "gpiochip1", cfg.Stimulus.Chip)
	assert.Equal(t, 7, cfg.Stimulus.Line)
	assert.Equal(t, time.Second, cfg.Stimulus.Interval)
	assert.Equal(t, 2*time.Millisecond, cfg.Stimulus.PulseWidth)
}

func TestLoadConfigFromEnvAndFile(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "uiotest.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
device: /dev/uio1
settle_delay: 20ms
stimulus:
  chip: gpiochip0
  interval: 250ms
`), 0o600))
	t.Setenv("UIOTEST_STIMULUS_LINE", "12")

	cmd, v := newCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--config", cfgFile}))

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "/dev/uio1", cfg.Device)
	assert.Equal(t, 20*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, "gpiochip0", cfg.Stimulus.Chip)
	assert.Equal(t, 12, cfg.Stimulus.Line)
	assert.Equal(t, 250*time.Millisecond, cfg.Stimulus.Interval)
}

func TestDeviceFromEnvironment(t *testing.T) {
	t.Setenv("UIOTEST_DEVICE", "uio2")

	cmd, v := newCommand()
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/dev/uio2", cfg.Device)
}

func TestListenUnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uiotest.sock")

	l, err := listen("unix://" + path)
	require.NoError(t, err)
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, l.Close())
	require.FileExists(t, path)

	// a stale socket file does not prevent listening again
	l, err = listen("unix://" + path)
	require.NoError(t, err)
	assert.Equal(t, "unix", l.Addr().Network())
	require.NoError(t, l.Close())
}

// not parallel: interrupts the whole test process
func TestInterruptExitsCleanly(t *testing.T) {
	if _, err := os.Stat("/dev/zero"); err != nil {
		t.Skip("/dev/zero not available")
	}

	// keeps the default SIGINT action away from the test binary
	guard := make(chan os.Signal, 1)
	signal.Notify(guard, os.Interrupt)
	defer signal.Stop(guard)

	// /dev/zero maps, accepts the unmask write and reports a zero count forever
	done := make(chan error, 1)
	go func() {
		_, err := execute(t, "-d", "/dev/zero", "--settle-delay", "1ms")
		done <- err
	}()

	// the handler is installed asynchronously, so keep interrupting until it reacts
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case err := <-done:
			assert.NoError(t, err)
			return
		case <-ticker.C:
			require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
		case <-timeout:
			t.Fatal("tester did not stop on SIGINT")
		}
	}
}

func TestLoopFailureIsReported(t *testing.T) {
	// a regular file maps and yields counts until the read position runs past its end
	path := filepath.Join(t.TempDir(), "uio0")
	require.NoError(t, os.WriteFile(path, make([]byte, 0x10000), 0o600))

	_, err := execute(t, "-d", path, "--settle-delay", "1ms")

	require.Error(t, err)
	var logged *loggedError
	require.ErrorAs(t, err, &logged)
	var shortErr *uio.ShortIOError
	require.ErrorAs(t, err, &shortErr)
	assert.Equal(t, "wait", shortErr.Op)
}
