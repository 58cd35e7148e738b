package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uptime-induestries/uiotest/internal/tester"
	"github.com/uptime-induestries/uiotest/pkg/axigpio"
	"github.com/uptime-induestries/uiotest/pkg/stimulus"
	"github.com/uptime-induestries/uiotest/pkg/uio"
)

const version = "0.1"

// flag name -> configuration key
var configKeys = map[string]string{
	"device":               "device",
	"daemonize":            "daemonize",
	"debug":                "debug",
	"metrics-addr":         "metrics_addr",
	"grpc-addr":            "grpc_addr",
	"settle-delay":         "settle_delay",
	"stimulus-chip":        "stimulus.chip",
	"stimulus-line":        "stimulus.line",
	"stimulus-interval":    "stimulus.interval",
	"stimulus-pulse-width": "stimulus.pulse_width",
}

// newCommand builds the root command and the configuration bound to its flags.
func newCommand() (*cobra.Command, *viper.Viper) {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "uiotest -d <uio_device_path> [-D]",
		Short:         "uiotest exercises the interrupt path of a UIO bound AXI GPIO peripheral",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return run(cmd, v, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("device", "d", "", "UIO device to test, e.g. /dev/uio0 (uio0 and 0 are accepted as well)")
	flags.BoolP("daemonize", "D", false, "detach and keep testing in the background")
	flags.String("config", "", "configuration file")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9666")
	flags.String("grpc-addr", "", "serve the gRPC health service on this address, e.g. unix:///tmp/uiotest.sock")
	flags.Duration("settle-delay", axigpio.DefaultSettleDelay, "delay after configuring the peripheral (negative disables it)")
	flags.String("stimulus-chip", "", "GPIO chip of a line looped back to the peripheral input, e.g. gpiochip0")
	flags.Int("stimulus-line", 0, "offset of the stimulus line on the stimulus chip")
	flags.Duration("stimulus-interval", stimulus.DefaultInterval, "time between stimulus pulses")
	flags.Duration("stimulus-pulse-width", stimulus.DefaultPulseWidth, "stimulus pulse width")

	for flag, key := range configKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	if err := v.BindPFlag("config", flags.Lookup("config")); err != nil {
		panic(err)
	}
	v.SetEnvPrefix("UIOTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	return cmd, v
}

// loadConfig merges flags, environment and the optional config file.
func loadConfig(v *viper.Viper) (tester.Config, error) {
	var cfg tester.Config

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Device == "" {
		return cfg, &usageError{err: errors.New("no UIO device given")}
	}
	cfg.Device = uio.ResolvePath(cfg.Device)

	return cfg, nil
}
