package tester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/uptime-induestries/uiotest/pkg/axigpio"
	"github.com/uptime-induestries/uiotest/pkg/eventbus"
	"github.com/uptime-induestries/uiotest/pkg/log"
	"github.com/uptime-induestries/uiotest/pkg/stimulus"
	"github.com/uptime-induestries/uiotest/pkg/uio"
	"github.com/uptime-induestries/uiotest/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	interruptCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "uiotest",
		Name:      "interrupts_handled_count",
		Help:      "Interrupts reported by the UIO device and acknowledged on the peripheral",
	})

	missedInterruptCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "uiotest",
		Name:      "interrupts_missed_count",
		Help:      "Interrupts the kernel counted between two handled ones",
	})
)

const (
	// TopicPhase carries a PhaseEvent for every loop phase transition
	TopicPhase = "tester:phase"
	// TopicInterrupt carries an InterruptEvent for every handled interrupt
	TopicInterrupt = "tester:interrupt"
)

type PhaseEvent struct {
	Phase Phase
}

type InterruptEvent struct {
	// Count is the cumulative event count reported by the kernel
	Count  uint32
	Missed uint32
	Status uint32
	Data   uint32
	Time   time.Time
}

func (e InterruptEvent) Timestamp() time.Time {
	return e.Time
}

type Config struct {
	// Device is the UIO device node, e.g. /dev/uio0
	Device string `mapstructure:"device"`
	// SettleDelay is waited after the peripheral has been configured. Zero
	// selects the 50ms default, a negative value disables the wait.
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	// Stimulus optionally drives a GPIO line looped back to the peripheral input
	Stimulus stimulus.Config `mapstructure:"stimulus"`
}

// Opener acquires the UIO device behind path
type Opener func(path string) (uio.InterruptDevice, error)

// OpenDevice opens a UIO device and maps the AXI GPIO register window.
func OpenDevice(path string) (uio.InterruptDevice, error) {
	dev, err := uio.Open(path, axigpio.WindowSize)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// Tester exercises the interrupt path of a UIO bound AXI GPIO peripheral.
type Tester interface {
	// Run acquires the device, configures the peripheral and handles
	// interrupts until the context is canceled or an error occurs. The device
	// is released on every return path.
	Run(ctx context.Context) error
}

type Option func(*uioTester)

func WithOpener(opener Opener) Option {
	return func(t *uioTester) { t.opener = opener }
}

func WithClock(clock util.Clock) Option {
	return func(t *uioTester) { t.clock = clock }
}

func WithEventBus(bus eventbus.EventBus) Option {
	return func(t *uioTester) { t.bus = bus }
}

// uioTester is the implementation of the Tester interface
type uioTester struct {
	cfg    Config
	opener Opener
	clock  util.Clock
	bus    eventbus.EventBus
	state  *testerState
}

func NewTester(cfg Config, opts ...Option) Tester {
	t := &uioTester{
		cfg:    cfg,
		opener: OpenDevice,
		clock:  util.RealClock{},
		bus:    eventbus.New(),
		state:  NewTesterState(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *uioTester) Run(origCtx context.Context) (err error) {
	ctx := log.With(origCtx, zap.String("device", t.cfg.Device))
	log.FromContext(ctx).Info("Starting UIO tester")

	t.setPhase(PhaseIdle)
	defer t.setPhase(PhaseStopped)

	t.logDeviceInfo(ctx)

	log.FromContext(ctx).Debug("Opening UIO device")
	dev, err := t.opener(t.cfg.Device)
	if err != nil {
		return err
	}

	gpio := axigpio.New(dev.Registers(), axigpio.GPIOOpts{
		SettleDelay: t.cfg.SettleDelay,
		Clock:       t.clock,
	})
	configured := false
	defer func() {
		if cleanupErr := t.cleanup(ctx, dev, gpio, configured); cleanupErr != nil {
			err = errors.Join(err, cleanupErr)
		}
	}()

	configured = true
	if err := gpio.Init(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if t.cfg.Stimulus.Enabled() {
		pulser, err := stimulus.Open(t.cfg.Stimulus, t.bus, TopicInterrupt)
		if err != nil {
			return err
		}
		defer func() {
			if err := pulser.Close(); err != nil {
				log.FromContext(ctx).Error("Failed to release stimulus line", zap.Error(err))
			}
		}()
		group.Go(func() error {
			return pulser.Run(groupCtx)
		})
	}

	group.Go(func() error {
		return t.loop(groupCtx, dev, gpio)
	})

	return group.Wait()
}

// loop runs the unmask, wait, acknowledge cycle. It only returns on error or
// cancellation; the context is checked once per cycle.
func (t *uioTester) loop(ctx context.Context, dev uio.InterruptDevice, gpio *axigpio.GPIO) error {
	log.FromContext(ctx).Info("Waiting for interrupts")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		t.setPhase(PhaseUnmasking)
		if err := dev.Unmask(); err != nil {
			return err
		}

		t.setPhase(PhaseWaiting)
		count, err := dev.Wait(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			continue
		}

		t.setPhase(PhaseHandling)
		t.handleInterrupt(ctx, gpio, count)
	}
}

func (t *uioTester) handleInterrupt(ctx context.Context, gpio *axigpio.GPIO, count uint32) {
	now := t.clock.Now()
	missed := t.state.RegisterInterrupt(count, now)

	status, data := gpio.Acknowledge()

	interruptCounter.Inc()
	log.FromContext(ctx).Info("Interrupt was detected",
		zap.Uint32("count", count),
		zap.String("status", fmt.Sprintf("%#x", status)),
		zap.String("data", fmt.Sprintf("%#x", data)),
	)
	if missed > 0 {
		missedInterruptCounter.Add(float64(missed))
		log.FromContext(ctx).Warn("Interrupts were missed", zap.Uint32("missed", missed))
	}

	t.bus.Publish(TopicInterrupt, InterruptEvent{
		Count:  count,
		Missed: missed,
		Status: status,
		Data:   data,
		Time:   now,
	})
}

// cleanup disables the peripheral interrupt if it was configured and releases
// the device. It runs with a possibly canceled context.
func (t *uioTester) cleanup(ctx context.Context, dev uio.InterruptDevice, gpio *axigpio.GPIO, configured bool) error {
	log.FromContext(ctx).Info("Exiting, releasing UIO device",
		zap.Uint64("handled", t.state.Handled()),
		zap.Uint64("missed", t.state.Missed()),
	)
	if configured {
		gpio.Quiesce()
	}
	if err := dev.Close(); err != nil {
		log.FromContext(ctx).Error("Failed to release UIO device", zap.Error(err))
		return err
	}
	return nil
}

func (t *uioTester) setPhase(phase Phase) {
	t.state.RegisterPhase(phase)
	t.bus.Publish(TopicPhase, PhaseEvent{Phase: phase})
}

func (t *uioTester) logDeviceInfo(ctx context.Context) {
	info, err := uio.Lookup(t.cfg.Device)
	if err != nil {
		log.FromContext(ctx).Debug("No sysfs information for device", zap.Error(err))
		return
	}

	fields := []zap.Field{
		zap.String("name", info.Name),
		zap.String("version", info.Version),
	}
	if len(info.Maps) > 0 {
		fields = append(fields,
			zap.String("map0_addr", fmt.Sprintf("%#x", info.Maps[0].Addr)),
			zap.String("map0_size", fmt.Sprintf("%#x", info.Maps[0].Size)),
		)
	}
	log.FromContext(ctx).Info("Found UIO device", fields...)

	if len(info.Maps) == 0 || info.Maps[0].Size < axigpio.WindowSize {
		log.FromContext(ctx).Warn("UIO memory region is smaller than the AXI GPIO register window",
			zap.String("window", fmt.Sprintf("%#x", axigpio.WindowSize)),
		)
	}
}
