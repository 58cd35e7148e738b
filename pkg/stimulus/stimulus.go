// Package stimulus drives a GPIO line wired back to the peripheral input so
// interrupts can be produced without external hardware.
package stimulus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptime-induestries/uiotest/pkg/eventbus"
	"github.com/uptime-induestries/uiotest/pkg/log"
	"github.com/uptime-induestries/uiotest/pkg/util"
	"github.com/warthog618/gpiod"
	"go.uber.org/zap"
)

const (
	DefaultInterval   = time.Second
	DefaultPulseWidth = time.Millisecond
)

// Config configures the loopback pulse generator
type Config struct {
	// Chip is the GPIO character device, e.g. gpiochip0. Empty disables the stimulus.
	Chip string `mapstructure:"chip"`
	// Line is the offset of the output line on Chip
	Line int `mapstructure:"line"`
	// Interval between rising edges
	Interval time.Duration `mapstructure:"interval"`
	// PulseWidth is how long the line is held high
	PulseWidth time.Duration `mapstructure:"pulse_width"`
}

func (c Config) Enabled() bool {
	return c.Chip != ""
}

// Line is an output line. *gpiod.Line implements it.
type Line interface {
	SetValue(value int) error
	Close() error
}

// Pulser toggles a line periodically and correlates every pulse with the next
// interrupt event seen on the bus.
type Pulser struct {
	cfg   Config
	line  Line
	chip  *gpiod.Chip
	clock util.Clock

	bus   eventbus.EventBus
	topic string
}

// Open requests the configured line as an output driven low.
func Open(cfg Config, bus eventbus.EventBus, topic string) (*Pulser, error) {
	chip, err := gpiod.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Chip, err)
	}
	line, err := chip.RequestLine(cfg.Line, gpiod.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("failed to request line %d on %s: %w", cfg.Line, cfg.Chip, err)
	}

	p := New(cfg, line, util.RealClock{}, bus, topic)
	p.chip = chip
	return p, nil
}

// New returns a Pulser on an already requested line.
func New(cfg Config, line Line, clock util.Clock, bus eventbus.EventBus, topic string) *Pulser {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PulseWidth <= 0 {
		cfg.PulseWidth = DefaultPulseWidth
	}
	return &Pulser{
		cfg:   cfg,
		line:  line,
		clock: clock,
		bus:   bus,
		topic: topic,
	}
}

// Run pulses the line until ctx is done. The line is left low. Interrupt
// events published on the bus while a pulse is outstanding yield a latency
// observation.
func (p *Pulser) Run(ctx context.Context) (err error) {
	sub := p.bus.Subscribe(p.topic, 16, eventbus.MatchType[timestamped])
	defer sub.Unsubscribe()

	defer func() {
		if lowErr := p.line.SetValue(0); lowErr != nil {
			err = errors.Join(err, lowErr)
		}
	}()

	log.FromContext(ctx).Info("Starting stimulus",
		zap.String("chip", p.cfg.Chip),
		zap.Int("line", p.cfg.Line),
		zap.Duration("interval", p.cfg.Interval),
		zap.Duration("pulse_width", p.cfg.PulseWidth),
	)

	var lastPulse time.Time
	for {
		next := p.clock.After(p.cfg.Interval)
	wait:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg, ok := <-sub.C():
				if !ok {
					return ctx.Err()
				}
				p.observe(ctx, msg, &lastPulse)
			case <-next:
				break wait
			}
		}

		rise := p.clock.Now()
		if err := p.pulse(ctx); err != nil {
			return err
		}
		lastPulse = rise
	}
}

func (p *Pulser) pulse(ctx context.Context) error {
	if err := p.line.SetValue(1); err != nil {
		return fmt.Errorf("failed to drive stimulus line high: %w", err)
	}
	if err := util.Sleep(ctx, p.clock, p.cfg.PulseWidth); err != nil {
		return err
	}
	if err := p.line.SetValue(0); err != nil {
		return fmt.Errorf("failed to drive stimulus line low: %w", err)
	}
	pulseCount.Inc()
	return nil
}

// timestamped is an event carrying the time it happened
type timestamped interface {
	Timestamp() time.Time
}

// observe records the loopback latency for the first interrupt after a pulse.
func (p *Pulser) observe(ctx context.Context, msg any, lastPulse *time.Time) {
	ts, ok := msg.(timestamped)
	if !ok || lastPulse.IsZero() {
		return
	}
	latency := ts.Timestamp().Sub(*lastPulse)
	*lastPulse = time.Time{}
	if latency < 0 {
		return
	}
	loopbackLatency.Observe(latency.Seconds())
	log.FromContext(ctx).Debug("Stimulus loopback", zap.Duration("latency", latency))
}

// Close releases the line and the chip.
func (p *Pulser) Close() error {
	errs := []error{p.line.Close()}
	if p.chip != nil {
		errs = append(errs, p.chip.Close())
	}
	return errors.Join(errs...)
}
