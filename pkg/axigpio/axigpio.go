package axigpio

import (
	"context"
	"fmt"
	"time"

	"github.com/uptime-induestries/uiotest/pkg/log"
	"github.com/uptime-induestries/uiotest/pkg/util"
	"go.uber.org/zap"
)

// Offset is a byte offset into the AXI GPIO register window.
type Offset uintptr

const (
	RegData  Offset = 0x000 // GPIO_DATA, channel 1 data
	RegTri   Offset = 0x004 // GPIO_TRI, channel 1 direction (1: input)
	RegGIER  Offset = 0x11C // global interrupt enable
	RegIPISR Offset = 0x120 // IP interrupt status, write-1-to-clear
	RegIPIER Offset = 0x128 // IP interrupt enable
)

const (
	// WindowSize is the size of the register window mapped from the UIO device.
	WindowSize = 0x10000

	GIEREnable uint32 = 1 << 31
	Channel1   uint32 = 1 << 0

	// DefaultSettleDelay is the time the peripheral gets after configuration
	// before interrupts are awaited.
	DefaultSettleDelay = 50 * time.Millisecond
)

func (o Offset) String() string {
	switch o {
	case RegData:
		return "GPIO_DATA"
	case RegTri:
		return "GPIO_TRI"
	case RegGIER:
		return "GIER"
	case RegIPISR:
		return "IP_ISR"
	case RegIPIER:
		return "IP_IER"
	default:
		return fmt.Sprintf("reg@%#x", uintptr(o))
	}
}

// Registers is the 32 bit register accessor the peripheral is driven through.
// *mmio.Window implements it.
type Registers interface {
	Read32(off uintptr) uint32
	Write32(off uintptr, val uint32)
}

// GPIOOpts configures a GPIO peripheral driver
type GPIOOpts struct {
	// SettleDelay is waited after the interrupt configuration has been written.
	// Zero means DefaultSettleDelay, a negative value skips the wait.
	SettleDelay time.Duration
	// Clock used for the settle delay, defaults to the real clock
	Clock util.Clock
}

// GPIO drives an AXI GPIO block configured as a single interrupting input on
// channel 1, bit 0.
type GPIO struct {
	regs  Registers
	opts  GPIOOpts
	clock util.Clock
}

func New(regs Registers, opts GPIOOpts) *GPIO {
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	clock := opts.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	return &GPIO{
		regs:  regs,
		opts:  opts,
		clock: clock,
	}
}

func (g *GPIO) read(off Offset) uint32 {
	return g.regs.Read32(uintptr(off))
}

func (g *GPIO) write(off Offset, val uint32) {
	g.regs.Write32(uintptr(off), val)
}

// Init configures bit 0 as an interrupting input. Global interrupts stay
// disabled until direction and enable bits are set, then the settle delay is
// awaited.
func (g *GPIO) Init(ctx context.Context) error {
	log.FromContext(ctx).Debug("Initializing AXI GPIO peripheral")

	g.write(RegGIER, 0)

	tri := g.read(RegTri) | Channel1
	g.write(RegTri, tri)

	ier := g.read(RegIPIER) | Channel1
	g.write(RegIPIER, ier)

	g.write(RegGIER, GIEREnable)
	globalInterruptEnabled.Set(1)

	log.FromContext(ctx).Debug("AXI GPIO configured",
		zap.String("tri", fmt.Sprintf("%#x", tri)),
		zap.String("ier", fmt.Sprintf("%#x", ier)),
		zap.Duration("settle", g.opts.SettleDelay),
	)

	return util.Sleep(ctx, g.clock, g.opts.SettleDelay)
}

// Acknowledge clears pending interrupt status bits and samples the data register.
func (g *GPIO) Acknowledge() (status uint32, data uint32) {
	status = g.read(RegIPISR)
	if status != 0 {
		g.write(RegIPISR, status)
		observeStatus(status)
	}

	data = g.read(RegData)
	dataValue.Set(float64(data))
	return status, data
}

// Quiesce disables interrupt generation globally.
func (g *GPIO) Quiesce() {
	g.write(RegGIER, 0)
	globalInterruptEnabled.Set(0)
}
