// Package xio drives the memory mapped GPIO, interrupt and pulse counter block found in the
// plum-gpio, xioirq and Magnolia2 DIO FPGA designs.
//
// A Controller owns one register window. It demultiplexes the block's single parent interrupt
// into per-line events, emulates both-edge triggering on hardware that only selects one edge
// at a time, and exposes the counters and debounce filters. Every register read-modify-write
// runs under one interrupt-safe lock.
package xio

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/centurysys/linux-kernel-MAE-sub003/logging"
	"github.com/centurysys/linux-kernel-MAE-sub003/mmio"
)

var errClosed = errors.New("xio: controller closed")

// Config describes one controller instance.
type Config struct {
	Variant Variant
	Window  mmio.Window
	// IRQBase is the downstream interrupt number of line 0; line n is IRQBase+n.
	IRQBase int
	// Dispatcher receives demultiplexed events. It may also be set later with SetDispatcher.
	Dispatcher Dispatcher
	// Logger defaults to logging.Global().
	Logger logging.Logger
}

// A Dispatcher receives the events found by HandleIRQ. Dispatch is called outside the
// controller lock, in ascending line order, from the goroutine running the handler.
type Dispatcher interface {
	Dispatch(ev PendingEvent)
}

// DispatcherFunc adapts a function to a Dispatcher.
type DispatcherFunc func(ev PendingEvent)

// Dispatch calls f(ev).
func (f DispatcherFunc) Dispatch(ev PendingEvent) {
	f(ev)
}

type lineState struct {
	state  EdgeState
	masked bool
	wakeup bool
}

// Controller is one xio block.
type Controller struct {
	variant Variant
	layout  mmio.Layout
	window  mmio.Window
	regs    mmio.Registers
	release func()
	irqBase int
	logger  logging.Logger

	mu         irqLock
	lines      []lineState
	dispatcher Dispatcher

	fault     atomic.Error
	faultOnce sync.Once
	closed    atomic.Bool
	stats     stats
}

// New claims cfg.Window and resets the block. It fails with mmio.ErrWindowBusy if another
// controller already owns the window.
func New(cfg Config) (*Controller, error) {
	if cfg.Window == nil {
		return nil, errors.New("xio: nil register window")
	}
	v := cfg.Variant
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if err := v.Layout.Validate(cfg.Window.Size(), v.RegBytes, v.Counters); err != nil {
		return nil, errors.Wrapf(err, "variant %q", v.Name)
	}
	release, err := mmio.Claim(cfg.Window)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Global()
	}
	regs := mmio.NewBank8(cfg.Window)
	if v.RegBytes == 2 {
		regs = mmio.NewBank16(cfg.Window)
	}

	c := &Controller{
		variant:    v,
		layout:     v.Layout,
		window:     cfg.Window,
		regs:       regs,
		release:    release,
		irqBase:    cfg.IRQBase,
		logger:     logger,
		lines:      make([]lineState, v.Lines),
		dispatcher: cfg.Dispatcher,
	}
	if err := c.Init(); err != nil {
		release()
		return nil, err
	}
	return c, nil
}

// Init returns the block to its reset state: every interrupt masked and acknowledged, edge
// selects cleared, counters zeroed and disabled, filters off. Every line becomes Disabled.
func (c *Controller) Init() error {
	if err := c.check(); err != nil {
		return err
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)

	l := c.layout
	type step struct {
		op  string
		off uint32
		val uint32
	}
	steps := []step{
		{"init enable", l.IntEnable, 0},
		{"init edge select", l.EdgeSelect, 0},
		{"init status", l.IntStatus, c.variant.lineMask()},
	}
	if c.variant.HasFilter {
		steps = append(steps, step{"init filter", l.Filter, 0})
	}
	if n := c.variant.Counters; n > 0 {
		steps = append(steps,
			step{"init counter control", l.CounterControl, 0},
			step{"init match enable", l.MatchEnable, 0},
		)
		for i := 0; i < n; i++ {
			steps = append(steps,
				step{"init count", l.Count(i), 0},
				step{"init compare", l.Compare(i), 0},
			)
		}
		steps = append(steps,
			step{"init match status", l.MatchStatus, c.variant.counterMask()},
			step{"init overflow", l.Overflow, c.variant.counterMask()},
		)
	}
	for _, s := range steps {
		if err := c.write(s.op, s.off, s.val); err != nil {
			return err
		}
	}
	for i := range c.lines {
		c.lines[i] = lineState{}
	}
	return nil
}

// Close masks every interrupt, gives up the window and closes it.
func (c *Controller) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if c.fault.Load() == nil {
		st := c.mu.lock()
		err = c.write("close", c.layout.IntEnable, 0)
		c.mu.unlock(st)
	}
	c.release()
	return multierr.Combine(err, c.window.Close())
}

// Variant returns the hardware variant the controller was built for.
func (c *Controller) Variant() Variant {
	return c.variant
}

// NumLines returns the number of lines.
func (c *Controller) NumLines() int {
	return c.variant.Lines
}

// NumCounters returns the number of pulse counters.
func (c *Controller) NumCounters() int {
	return c.variant.Counters
}

// Fault returns the latched hardware fault, if any.
func (c *Controller) Fault() error {
	return c.fault.Load()
}

// SetDispatcher replaces the event sink. A nil dispatcher drops events after acknowledging them.
func (c *Controller) SetDispatcher(d Dispatcher) {
	st := c.mu.lock()
	defer c.mu.unlock(st)
	c.dispatcher = d
}

// IRQ returns the downstream interrupt number of line.
func (c *Controller) IRQ(line int) (int, error) {
	if err := c.checkLine(line); err != nil {
		return 0, err
	}
	return c.irqBase + line, nil
}

// LineForIRQ maps a downstream interrupt number back to its line.
func (c *Controller) LineForIRQ(irq int) (int, error) {
	line := irq - c.irqBase
	if line < 0 || line >= c.variant.Lines {
		return 0, errors.Wrapf(ErrInvalidLineIndex, "irq %d is not in [%d,%d)", irq, c.irqBase, c.irqBase+c.variant.Lines)
	}
	return line, nil
}

func (c *Controller) check() error {
	if err := c.fault.Load(); err != nil {
		return err
	}
	if c.closed.Load() {
		return errClosed
	}
	return nil
}

func (c *Controller) checkLine(line int) error {
	if err := c.check(); err != nil {
		return err
	}
	if line < 0 || line >= c.variant.Lines {
		return errors.Wrapf(ErrInvalidLineIndex, "line %d of %d", line, c.variant.Lines)
	}
	return nil
}

func (c *Controller) isOutput(line int) bool {
	return c.variant.OutputMask&(1<<uint(line)) != 0
}

func (c *Controller) read(op string, off uint32) (uint32, error) {
	v, err := c.regs.Read(off)
	if err != nil {
		return 0, c.latch(op, off, err)
	}
	return v, nil
}

func (c *Controller) write(op string, off, val uint32) error {
	if err := c.regs.Write(off, val); err != nil {
		return c.latch(op, off, err)
	}
	return nil
}

func (c *Controller) update(op string, off, mask, val uint32) error {
	if err := c.regs.Update(off, mask, val); err != nil {
		return c.latch(op, off, err)
	}
	return nil
}

func (c *Controller) latch(op string, off uint32, err error) error {
	c.faultOnce.Do(func() {
		c.fault.Store(&HardwareFaultError{Op: op, Offset: off, Err: err})
		c.logger.Errorw("hardware fault, controller disabled",
			"variant", c.variant.Name, "op", op, "offset", fmt.Sprintf("0x%02x", off), "error", err)
	})
	return c.fault.Load()
}
