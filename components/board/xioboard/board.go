// Package xioboard implements a board whose GPIO pins and digital interrupts are the lines of
// an xio block.
package xioboard

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/time/rate"
	"periph.io/x/conn/v3/gpio"

	"github.com/centurysys/linux-kernel-MAE-sub003/components/board"
	"github.com/centurysys/linux-kernel-MAE-sub003/logging"
	"github.com/centurysys/linux-kernel-MAE-sub003/mmio"
	"github.com/centurysys/linux-kernel-MAE-sub003/xio"
	"github.com/centurysys/linux-kernel-MAE-sub003/xio/sim"
)

var errBoardClosed = errors.New("board is closed")

var _ board.Board = (*Board)(nil)

// Board serves the pins and digital interrupts of one xio block. It owns the controller, the
// parent interrupt and the goroutine servicing it.
type Board struct {
	chip        xio.Chip
	parent      xio.ParentIRQ
	closeParent func() error
	sim         *sim.Device
	clock       clock.Clock
	logger      logging.Logger
	conf        *Config

	mu         sync.RWMutex
	interrupts map[string]board.TickingInterrupt
	edges      map[int]board.TickingInterrupt
	matches    map[int]board.TickingInterrupt

	workers   *utils.StoppableWorkers
	faultOnce sync.Once
	closed    atomic.Bool

	unclaimedLog rate.Sometimes
	dropLog      rate.Sometimes
	dropMu       sync.Mutex
	reported     map[string]int64
}

// logInterval bounds how often the interrupt path repeats a log line.
const logInterval = 10 * time.Second

// NewBoard opens the block conf describes, or a simulated one, and starts servicing its
// interrupts.
func NewBoard(ctx context.Context, conf *Config, logger logging.Logger) (*Board, error) {
	if _, err := conf.Validate("board"); err != nil {
		return nil, err
	}
	v, err := conf.ResolveVariant()
	if err != nil {
		return nil, err
	}

	var (
		window      mmio.Window
		parent      xio.ParentIRQ
		closeParent = func() error { return nil }
		dev         *sim.Device
	)
	if conf.Simulate {
		dev = sim.New(xio.SimConfig(v))
		window, parent = dev, dev.IRQ()
	} else {
		window, parent, closeParent, err = openHardware(conf, v, logger)
		if err != nil {
			return nil, err
		}
	}

	b, err := build(conf, v, window, parent, closeParent, clock.New(), logger)
	if err != nil {
		return nil, err
	}
	b.sim = dev
	logger.CDebugw(ctx, "board ready", "variant", v.Name, "device", conf.Device, "simulated", conf.Simulate)
	return b, nil
}

// build makes the controller over window and sets up every configured pin and interrupt. On
// error window and the parent are closed.
func build(
	conf *Config,
	v xio.Variant,
	window mmio.Window,
	parent xio.ParentIRQ,
	closeParent func() error,
	clk clock.Clock,
	logger logging.Logger,
) (*Board, error) {
	c, err := xio.New(xio.Config{
		Variant: v,
		Window:  window,
		IRQBase: conf.IRQBase,
		Logger:  logger.Sublogger("xio"),
	})
	if err != nil {
		return nil, multierr.Combine(err, window.Close(), closeParent())
	}

	b := &Board{
		chip:        c,
		parent:      parent,
		closeParent: closeParent,
		clock:       clk,
		logger:      logger,
		conf:        conf,
		interrupts:  map[string]board.TickingInterrupt{},
		edges:       map[int]board.TickingInterrupt{},
		matches:     map[int]board.TickingInterrupt{},
		workers:     utils.NewBackgroundStoppableWorkers(),
		reported:    map[string]int64{},
	}
	b.unclaimedLog.Interval = logInterval
	b.dropLog.Interval = logInterval
	if err := b.setup(v); err != nil {
		return nil, multierr.Combine(err, b.Close(context.Background()))
	}
	c.SetDispatcher(xio.DispatcherFunc(b.dispatch))
	if parent != nil {
		b.workers.Add(b.serve)
	}
	return b, nil
}

func (b *Board) setup(v xio.Variant) error {
	for pin, d := range b.conf.Filters {
		line, err := b.conf.Line(pin)
		if err != nil {
			return err
		}
		dur, err := time.ParseDuration(d)
		if err != nil {
			return err
		}
		lvl, err := xio.FilterLevelFromDuration(dur)
		if err != nil {
			return err
		}
		if err := b.chip.SetFilter(line, lvl); err != nil {
			return err
		}
	}

	for _, cfg := range b.conf.DigitalInterrupts {
		line, err := b.conf.Line(cfg.Pin)
		if err != nil {
			return err
		}

		var i board.TickingInterrupt
		if cfg.Type == board.InterruptCounter {
			ci, err := newCounterInterrupt(b.chip, cfg, line, v.CounterWidth)
			if err != nil {
				return errors.Wrapf(err, "counter interrupt %q", cfg.Name)
			}
			b.matches[line] = ci
			i = ci
		} else {
			i, err = board.CreateDigitalInterrupt(cfg)
			if err != nil {
				return err
			}
			if err := b.chip.Configure(line, edgeFromString(cfg.EdgeOrDefault())); err != nil {
				return errors.Wrapf(err, "interrupt %q", cfg.Name)
			}
			b.edges[line] = i
		}
		if cfg.Wakeup {
			if err := b.chip.SetWakeupEligible(line, true); err != nil {
				return err
			}
		}
		b.interrupts[cfg.Name] = i
	}
	return nil
}

func edgeFromString(s string) gpio.Edge {
	switch s {
	case "falling":
		return gpio.FallingEdge
	case "both":
		return gpio.BothEdges
	default:
		return gpio.RisingEdge
	}
}

// serve runs the interrupt handler until the board closes or the hardware faults.
func (b *Board) serve(ctx context.Context) {
	err := b.chip.ServeIRQ(ctx, b.parent)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	b.logger.Errorw("interrupt service stopped", "error", err)
}

// dispatch turns controller events into ticks. It runs on the serve goroutine.
func (b *Board) dispatch(ev xio.PendingEvent) {
	now := uint64(b.clock.Now().UnixNano())

	b.mu.RLock()
	var (
		i    board.TickingInterrupt
		high bool
	)
	if ev.Kind == xio.EventMatch {
		i, high = b.matches[ev.Line], true
	} else {
		i, high = b.edges[ev.Line], ev.Edge == gpio.RisingEdge
	}
	b.mu.RUnlock()

	if i == nil {
		b.unclaimedLog.Do(func() {
			b.logger.Debugw("event on a line with no interrupt", "line", ev.Line, "kind", ev.Kind)
		})
		return
	}
	if err := i.Tick(context.Background(), high, now); err != nil {
		b.logger.Warnw("delivering tick", "interrupt", i.Name(), "error", err)
	}
	b.reportDrops(i)
}

// reportDrops warns when ticks of i were refused by a full channel since the last report.
func (b *Board) reportDrops(i board.TickingInterrupt) {
	n := i.Dropped()
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	if n == b.reported[i.Name()] {
		return
	}
	b.dropLog.Do(func() {
		b.logger.Warnw("ticks dropped on a full channel", "interrupt", i.Name(), "dropped", n)
		b.reported[i.Name()] = n
	})
}

// DroppedTicks returns, per interrupt, how many ticks a full channel refused.
func (b *Board) DroppedTicks() map[string]int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	dropped := make(map[string]int64, len(b.interrupts))
	for name, i := range b.interrupts {
		dropped[name] = i.Dropped()
	}
	return dropped
}

// check refuses every call once the board is closed or its hardware has faulted.
func (b *Board) check() error {
	if b.closed.Load() {
		return errBoardClosed
	}
	if err := b.chip.Fault(); err != nil {
		b.faultOnce.Do(func() {
			b.logger.Errorw("board disabled by hardware fault", "error", err)
		})
		return errors.Wrap(err, "board disabled")
	}
	return nil
}

// Chip returns the controller behind the board.
func (b *Board) Chip() xio.Chip {
	return b.chip
}

// Simulator returns the simulated block of a simulated board, or nil.
func (b *Board) Simulator() *sim.Device {
	return b.sim
}

// GPIOPinByName returns the pin with the given name, or the line with the given number.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	line, err := b.conf.Line(name)
	if err != nil {
		return nil, err
	}
	if line < 0 || line >= b.chip.NumLines() {
		return nil, errors.Errorf("pin %q: line %d out of range", name, line)
	}
	return &gpioPin{b: b, line: line}, nil
}

// DigitalInterruptByName returns the interrupt with the given name.
func (b *Board) DigitalInterruptByName(name string) (board.DigitalInterrupt, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.interrupts[name]
	if !ok {
		return nil, errors.Errorf("unknown digital interrupt: %s", name)
	}
	return i, nil
}

// DigitalInterruptNames returns the names of all known digital interrupts.
func (b *Board) DigitalInterruptNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.interrupts))
	for name := range b.interrupts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StreamTicks subscribes ch to the given interrupts until ctx is done or the board closes.
// Ticks are dropped, not queued, when ch is full.
func (b *Board) StreamTicks(
	ctx context.Context,
	interrupts []board.DigitalInterrupt,
	ch chan board.Tick,
	extra map[string]interface{},
) error {
	if err := b.check(); err != nil {
		return err
	}

	b.mu.RLock()
	subscribed := make([]board.TickingInterrupt, 0, len(interrupts))
	for _, di := range interrupts {
		i, ok := b.interrupts[di.Name()]
		if !ok {
			b.mu.RUnlock()
			for _, s := range subscribed {
				s.RemoveChannel(ch)
			}
			return errors.Errorf("unknown digital interrupt: %s", di.Name())
		}
		i.AddChannel(ch)
		subscribed = append(subscribed, i)
	}
	b.mu.RUnlock()

	b.workers.Add(func(workersCtx context.Context) {
		select {
		case <-ctx.Done():
		case <-workersCtx.Done():
		}
		for _, i := range subscribed {
			i.RemoveChannel(ch)
		}
	})
	return nil
}

// Close stops interrupt service, masks every line and releases the hardware.
func (b *Board) Close(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.workers.Stop()
	return multierr.Combine(b.chip.Close(), b.closeParent())
}

type gpioPin struct {
	b    *Board
	line int
}

func (p *gpioPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	if err := p.b.check(); err != nil {
		return err
	}
	return p.b.chip.Set(p.line, gpio.Level(high))
}

func (p *gpioPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	if err := p.b.check(); err != nil {
		return false, err
	}
	level, err := p.b.chip.Get(p.line)
	if err != nil {
		return false, err
	}
	return bool(level), nil
}
