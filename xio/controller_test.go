package xio

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"periph.io/x/conn/v3/gpio"

	"github.com/centurysys/linux-kernel-MAE-sub003/logging"
	"github.com/centurysys/linux-kernel-MAE-sub003/mmio"
	"github.com/centurysys/linux-kernel-MAE-sub003/xio/sim"
)

type eventLog struct {
	events []PendingEvent
}

func (l *eventLog) Dispatch(ev PendingEvent) {
	l.events = append(l.events, ev)
}

func newTestController(t *testing.T, v Variant) (*Controller, *sim.Device, *eventLog) {
	t.Helper()
	c, dev, err := NewSimulated(v, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { c.Close() })
	events := &eventLog{}
	c.SetDispatcher(events)
	return c, dev, events
}

func TestVariants(t *testing.T) {
	for _, v := range Variants {
		test.That(t, v.Validate(), test.ShouldBeNil)
		test.That(t, v.Layout.Validate(v.Layout.End(v.RegBytes, v.Counters), v.RegBytes, v.Counters), test.ShouldBeNil)
	}

	v, err := VariantByName("XIOIRQ")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.Counters, test.ShouldEqual, 8)
	_, err = VariantByName("nope")
	test.That(t, err, test.ShouldNotBeNil)

	bad := PlumGPIO
	bad.Lines = 12
	test.That(t, bad.Validate(), test.ShouldNotBeNil)

	bad = PlumGPIO
	bad.Lines = 16
	test.That(t, bad.Validate(), test.ShouldNotBeNil)

	bad = MagnoliaDIO
	bad.OutputMask = 0x0001
	test.That(t, bad.Validate(), test.ShouldNotBeNil)

	// xioirq packs its eight 8-bit counts at a 1-byte stride, right up to the compare block.
	l := XIOIRQ.Layout
	test.That(t, l.Count(0), test.ShouldEqual, uint32(0x1A))
	test.That(t, l.Count(7), test.ShouldEqual, uint32(0x21))
	test.That(t, l.Compare(7), test.ShouldEqual, uint32(0x29))
	test.That(t, mmio.DefaultLayout.Validate(0x40, 1, 8), test.ShouldNotBeNil)
	test.That(t, MagnoliaDIO.Layout.Count(3), test.ShouldEqual, uint32(0x20))
}

func TestNew(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := New(Config{Variant: PlumGPIO, Logger: logger})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(Config{Variant: MagnoliaDIO, Window: mmio.NewMemory(8), Logger: logger})
	test.That(t, err, test.ShouldNotBeNil)

	dev := sim.New(SimConfig(XIOIRQ))
	c, err := New(Config{Variant: XIOIRQ, Window: dev, Logger: logger})
	test.That(t, err, test.ShouldBeNil)

	_, err = New(Config{Variant: XIOIRQ, Window: dev, Logger: logger})
	test.That(t, errors.Is(err, mmio.ErrWindowBusy), test.ShouldBeTrue)

	test.That(t, c.Close(), test.ShouldBeNil)
	test.That(t, c.Close(), test.ShouldBeNil)
	_, err = c.Get(0)
	test.That(t, err, test.ShouldNotBeNil)

	// The window is free again once the owner is gone.
	release, err := mmio.Claim(dev)
	test.That(t, err, test.ShouldBeNil)
	release()
}

func TestInitResetsHardware(t *testing.T) {
	c, dev, _ := newTestController(t, XIOIRQ)
	l := XIOIRQ.Layout

	test.That(t, c.Configure(1, gpio.RisingEdge), test.ShouldBeNil)
	test.That(t, c.EnableCounter(2, true), test.ShouldBeNil)
	dev.SetCount(2, 9, true)
	dev.Raise(0x02)

	dev.ResetWrites()
	test.That(t, c.Init(), test.ShouldBeNil)

	test.That(t, dev.WritesTo(l.IntEnable), test.ShouldResemble, []uint32{0})
	test.That(t, dev.WritesTo(l.IntStatus), test.ShouldResemble, []uint32{0xFF})
	test.That(t, dev.Overflow(2), test.ShouldBeFalse)

	state, err := c.State(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state, test.ShouldEqual, Disabled)
	enabled, err := c.CounterEnabled(2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, enabled, test.ShouldBeFalse)
	v, err := c.ReadCounter(2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, uint32(0))
}

func TestLineValidation(t *testing.T) {
	c, _, _ := newTestController(t, PlumGPIO)

	for _, line := range []int{-1, 8, 100} {
		_, err := c.Get(line)
		test.That(t, errors.Is(err, ErrInvalidLineIndex), test.ShouldBeTrue)
		test.That(t, errors.Is(c.Configure(line, gpio.RisingEdge), ErrInvalidLineIndex), test.ShouldBeTrue)
		test.That(t, errors.Is(c.Mask(line), ErrInvalidLineIndex), test.ShouldBeTrue)
		test.That(t, errors.Is(c.SetFilter(line, Filter1ms), ErrInvalidLineIndex), test.ShouldBeTrue)
	}

	test.That(t, errors.Is(c.Set(0, gpio.High), ErrUnsupportedOperation), test.ShouldBeTrue)
	test.That(t, errors.Is(c.SetDirection(0, Output), ErrUnsupportedOperation), test.ShouldBeTrue)
	test.That(t, c.SetDirection(0, Input), test.ShouldBeNil)
	test.That(t, errors.Is(c.Configure(0, gpio.Edge(99)), ErrUnsupportedOperation), test.ShouldBeTrue)

	// Counter and filter operations on a variant without them.
	_, err := c.ReadCounter(0)
	test.That(t, errors.Is(err, ErrUnsupportedOperation), test.ShouldBeTrue)
	test.That(t, errors.Is(c.EnableCounter(0, true), ErrUnsupportedOperation), test.ShouldBeTrue)
	test.That(t, errors.Is(c.SetFilter(0, Filter5ms), ErrUnsupportedOperation), test.ShouldBeTrue)
	_, err = c.Filter(0)
	test.That(t, errors.Is(err, ErrUnsupportedOperation), test.ShouldBeTrue)
}

func TestGetSet(t *testing.T) {
	c, dev, _ := newTestController(t, MagnoliaDIO)

	dev.SetLevel(3, true)
	level, err := c.Get(3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, gpio.High)
	level, err = c.Get(4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, gpio.Low)

	dir, err := c.Direction(12)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dir, test.ShouldEqual, Output)
	test.That(t, errors.Is(c.SetDirection(12, Input), ErrUnsupportedOperation), test.ShouldBeTrue)

	test.That(t, c.Set(12, gpio.High), test.ShouldBeNil)
	test.That(t, c.Set(15, gpio.High), test.ShouldBeNil)
	test.That(t, dev.Output(), test.ShouldEqual, uint32(0x9000))
	test.That(t, c.Set(12, gpio.Low), test.ShouldBeNil)
	test.That(t, dev.Output(), test.ShouldEqual, uint32(0x8000))

	level, err = c.Get(15)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, gpio.High)

	test.That(t, errors.Is(c.Set(3, gpio.High), ErrUnsupportedOperation), test.ShouldBeTrue)
	test.That(t, errors.Is(c.Configure(9, gpio.RisingEdge), ErrUnsupportedOperation), test.ShouldBeTrue)
}

func TestIRQMapping(t *testing.T) {
	dev := sim.New(SimConfig(PlumGPIO))
	c, err := New(Config{Variant: PlumGPIO, Window: dev, IRQBase: 160, Logger: logging.NewTestLogger(t)})
	test.That(t, err, test.ShouldBeNil)
	defer c.Close()

	irq, err := c.IRQ(5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, irq, test.ShouldEqual, 165)
	line, err := c.LineForIRQ(167)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line, test.ShouldEqual, 7)
	_, err = c.LineForIRQ(168)
	test.That(t, errors.Is(err, ErrInvalidLineIndex), test.ShouldBeTrue)
	_, err = c.LineForIRQ(159)
	test.That(t, errors.Is(err, ErrInvalidLineIndex), test.ShouldBeTrue)
}

func TestHardwareFaultLatches(t *testing.T) {
	logger, observed := logging.NewObservedTestLogger(t)
	c, dev, err := NewSimulated(XIOIRQ, logger)
	test.That(t, err, test.ShouldBeNil)

	busErr := errors.New("bus error")
	dev.Fail(busErr)
	_, err = c.ReadCounter(1)
	test.That(t, errors.Is(err, ErrHardwareFault), test.ShouldBeTrue)
	var fault *HardwareFaultError
	test.That(t, errors.As(err, &fault), test.ShouldBeTrue)
	test.That(t, fault.Op, test.ShouldEqual, "counter read")
	test.That(t, fault.Offset, test.ShouldEqual, XIOIRQ.Layout.Count(1))
	test.That(t, errors.Is(err, busErr), test.ShouldBeTrue)

	// The device healing does not bring the controller back.
	dev.Fail(nil)
	dev.ResetWrites()
	_, err = c.HandleIRQ()
	test.That(t, errors.Is(err, ErrHardwareFault), test.ShouldBeTrue)
	test.That(t, c.Configure(0, gpio.RisingEdge), test.ShouldEqual, err)
	test.That(t, dev.Writes(), test.ShouldBeEmpty)
	test.That(t, c.Fault(), test.ShouldEqual, err)

	// Validation errors still win over nothing: the fault is reported first.
	_, err = c.Get(42)
	test.That(t, errors.Is(err, ErrHardwareFault), test.ShouldBeTrue)

	test.That(t, observed.FilterMessage("hardware fault, controller disabled").Len(), test.ShouldEqual, 1)
	test.That(t, c.Close(), test.ShouldBeNil)
}

func TestDefaultLoggerIsGlobal(t *testing.T) {
	logger, observed := logging.NewObservedTestLogger(t)
	prev := logging.Global()
	logging.ReplaceGlobal(logger)
	t.Cleanup(func() { logging.ReplaceGlobal(prev) })

	c, dev, err := NewSimulated(PlumGPIO, nil)
	test.That(t, err, test.ShouldBeNil)
	dev.Fail(errors.New("bus error"))
	_, err = c.Get(0)
	test.That(t, errors.Is(err, ErrHardwareFault), test.ShouldBeTrue)
	test.That(t, observed.FilterMessage("hardware fault, controller disabled").Len(), test.ShouldEqual, 1)
	test.That(t, c.Close(), test.ShouldBeNil)
}

func TestSnapshotAndDump(t *testing.T) {
	c, dev, _ := newTestController(t, XIOIRQ)

	dev.SetLevel(6, true)
	test.That(t, c.Configure(6, gpio.BothEdges), test.ShouldBeNil)
	test.That(t, c.Mask(6), test.ShouldBeNil)
	test.That(t, c.EnableCounter(1, true), test.ShouldBeNil)
	test.That(t, c.SetCounterMatch(1, 3), test.ShouldBeNil)
	test.That(t, c.SetFilter(5, Filter5ms), test.ShouldBeNil)
	test.That(t, c.SetWakeupEligible(6, true), test.ShouldBeNil)
	dev.SetCount(1, 0x10, true)

	snap, err := c.Snapshot()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, snap, test.ShouldHaveLength, 8)

	line6 := snap[6]
	test.That(t, line6.Level, test.ShouldEqual, gpio.High)
	test.That(t, line6.State, test.ShouldEqual, ArmedBothViaFalling)
	test.That(t, line6.Masked, test.ShouldBeTrue)
	test.That(t, line6.Wakeup, test.ShouldBeTrue)
	test.That(t, line6.Filter, test.ShouldEqual, Filter5ms)

	line1 := snap[1]
	test.That(t, line1.Filter, test.ShouldEqual, FilterNone)
	test.That(t, line1.Counter, test.ShouldResemble, &CounterSnapshot{
		Raw: 0x10, Overflow: true, Enabled: true, Match: 3,
	})

	// Snapshots have no side effects.
	test.That(t, dev.Overflow(1), test.ShouldBeTrue)

	regs, err := c.DumpRegisters()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, regs[0], test.ShouldResemble, Register{Name: "status", Offset: 0x00, Value: 0x40})
	test.That(t, regs, test.ShouldHaveLength, 9+2*8)

	plum, _, _ := newTestController(t, PlumGPIO)
	regs, err = plum.DumpRegisters()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, regs, test.ShouldHaveLength, 4)
}
