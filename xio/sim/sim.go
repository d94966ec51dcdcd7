// Package sim is a register level model of the xio block. A Device is an mmio.Window: drive
// its input lines and it latches edges, counts pulses and raises its interrupt output the way
// the hardware does.
package sim

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/centurysys/linux-kernel-MAE-sub003/mmio"
)

// Config sizes a Device.
type Config struct {
	Lines        int
	RegBytes     uint32
	Counters     int
	CounterWidth uint
	Layout       mmio.Layout
	// Size is the window size; zero picks the smallest size holding the layout.
	Size uint32
}

// Access is one register write seen by the device.
type Access struct {
	Offset uint32
	Value  uint32
}

// Device is a simulated block.
type Device struct {
	cfg  Config
	size uint32

	mu sync.Mutex

	level          uint32
	output         uint32
	intStatus      uint32
	intEnable      uint32
	edgeSelect     uint32
	filter         uint32
	counterControl uint32
	matchStatus    uint32
	matchEnable    uint32
	overflow       uint32
	counts         []uint32
	compares       []uint32

	writes []Access
	fault  error
	closed bool

	irq chan struct{}
}

// New returns a device with every register zero and every input low.
func New(cfg Config) *Device {
	size := cfg.Size
	if size == 0 {
		size = cfg.Layout.End(cfg.RegBytes, cfg.Counters)
	}
	return &Device{
		cfg:      cfg,
		size:     size,
		counts:   make([]uint32, cfg.Counters),
		compares: make([]uint32, cfg.Counters),
		irq:      make(chan struct{}, 1),
	}
}

var errClosed = errors.New("sim: device closed")

func (d *Device) lineMask() uint32 {
	return 1<<uint(d.cfg.Lines) - 1
}

func (d *Device) counterMask() uint32 {
	return 1<<uint(d.cfg.Counters) - 1
}

func (d *Device) counterMax() uint32 {
	return 1<<d.cfg.CounterWidth - 1
}

// SetLevel drives input line to high. A transition matching the line's edge select latches its
// interrupt status; a rising transition advances an enabled counter.
func (d *Device) SetLevel(line int, high bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setLevelLocked(line, high)
}

func (d *Device) setLevelLocked(line int, high bool) {
	bit := uint32(1) << uint(line)
	was := d.level&bit != 0
	if was == high {
		return
	}
	if high {
		d.level |= bit
	} else {
		d.level &^= bit
	}

	rising := d.edgeSelect&bit != 0
	if rising == high {
		d.intStatus |= bit
	}
	if high && line < d.cfg.Counters && d.counterControl&bit != 0 {
		d.countLocked(line)
	}
	d.notifyLocked()
}

func (d *Device) countLocked(i int) {
	bit := uint32(1) << uint(i)
	if d.counts[i] == d.counterMax() {
		d.counts[i] = 0
		d.overflow |= bit
	} else {
		d.counts[i]++
	}
	if d.counts[i] == d.compares[i] {
		d.matchStatus |= bit
	}
}

// Pulse drives n full low-high-low pulses on line.
func (d *Device) Pulse(line, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.setLevelLocked(line, true)
		d.setLevelLocked(line, false)
	}
}

// Level returns the driven level of line.
func (d *Device) Level(line int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level&(1<<uint(line)) != 0
}

// Output returns the DOUT latch.
func (d *Device) Output() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.output
}

// Raise latches interrupt status bits directly, as if edges had been seen on them.
func (d *Device) Raise(mask uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intStatus |= mask & d.lineMask()
	d.notifyLocked()
}

// SetCount loads a counter and its overflow flag behind the driver's back.
func (d *Device) SetCount(i int, raw uint32, overflow bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts[i] = raw & d.counterMax()
	bit := uint32(1) << uint(i)
	if overflow {
		d.overflow |= bit
	} else {
		d.overflow &^= bit
	}
}

// Overflow reports the overflow flag of counter i.
func (d *Device) Overflow(i int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overflow&(1<<uint(i)) != 0
}

// Asserted reports whether the interrupt output is active.
func (d *Device) Asserted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.assertedLocked()
}

func (d *Device) assertedLocked() bool {
	return d.intStatus&d.intEnable != 0 || d.matchStatus&d.matchEnable != 0
}

func (d *Device) notifyLocked() {
	if !d.assertedLocked() {
		return
	}
	select {
	case d.irq <- struct{}{}:
	default:
	}
}

// Fail makes every later access return err. A nil err heals the device.
func (d *Device) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fault = err
}

// Writes returns the register writes since the last ResetWrites.
func (d *Device) Writes() []Access {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Access(nil), d.writes...)
}

// WritesTo returns the values written to one offset since the last ResetWrites.
func (d *Device) WritesTo(offset uint32) []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []uint32
	for _, w := range d.writes {
		if w.Offset == offset {
			out = append(out, w.Value)
		}
	}
	return out
}

// ResetWrites clears the write log.
func (d *Device) ResetWrites() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = nil
}

// Size returns the window size.
func (d *Device) Size() uint32 {
	return d.size
}

// Close makes every later access fail.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Read8 reads a register through a byte access.
func (d *Device) Read8(offset uint32) (uint8, error) {
	v, err := d.access(offset, 1, nil)
	return uint8(v), err
}

// Write8 writes a register through a byte access.
func (d *Device) Write8(offset uint32, value uint8) error {
	v := uint32(value)
	_, err := d.access(offset, 1, &v)
	return err
}

// Read16 reads a register through a halfword access.
func (d *Device) Read16(offset uint32) (uint16, error) {
	v, err := d.access(offset, 2, nil)
	return uint16(v), err
}

// Write16 writes a register through a halfword access.
func (d *Device) Write16(offset uint32, value uint16) error {
	v := uint32(value)
	_, err := d.access(offset, 2, &v)
	return err
}

func (d *Device) access(offset, width uint32, value *uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, errClosed
	}
	if d.fault != nil {
		return 0, d.fault
	}
	if offset+width > d.size {
		return 0, errors.Wrapf(mmio.ErrOutOfRange, "offset 0x%02x", offset)
	}
	reg := d.register(offset)
	if value == nil {
		if reg == nil {
			return 0, nil
		}
		return reg.read(), nil
	}
	d.writes = append(d.writes, Access{Offset: offset, Value: *value})
	if reg != nil && reg.write != nil {
		reg.write(*value)
	}
	d.notifyLocked()
	return 0, nil
}

type register struct {
	read  func() uint32
	write func(uint32)
}

func plain(p *uint32, mask uint32) *register {
	return &register{
		read:  func() uint32 { return *p },
		write: func(v uint32) { *p = v & mask },
	}
}

func w1c(p *uint32) *register {
	return &register{
		read:  func() uint32 { return *p },
		write: func(v uint32) { *p &^= v },
	}
}

func (d *Device) register(offset uint32) *register {
	l := d.cfg.Layout
	lines := d.lineMask()
	switch offset {
	case l.Status:
		return &register{read: func() uint32 { return d.level }}
	case l.Output:
		return plain(&d.output, lines)
	case l.IntStatus:
		return w1c(&d.intStatus)
	case l.IntEnable:
		return plain(&d.intEnable, lines)
	case l.EdgeSelect:
		return plain(&d.edgeSelect, lines)
	case l.Filter:
		return plain(&d.filter, 0xFF)
	}
	if d.cfg.Counters == 0 {
		return nil
	}
	switch offset {
	case l.CounterControl:
		return plain(&d.counterControl, d.counterMask())
	case l.MatchStatus:
		return w1c(&d.matchStatus)
	case l.MatchEnable:
		return plain(&d.matchEnable, d.counterMask())
	case l.Overflow:
		return w1c(&d.overflow)
	}
	for i := 0; i < d.cfg.Counters; i++ {
		switch offset {
		case l.Count(i):
			return plain(&d.counts[i], d.counterMax())
		case l.Compare(i):
			return plain(&d.compares[i], d.counterMax())
		}
	}
	return nil
}

// IRQ is the device's interrupt output as a parent line. Wait returns while the output is
// asserted; Ack is a no-op because the output is level triggered.
type IRQ struct {
	d *Device
}

// IRQ returns the interrupt output of d.
func (d *Device) IRQ() *IRQ {
	return &IRQ{d: d}
}

// Wait blocks until the device asserts its interrupt output or ctx is done.
func (irq *IRQ) Wait(ctx context.Context) error {
	for {
		if irq.d.Asserted() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-irq.d.irq:
		}
	}
}

// Ack does nothing.
func (irq *IRQ) Ack() error {
	return nil
}
