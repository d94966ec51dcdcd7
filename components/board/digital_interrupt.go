package board

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/pkg/errors"
)

// DigitalInterrupt represents a configured interrupt on the board.
type DigitalInterrupt interface {
	// Name returns the name of the interrupt.
	Name() string

	// Value returns the current value of the interrupt, which depends on its type.
	Value(ctx context.Context, extra map[string]interface{}) (int64, error)
}

// A TickingInterrupt is a DigitalInterrupt fed by ticks from an interrupt source.
type TickingInterrupt interface {
	DigitalInterrupt

	// Tick is called when the interrupt source sees a change.
	Tick(ctx context.Context, high bool, nanoseconds uint64) error

	// AddChannel adds a channel that receives every delivered tick.
	AddChannel(ch chan Tick)

	// RemoveChannel stops delivery to ch.
	RemoveChannel(ch chan Tick)

	// Config returns the configuration the interrupt was created with.
	Config() DigitalInterruptConfig

	// Dropped returns how many ticks were not delivered because a channel was full.
	Dropped() int64
}

// CreateDigitalInterrupt is a factory method for creating a specific DigitalInterrupt based on
// the given config. If no type is specified, a BasicDigitalInterrupt is returned. Counter
// interrupts need a hardware counter and are built by the board that has one.
func CreateDigitalInterrupt(cfg DigitalInterruptConfig) (TickingInterrupt, error) {
	if cfg.Type == "" {
		cfg.Type = InterruptBasic
	}

	var i TickingInterrupt
	switch cfg.Type {
	case InterruptBasic:
		i = &BasicDigitalInterrupt{cfg: cfg}
	case InterruptServo:
		i = &ServoDigitalInterrupt{cfg: cfg}
	default:
		return nil, errors.Errorf("cannot create %q interrupt %q without a hardware counter", cfg.Type, cfg.Name)
	}
	if cfg.DebounceMs > 0 {
		i = newDebounced(i, time.Duration(cfg.DebounceMs)*time.Millisecond)
	}
	return i, nil
}

// channels fans ticks out to subscribers without ever blocking the sender.
type channels struct {
	mu      sync.Mutex
	chans   []chan Tick
	dropped int64
}

func (c *channels) add(ch chan Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chans = append(c.chans, ch)
}

func (c *channels) remove(ch chan Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.chans {
		if existing == ch {
			c.chans = append(c.chans[:i], c.chans[i+1:]...)
			return
		}
	}
}

func (c *channels) droppedCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *channels) send(t Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.chans {
		select {
		case ch <- t:
		default:
			// Interrupt delivery never waits on a slow reader.
			c.dropped++
		}
	}
}

// BasicDigitalInterrupt is a simple high tick counter.
type BasicDigitalInterrupt struct {
	cfg DigitalInterruptConfig

	mu    sync.Mutex
	count int64
	chans channels
}

// Config returns the config used to create this interrupt.
func (i *BasicDigitalInterrupt) Config() DigitalInterruptConfig {
	return i.cfg
}

// Name returns the name of the interrupt.
func (i *BasicDigitalInterrupt) Name() string {
	return i.cfg.Name
}

// Value returns the number of high ticks seen.
func (i *BasicDigitalInterrupt) Value(ctx context.Context, extra map[string]interface{}) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.count, nil
}

// Tick records a change and forwards it to every channel.
func (i *BasicDigitalInterrupt) Tick(ctx context.Context, high bool, nanoseconds uint64) error {
	if high {
		i.mu.Lock()
		i.count++
		i.mu.Unlock()
	}
	i.chans.send(Tick{Name: i.cfg.Name, High: high, TimestampNanosec: nanoseconds})
	return nil
}

// AddChannel adds a listener for ticks.
func (i *BasicDigitalInterrupt) AddChannel(ch chan Tick) {
	i.chans.add(ch)
}

// RemoveChannel removes a listener for ticks.
func (i *BasicDigitalInterrupt) RemoveChannel(ch chan Tick) {
	i.chans.remove(ch)
}

// Dropped returns how many ticks a full channel refused.
func (i *BasicDigitalInterrupt) Dropped() int64 {
	return i.chans.droppedCount()
}

// A ServoDigitalInterrupt measures the width of high pulses, as produced by RC servo signals.
type ServoDigitalInterrupt struct {
	cfg DigitalInterruptConfig

	mu     sync.Mutex
	lastHi uint64
	value  int64
	chans  channels
}

// servoPeriodLimit separates a pulse from the gap between pulses.
const servoPeriodLimit = 10 * time.Millisecond

// Config returns the config used to create this interrupt.
func (i *ServoDigitalInterrupt) Config() DigitalInterruptConfig {
	return i.cfg
}

// Name returns the name of the interrupt.
func (i *ServoDigitalInterrupt) Name() string {
	return i.cfg.Name
}

// Value returns the width of the last high pulse in microseconds.
func (i *ServoDigitalInterrupt) Value(ctx context.Context, extra map[string]interface{}) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.value, nil
}

// Tick records a change and forwards it to every channel.
func (i *ServoDigitalInterrupt) Tick(ctx context.Context, high bool, nanoseconds uint64) error {
	i.mu.Lock()
	if high {
		i.lastHi = nanoseconds
	} else if i.lastHi != 0 && nanoseconds > i.lastHi {
		if diff := nanoseconds - i.lastHi; diff <= uint64(servoPeriodLimit) {
			i.value = int64(diff / 1000)
		}
	}
	i.mu.Unlock()

	i.chans.send(Tick{Name: i.cfg.Name, High: high, TimestampNanosec: nanoseconds})
	return nil
}

// AddChannel adds a listener for ticks.
func (i *ServoDigitalInterrupt) AddChannel(ch chan Tick) {
	i.chans.add(ch)
}

// RemoveChannel removes a listener for ticks.
func (i *ServoDigitalInterrupt) RemoveChannel(ch chan Tick) {
	i.chans.remove(ch)
}

// Dropped returns how many ticks a full channel refused.
func (i *ServoDigitalInterrupt) Dropped() int64 {
	return i.chans.droppedCount()
}

// debounced delivers only the last tick of a burst, once the input has been quiet for the
// debounce time.
type debounced struct {
	TickingInterrupt
	debounce func(f func())

	mu   sync.Mutex
	last Tick
}

func newDebounced(i TickingInterrupt, d time.Duration) *debounced {
	return &debounced{TickingInterrupt: i, debounce: debounce.New(d)}
}

func (d *debounced) Tick(ctx context.Context, high bool, nanoseconds uint64) error {
	d.mu.Lock()
	d.last = Tick{Name: d.Name(), High: high, TimestampNanosec: nanoseconds}
	d.mu.Unlock()

	d.debounce(func() {
		d.mu.Lock()
		t := d.last
		d.mu.Unlock()
		//nolint:errcheck
		d.TickingInterrupt.Tick(context.Background(), t.High, t.TimestampNanosec)
	})
	return nil
}
