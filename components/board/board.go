// Package board defines the interfaces of a board whose GPIO pins and digital interrupts are
// served by a controller such as an xio block.
package board

import "context"

// A Tick is one change of a digital interrupt.
type Tick struct {
	Name             string
	High             bool
	TimestampNanosec uint64
}

// A Board represents a physical general purpose board that contains GPIO pins and digital
// interrupts.
type Board interface {
	// GPIOPinByName returns a GPIOPin by name.
	GPIOPinByName(name string) (GPIOPin, error)

	// DigitalInterruptByName returns a digital interrupt by name.
	DigitalInterruptByName(name string) (DigitalInterrupt, error)

	// DigitalInterruptNames returns the names of all known digital interrupts.
	DigitalInterruptNames() []string

	// StreamTicks starts a stream of digital interrupt ticks. Ticks are sent on ch until ctx
	// is done or the board is closed.
	StreamTicks(ctx context.Context, interrupts []DigitalInterrupt, ch chan Tick, extra map[string]interface{}) error

	Close(ctx context.Context) error
}
