package xio

import (
	"context"

	"periph.io/x/conn/v3/gpio"
)

// Chip is the operation set a host driver uses. *Controller implements it.
type Chip interface {
	NumLines() int
	NumCounters() int

	Get(line int) (gpio.Level, error)
	Set(line int, level gpio.Level) error
	Direction(line int) (Direction, error)
	SetDirection(line int, dir Direction) error

	Configure(line int, edge gpio.Edge) error
	State(line int) (EdgeState, error)
	Mask(line int) error
	Unmask(line int) error
	IRQ(line int) (int, error)
	SetDispatcher(d Dispatcher)
	HandleIRQ() (IRQResult, error)
	ServeIRQ(ctx context.Context, parent ParentIRQ) error

	EnableCounter(line int, enable bool) error
	CounterEnabled(line int) (bool, error)
	ReadCounter(line int) (uint32, error)
	ReadCounterRaw(line int) (raw uint32, overflowed bool, err error)
	SetCounter(line int, value uint32) error
	ClearCounterOverflow(line int) error
	SetCounterMatch(line int, threshold uint32) error
	CounterMatch(line int) (uint32, error)
	EnableCounterMatch(line int, enable bool) error

	SetFilter(line int, level FilterLevel) error
	Filter(line int) (FilterLevel, error)

	SetWakeupEligible(line int, eligible bool) error
	WakeupEligible(line int) (bool, error)
	WakeupMask() (uint32, error)

	Snapshot() ([]LineSnapshot, error)
	DumpRegisters() ([]Register, error)
	Stats() Stats
	Fault() error
	Close() error
}

var _ Chip = (*Controller)(nil)
