package xio

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// EdgeState is the interrupt configuration of one line.
type EdgeState int

const (
	// Disabled lines never raise interrupts.
	Disabled EdgeState = iota
	// ArmedRising lines interrupt on rising edges.
	ArmedRising
	// ArmedFalling lines interrupt on falling edges.
	ArmedFalling
	// ArmedBothViaRising lines emulate both edges and watch for the next rising edge.
	ArmedBothViaRising
	// ArmedBothViaFalling lines emulate both edges and watch for the next falling edge.
	ArmedBothViaFalling
)

func (s EdgeState) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case ArmedRising:
		return "rising"
	case ArmedFalling:
		return "falling"
	case ArmedBothViaRising:
		return "both(rising)"
	case ArmedBothViaFalling:
		return "both(falling)"
	default:
		return "unknown"
	}
}

// Edge returns the configured trigger, with both emulated states reported as gpio.BothEdges.
func (s EdgeState) Edge() gpio.Edge {
	switch s {
	case ArmedRising:
		return gpio.RisingEdge
	case ArmedFalling:
		return gpio.FallingEdge
	case ArmedBothViaRising, ArmedBothViaFalling:
		return gpio.BothEdges
	default:
		return gpio.NoEdge
	}
}

// armed is the single edge the hardware is currently watching for.
func (s EdgeState) armed() gpio.Edge {
	switch s {
	case ArmedRising, ArmedBothViaRising:
		return gpio.RisingEdge
	case ArmedFalling, ArmedBothViaFalling:
		return gpio.FallingEdge
	default:
		return gpio.NoEdge
	}
}

func (s EdgeState) both() bool {
	return s == ArmedBothViaRising || s == ArmedBothViaFalling
}

func (s EdgeState) flipped() EdgeState {
	switch s {
	case ArmedBothViaRising:
		return ArmedBothViaFalling
	case ArmedBothViaFalling:
		return ArmedBothViaRising
	default:
		return s
	}
}

// Direction is the fixed wiring direction of a line.
type Direction int

const (
	// Input lines are read through the status register.
	Input Direction = iota
	// Output lines drive the DOUT bank.
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// EventKind says which hardware condition produced a PendingEvent.
type EventKind int

const (
	// EventEdge is a line transition.
	EventEdge EventKind = iota
	// EventMatch is a counter reaching its compare value.
	EventMatch
)

func (k EventKind) String() string {
	if k == EventMatch {
		return "match"
	}
	return "edge"
}

// PendingEvent is one demultiplexed interrupt. Edge is the transition that fired, or
// gpio.NoEdge for match events.
type PendingEvent struct {
	Line int
	Edge gpio.Edge
	Kind EventKind
}

// IRQResult is the outcome of one pass of the interrupt handler.
type IRQResult int

const (
	// IRQNone means nothing enabled was pending; the interrupt belonged to another device.
	IRQNone IRQResult = iota
	// IRQHandled means at least one event was acknowledged and dispatched.
	IRQHandled
)

func (r IRQResult) String() string {
	if r == IRQHandled {
		return "handled"
	}
	return "none"
}

// FilterLevel is a debounce time constant for a group of four lines.
type FilterLevel uint8

const (
	// FilterNone passes transitions unfiltered.
	FilterNone FilterLevel = iota
	// Filter1ms suppresses pulses shorter than about 1ms.
	Filter1ms
	// Filter5ms suppresses pulses shorter than about 5ms.
	Filter5ms
	// Filter20ms suppresses pulses shorter than about 20ms.
	Filter20ms
)

// Duration returns the approximate time constant.
func (f FilterLevel) Duration() time.Duration {
	switch f {
	case Filter1ms:
		return time.Millisecond
	case Filter5ms:
		return 5 * time.Millisecond
	case Filter20ms:
		return 20 * time.Millisecond
	default:
		return 0
	}
}

func (f FilterLevel) String() string {
	switch f {
	case FilterNone:
		return "none"
	default:
		return f.Duration().String()
	}
}

// FilterLevelFromDuration picks the shortest level at least as long as d. Zero means none.
func FilterLevelFromDuration(d time.Duration) (FilterLevel, error) {
	for _, lvl := range []FilterLevel{FilterNone, Filter1ms, Filter5ms, Filter20ms} {
		if d <= lvl.Duration() {
			return lvl, nil
		}
	}
	return 0, unsupportedf("filter of %s exceeds %s", d, Filter20ms.Duration())
}
