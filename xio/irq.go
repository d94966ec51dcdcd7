package xio

import (
	"math/bits"

	"periph.io/x/conn/v3/gpio"
)

// Configure sets the trigger of line. gpio.BothEdges is emulated: the line is armed for the
// edge opposite its current level and the edge select is flipped after every event.
// Configuring any edge unmasks the line; gpio.NoEdge disables it.
func (c *Controller) Configure(line int, edge gpio.Edge) error {
	if err := c.checkLine(line); err != nil {
		return err
	}
	if c.isOutput(line) {
		return unsupportedf("interrupt on output line %d", line)
	}
	switch edge {
	case gpio.NoEdge, gpio.RisingEdge, gpio.FallingEdge, gpio.BothEdges:
	default:
		return unsupportedf("edge %v on line %d", edge, line)
	}

	st := c.mu.lock()
	next, err := c.configureLocked(line, edge)
	c.mu.unlock(st)
	if err != nil {
		return err
	}
	c.logger.Debugw("configured line", "line", line, "edge", edge.String(), "state", next.String())
	return nil
}

func (c *Controller) configureLocked(line int, edge gpio.Edge) (EdgeState, error) {
	l := c.layout
	bit := uint32(1) << uint(line)
	ls := &c.lines[line]

	if edge == gpio.NoEdge {
		if err := c.update("configure enable", l.IntEnable, bit, 0); err != nil {
			return ls.state, err
		}
		if err := c.update("configure edge select", l.EdgeSelect, bit, 0); err != nil {
			return ls.state, err
		}
		ls.state, ls.masked = Disabled, false
		return Disabled, nil
	}

	// Mask and drop anything latched under the old polarity before sampling the level.
	if err := c.update("configure enable", l.IntEnable, bit, 0); err != nil {
		return ls.state, err
	}
	if err := c.write("configure ack", l.IntStatus, bit); err != nil {
		return ls.state, err
	}

	next := ArmedRising
	switch edge {
	case gpio.FallingEdge:
		next = ArmedFalling
	case gpio.BothEdges:
		high, err := c.levelLocked("configure level", bit)
		if err != nil {
			return ls.state, err
		}
		next = bothEdgeState(high)
	}
	if err := c.update("configure edge select", l.EdgeSelect, bit, edgeSelectBits(next, bit)); err != nil {
		return ls.state, err
	}
	// An edge that latched while the select was being rewritten has no meaning under either
	// polarity.
	if err := c.write("configure ack", l.IntStatus, bit); err != nil {
		return ls.state, err
	}
	if err := c.update("configure enable", l.IntEnable, bit, bit); err != nil {
		return ls.state, err
	}
	ls.state, ls.masked = next, false

	if edge == gpio.BothEdges {
		return c.settleBothLocked(line)
	}
	return next, nil
}

// bothEdgeState is the both-edge state that watches for the edge leaving the given level.
func bothEdgeState(high bool) EdgeState {
	if high {
		return ArmedBothViaFalling
	}
	return ArmedBothViaRising
}

func (c *Controller) levelLocked(op string, bit uint32) (bool, error) {
	status, err := c.read(op, c.layout.Status)
	if err != nil {
		return false, err
	}
	return status&bit != 0, nil
}

// settleBothLocked re-reads the level of a freshly armed both-edge line. A transition between
// the level sample and the unmask leaves the line armed for the edge it already made; such a
// line is flipped to follow the current level. A latched edge is left for the handler.
func (c *Controller) settleBothLocked(line int) (EdgeState, error) {
	const tries = 3
	l := c.layout
	bit := uint32(1) << uint(line)
	ls := &c.lines[line]
	for i := 0; i < tries; i++ {
		pending, err := c.read("configure settle", l.IntStatus)
		if err != nil {
			return ls.state, err
		}
		if pending&bit != 0 {
			break
		}
		high, err := c.levelLocked("configure settle level", bit)
		if err != nil {
			return ls.state, err
		}
		want := bothEdgeState(high)
		if want == ls.state {
			break
		}
		if err := c.update("configure edge select", l.EdgeSelect, bit, edgeSelectBits(want, bit)); err != nil {
			return ls.state, err
		}
		ls.state = want
	}
	return ls.state, nil
}

// edge select: 1 = rising, 0 = falling.
func edgeSelectBits(s EdgeState, bit uint32) uint32 {
	if s.armed() == gpio.RisingEdge {
		return bit
	}
	return 0
}

// State returns the interrupt state of line.
func (c *Controller) State(line int) (EdgeState, error) {
	if err := c.checkLine(line); err != nil {
		return Disabled, err
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)
	return c.lines[line].state, nil
}

// Masked reports whether line is masked.
func (c *Controller) Masked(line int) (bool, error) {
	if err := c.checkLine(line); err != nil {
		return false, err
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)
	return c.lines[line].masked, nil
}

// Mask stops dispatch for line without forgetting its configuration.
func (c *Controller) Mask(line int) error {
	return c.setMasked(line, true)
}

// Unmask resumes dispatch for line in the state it was masked in.
func (c *Controller) Unmask(line int) error {
	return c.setMasked(line, false)
}

func (c *Controller) setMasked(line int, masked bool) error {
	if err := c.checkLine(line); err != nil {
		return err
	}
	if c.isOutput(line) {
		return unsupportedf("mask on output line %d", line)
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)

	ls := &c.lines[line]
	ls.masked = masked
	if ls.state == Disabled {
		return nil
	}
	bit := uint32(1) << uint(line)
	val := bit
	if masked {
		val = 0
	}
	return c.update("mask", c.layout.IntEnable, bit, val)
}

// HandleIRQ services the block once: it acknowledges everything enabled and pending with a
// single write, re-arms both-edge lines and dispatches one event per set bit, lowest line
// first. It returns IRQNone without touching any register but the status reads when nothing
// enabled is pending.
func (c *Controller) HandleIRQ() (IRQResult, error) {
	return c.handle(false)
}

func (c *Controller) handle(rescan bool) (IRQResult, error) {
	if err := c.check(); err != nil {
		return IRQNone, err
	}
	st := c.mu.lock()
	events, dispatcher, err := c.serviceLocked()
	c.mu.unlock(st)
	if err != nil {
		return IRQNone, err
	}
	if len(events) == 0 {
		if !rescan {
			c.stats.spurious.Inc()
		}
		return IRQNone, nil
	}

	c.stats.handled.Inc()
	if rescan {
		c.stats.rescans.Inc()
	}
	for _, ev := range events {
		if ev.Kind == EventMatch {
			c.stats.matches.Inc()
		}
		if dispatcher != nil {
			dispatcher.Dispatch(ev)
		}
	}
	c.stats.dispatched.Add(uint64(len(events)))
	return IRQHandled, nil
}

func (c *Controller) serviceLocked() ([]PendingEvent, Dispatcher, error) {
	l := c.layout
	pending, err := c.read("irq status", l.IntStatus)
	if err != nil {
		return nil, nil, err
	}
	enabled, err := c.read("irq enable", l.IntEnable)
	if err != nil {
		return nil, nil, err
	}
	active := pending & enabled & c.variant.lineMask()

	var matchActive uint32
	if c.variant.Counters > 0 {
		matchPending, err := c.read("match status", l.MatchStatus)
		if err != nil {
			return nil, nil, err
		}
		matchEnabled, err := c.read("match enable", l.MatchEnable)
		if err != nil {
			return nil, nil, err
		}
		matchActive = matchPending & matchEnabled & c.variant.counterMask()
	}
	if active == 0 && matchActive == 0 {
		return nil, nil, nil
	}

	// Acknowledge before dispatch so an edge arriving meanwhile latches again; the read back
	// orders the acknowledgement ahead of anything the dispatcher does.
	if active != 0 {
		if err := c.write("irq ack", l.IntStatus, active); err != nil {
			return nil, nil, err
		}
		if _, err := c.read("irq ack fence", l.IntStatus); err != nil {
			return nil, nil, err
		}
	}
	if matchActive != 0 {
		if err := c.write("match ack", l.MatchStatus, matchActive); err != nil {
			return nil, nil, err
		}
		if _, err := c.read("match ack fence", l.MatchStatus); err != nil {
			return nil, nil, err
		}
	}

	events := make([]PendingEvent, 0, bits.OnesCount32(active)+bits.OnesCount32(matchActive))
	for line := 0; line < c.variant.Lines; line++ {
		bit := uint32(1) << uint(line)
		if active&bit != 0 {
			ls := &c.lines[line]
			edge := ls.state.armed()
			if ls.state.both() {
				next := ls.state.flipped()
				if err := c.update("rearm edge select", l.EdgeSelect, bit, edgeSelectBits(next, bit)); err != nil {
					return nil, nil, err
				}
				ls.state = next
			}
			events = append(events, PendingEvent{Line: line, Edge: edge, Kind: EventEdge})
		}
		if matchActive&bit != 0 {
			events = append(events, PendingEvent{Line: line, Edge: gpio.NoEdge, Kind: EventMatch})
		}
	}
	return events, c.dispatcher, nil
}
