package xio

import "go.uber.org/atomic"

// Stats counts interrupt handler activity since the controller was created.
type Stats struct {
	// Handled is the number of handler passes that found work.
	Handled uint64
	// Spurious is the number of parent interrupts that belonged to another device.
	Spurious uint64
	// Dispatched is the number of events forwarded, edges and matches.
	Dispatched uint64
	// Matches is the number of counter match events among them.
	Matches uint64
	// Rescans is the number of extra passes that found work while serving one parent interrupt.
	Rescans uint64
}

type stats struct {
	handled    atomic.Uint64
	spurious   atomic.Uint64
	dispatched atomic.Uint64
	matches    atomic.Uint64
	rescans    atomic.Uint64
}

// Stats returns the handler counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Handled:    c.stats.handled.Load(),
		Spurious:   c.stats.spurious.Load(),
		Dispatched: c.stats.dispatched.Load(),
		Matches:    c.stats.matches.Load(),
		Rescans:    c.stats.rescans.Load(),
	}
}
