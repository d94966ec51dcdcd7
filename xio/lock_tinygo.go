//go:build tinygo

package xio

import "runtime/interrupt"

type irqState = interrupt.State

// irqLock masks interrupts for the critical section so the handler cannot preempt a
// read-modify-write on the same core.
type irqLock struct{}

func (l *irqLock) lock() irqState {
	return interrupt.Disable()
}

func (l *irqLock) unlock(state irqState) {
	interrupt.Restore(state)
}
