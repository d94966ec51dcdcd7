//go:build !tinygo

package xio

import "sync"

type irqState struct{}

// irqLock serializes register access. Hosted builds run the interrupt handler on an ordinary
// goroutine, so a mutex is interrupt safe here.
type irqLock struct {
	mu sync.Mutex
}

func (l *irqLock) lock() irqState {
	l.mu.Lock()
	return irqState{}
}

func (l *irqLock) unlock(irqState) {
	l.mu.Unlock()
}
