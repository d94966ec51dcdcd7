// Package mmio provides register windows over memory-mapped I/O and the typed register banks
// drivers use to talk to them.
package mmio

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrWindowBusy is returned when a window is claimed by a second owner.
var ErrWindowBusy = errors.New("register window already claimed")

// ErrOutOfRange is returned for an access that falls outside the window.
var ErrOutOfRange = errors.New("register access out of window range")

// A Window is a span of device registers. Every access either completes on the bus or returns
// an error; implementations never retry.
type Window interface {
	Read8(offset uint32) (uint8, error)
	Write8(offset uint32, value uint8) error
	Read16(offset uint32) (uint16, error)
	Write16(offset uint32, value uint16) error

	// Size is the number of addressable bytes.
	Size() uint32
	Close() error
}

// A Keyed window names the physical registers it maps. Two windows with the same key are the
// same hardware, however many times it was mapped.
type Keyed interface {
	Key() string
}

var claims sync.Map

func claimKey(w Window) interface{} {
	if k, ok := w.(Keyed); ok {
		return k.Key()
	}
	return w
}

// Claim marks w as owned by one driver instance. The returned release func must be called when
// the owner goes away. A second Claim of the same window, or of another mapping of the same
// physical registers, fails with ErrWindowBusy.
func Claim(w Window) (func(), error) {
	key := claimKey(w)
	if _, loaded := claims.LoadOrStore(key, struct{}{}); loaded {
		return nil, errors.Wrapf(ErrWindowBusy, "%v", key)
	}
	var once sync.Once
	return func() {
		once.Do(func() { claims.Delete(key) })
	}, nil
}

func checkRange(w Window, offset, width uint32) error {
	if offset+width > w.Size() || offset+width < offset {
		return errors.Wrapf(ErrOutOfRange, "offset 0x%02x width %d size 0x%02x", offset, width, w.Size())
	}
	return nil
}
