//go:build !linux || tinygo

package mmio

import "github.com/pkg/errors"

// ErrBusFault is returned when the mapped device does not answer an access.
var ErrBusFault = errors.New("bus fault on register access")

// Map is unavailable on this platform.
type Map struct {
	Memory
}

// OpenMap always fails: memory mapping device nodes needs Linux.
func OpenMap(path string, phys int64, size uint32) (*Map, error) {
	return nil, errors.Errorf("cannot map %s: unsupported platform", path)
}
