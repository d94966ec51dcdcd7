//go:build linux && !tinygo

package mmio

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrBusFault is returned when the mapped device does not answer an access.
var ErrBusFault = errors.New("bus fault on register access")

// Map is a Window over physical memory mapped from a device node such as /dev/mem or
// /dev/uio0.
type Map struct {
	mu     sync.Mutex
	key    string
	mem    []byte
	base   uint32
	size   uint32
	closed bool
}

// OpenMap maps size bytes at physical (or device) offset phys of path. The offset does not need
// to be page aligned.
func OpenMap(path string, phys int64, size uint32) (*Map, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	//nolint:errcheck
	defer file.Close()

	pageSize := int64(os.Getpagesize())
	pageBase := phys &^ (pageSize - 1)
	delta := uint32(phys - pageBase)
	length := int(delta + size)

	mem, err := unix.Mmap(int(file.Fd()), pageBase, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %s at 0x%x", path, phys)
	}
	key := fmt.Sprintf("%s@0x%x", filepath.Clean(path), phys)
	if abs, err := filepath.EvalSymlinks(path); err == nil {
		key = fmt.Sprintf("%s@0x%x", abs, phys)
	}
	return &Map{key: key, mem: mem, base: delta, size: size}, nil
}

// Key identifies the mapped registers as device path and physical offset.
func (m *Map) Key() string {
	return m.key
}

// Size returns the mapped register span in bytes.
func (m *Map) Size() uint32 {
	return m.size
}

// Read8 reads one byte register.
func (m *Map) Read8(offset uint32) (v uint8, err error) {
	err = m.access(offset, 1, func(p unsafe.Pointer) { v = load8(p) })
	return v, err
}

// Write8 writes one byte register.
func (m *Map) Write8(offset uint32, value uint8) error {
	return m.access(offset, 1, func(p unsafe.Pointer) { store8(p, value) })
}

// Read16 reads one halfword register.
func (m *Map) Read16(offset uint32) (v uint16, err error) {
	err = m.access(offset, 2, func(p unsafe.Pointer) { v = load16(p) })
	return v, err
}

// Write16 writes one halfword register.
func (m *Map) Write16(offset uint32, value uint16) error {
	return m.access(offset, 2, func(p unsafe.Pointer) { store16(p, value) })
}

// Close unmaps the window.
func (m *Map) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return unix.Munmap(m.mem)
}

func (m *Map) access(offset, width uint32, fn func(unsafe.Pointer)) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	if err := checkRange(m, offset, width); err != nil {
		return err
	}

	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrBusFault, "offset 0x%02x: %v", offset, r)
		}
	}()
	fn(unsafe.Pointer(&m.mem[m.base+offset]))
	return nil
}

//go:noinline
func load8(p unsafe.Pointer) uint8 { return *(*uint8)(p) }

//go:noinline
func store8(p unsafe.Pointer, v uint8) { *(*uint8)(p) = v }

//go:noinline
func load16(p unsafe.Pointer) uint16 { return *(*uint16)(p) }

//go:noinline
func store16(p unsafe.Pointer, v uint16) { *(*uint16)(p) = v }
