package mmio

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
)

// Memory is a Window backed by an ordinary byte slice. Registers are little endian.
type Memory struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
}

// NewMemory returns a zeroed window of the given size.
func NewMemory(size uint32) *Memory {
	return &Memory{buf: make([]byte, size)}
}

var errClosed = errors.New("register window closed")

// Read8 reads one byte register.
func (m *Memory) Read8(offset uint32) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.buf[offset], nil
}

// Write8 writes one byte register.
func (m *Memory) Write8(offset uint32, value uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.buf[offset] = value
	return nil
}

// Read16 reads one halfword register.
func (m *Memory) Read16(offset uint32) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.buf[offset:]), nil
}

// Write16 writes one halfword register.
func (m *Memory) Write16(offset uint32, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.buf[offset:], value)
	return nil
}

// Size returns the window length in bytes.
func (m *Memory) Size() uint32 {
	return uint32(len(m.buf))
}

// Close makes every later access fail.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) check(offset, width uint32) error {
	if m.closed {
		return errClosed
	}
	return checkRange(m, offset, width)
}
