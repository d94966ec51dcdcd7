//go:build tinygo

package mmio

import (
	"runtime/volatile"
	"unsafe"
)

// Volatile is a Window over registers at a fixed physical address, for bare-metal targets where
// the block is visible without a mapping.
type Volatile struct {
	base uintptr
	size uint32
}

// NewVolatile returns a window of size bytes at base.
func NewVolatile(base uintptr, size uint32) *Volatile {
	return &Volatile{base: base, size: size}
}

// Size returns the register span in bytes.
func (v *Volatile) Size() uint32 { return v.size }

// Close is a no-op.
func (v *Volatile) Close() error { return nil }

// Read8 reads one byte register.
func (v *Volatile) Read8(offset uint32) (uint8, error) {
	if err := checkRange(v, offset, 1); err != nil {
		return 0, err
	}
	return volatile.LoadUint8((*uint8)(unsafe.Pointer(v.base + uintptr(offset)))), nil
}

// Write8 writes one byte register.
func (v *Volatile) Write8(offset uint32, value uint8) error {
	if err := checkRange(v, offset, 1); err != nil {
		return err
	}
	volatile.StoreUint8((*uint8)(unsafe.Pointer(v.base+uintptr(offset))), value)
	return nil
}

// Read16 reads one halfword register.
func (v *Volatile) Read16(offset uint32) (uint16, error) {
	if err := checkRange(v, offset, 2); err != nil {
		return 0, err
	}
	return volatile.LoadUint16((*uint16)(unsafe.Pointer(v.base + uintptr(offset)))), nil
}

// Write16 writes one halfword register.
func (v *Volatile) Write16(offset uint32, value uint16) error {
	if err := checkRange(v, offset, 2); err != nil {
		return err
	}
	volatile.StoreUint16((*uint16)(unsafe.Pointer(v.base+uintptr(offset))), value)
	return nil
}
