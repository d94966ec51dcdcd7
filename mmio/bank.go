package mmio

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Registers is a bank of same-width registers in a window. The read-modify-write helpers are not
// atomic with respect to other users of the bank; callers serialize them.
type Registers interface {
	Read(offset uint32) (uint32, error)
	Write(offset uint32, value uint32) error
	SetBit(offset uint32, bit uint) error
	ClearBit(offset uint32, bit uint) error
	// Update replaces the bits selected by mask with the matching bits of value.
	Update(offset uint32, mask, value uint32) error
	// Width is the register width in bits.
	Width() uint
}

type accessor[T constraints.Unsigned] struct {
	read  func(uint32) (T, error)
	write func(uint32, T) error
}

type bank[T constraints.Unsigned] struct {
	acc   accessor[T]
	width uint
}

// NewBank8 returns 8-bit registers over w.
func NewBank8(w Window) Registers {
	return &bank[uint8]{acc: accessor[uint8]{read: w.Read8, write: w.Write8}, width: 8}
}

// NewBank16 returns 16-bit registers over w.
func NewBank16(w Window) Registers {
	return &bank[uint16]{acc: accessor[uint16]{read: w.Read16, write: w.Write16}, width: 16}
}

func (b *bank[T]) Width() uint {
	return b.width
}

func (b *bank[T]) Read(offset uint32) (uint32, error) {
	v, err := b.acc.read(offset)
	return uint32(v), err
}

func (b *bank[T]) Write(offset uint32, value uint32) error {
	return b.acc.write(offset, T(value))
}

func (b *bank[T]) SetBit(offset uint32, bit uint) error {
	return b.Update(offset, b.bitMask(bit), b.bitMask(bit))
}

func (b *bank[T]) ClearBit(offset uint32, bit uint) error {
	return b.Update(offset, b.bitMask(bit), 0)
}

func (b *bank[T]) Update(offset uint32, mask, value uint32) error {
	cur, err := b.acc.read(offset)
	if err != nil {
		return err
	}
	next := (cur &^ T(mask)) | (T(value) & T(mask))
	if next == cur {
		return nil
	}
	return b.acc.write(offset, next)
}

func (b *bank[T]) bitMask(bit uint) uint32 {
	if bit >= b.width {
		panic(fmt.Sprintf("bit %d out of range for %d-bit register", bit, b.width))
	}
	return 1 << bit
}
