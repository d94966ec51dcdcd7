package xio

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/centurysys/linux-kernel-MAE-sub003/mmio"
)

// A Variant describes one hardware flavour of the controller block.
type Variant struct {
	Name string
	// Lines is the number of GPIO lines, 8 or 16.
	Lines int
	// RegBytes is the register access width: 1 for the 8-bit blocks, 2 for the 16-bit ones.
	RegBytes uint32
	// Counters is the number of pulse counters. Counter i is bound to line i.
	Counters int
	// CounterWidth is the width in bits of the raw count register.
	CounterWidth uint
	// HasFilter is set when the block has the group debounce filter register.
	HasFilter bool
	// OutputMask has a bit set for every line wired as an output. Outputs need a DOUT bank.
	OutputMask uint32
	Layout     mmio.Layout
}

func byteStrideLayout() mmio.Layout {
	l := mmio.DefaultLayout
	l.CounterStride = 1
	return l
}

var (
	// PlumGPIO is the 8-line input block with no counters or filter.
	PlumGPIO = Variant{
		Name:     "plum-gpio",
		Lines:    8,
		RegBytes: 1,
		Layout:   mmio.DefaultLayout,
	}

	// XIOIRQ is the 8-line input block with a counter per line and the debounce filter.
	XIOIRQ = Variant{
		Name:         "xioirq",
		Lines:        8,
		RegBytes:     1,
		Counters:     8,
		CounterWidth: 8,
		HasFilter:    true,
		// Eight 8-bit counts packed from 0x1A end at 0x21; a 2-byte stride would run into the
		// compare registers at 0x22.
		Layout:       byteStrideLayout(),
	}

	// MagnoliaDIO is the Magnolia2 DIO block: lines 0-7 are inputs, 8-15 drive the DOUT bank.
	MagnoliaDIO = Variant{
		Name:         "magnolia2-dio",
		Lines:        16,
		RegBytes:     2,
		Counters:     4,
		CounterWidth: 16,
		HasFilter:    true,
		OutputMask:   0xFF00,
		Layout:       mmio.DefaultLayout,
	}
)

// Variants lists the built in variants.
var Variants = []Variant{PlumGPIO, XIOIRQ, MagnoliaDIO}

// VariantByName looks a built in variant up by name, ignoring case.
func VariantByName(name string) (Variant, error) {
	for _, v := range Variants {
		if strings.EqualFold(v.Name, name) {
			return v, nil
		}
	}
	return Variant{}, errors.Errorf("unknown xio variant %q", name)
}

// Validate checks the variant is self consistent.
func (v Variant) Validate() error {
	if v.Lines != 8 && v.Lines != 16 {
		return errors.Errorf("variant %q: line count must be 8 or 16, got %d", v.Name, v.Lines)
	}
	if uint(v.Lines) > uint(v.RegBytes)*8 {
		return errors.Errorf("variant %q: %d lines do not fit %d-byte registers", v.Name, v.Lines, v.RegBytes)
	}
	if v.Counters < 0 || v.Counters > 8 || v.Counters > v.Lines {
		return errors.Errorf("variant %q: bad counter count %d", v.Name, v.Counters)
	}
	if v.Counters > 0 && (v.CounterWidth == 0 || v.CounterWidth > uint(v.RegBytes)*8) {
		return errors.Errorf("variant %q: bad counter width %d", v.Name, v.CounterWidth)
	}
	if v.OutputMask&^v.lineMask() != 0 {
		return errors.Errorf("variant %q: output mask 0x%x names missing lines", v.Name, v.OutputMask)
	}
	if v.OutputMask&v.counterMask() != 0 {
		return errors.Errorf("variant %q: counters bound to output lines", v.Name)
	}
	return nil
}

func (v Variant) lineMask() uint32 {
	return 1<<uint(v.Lines) - 1
}

func (v Variant) counterMask() uint32 {
	return 1<<uint(v.Counters) - 1
}

func (v Variant) filterGroups() int {
	return (v.Lines + 3) / 4
}
