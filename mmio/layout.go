package mmio

import "github.com/pkg/errors"

// Layout describes where each register of an xio-style block lives in its window.
type Layout struct {
	Status         uint32
	Output         uint32
	IntStatus      uint32
	IntEnable      uint32
	EdgeSelect     uint32
	Filter         uint32
	CounterControl uint32
	MatchStatus    uint32
	MatchEnable    uint32
	Overflow       uint32
	CountBase      uint32
	CompareBase    uint32
	// CounterStride is the distance in bytes between consecutive count or compare registers.
	CounterStride uint32
}

// DefaultLayout is the register map shared by the plum-gpio, xioirq and Magnolia2 DIO blocks.
var DefaultLayout = Layout{
	Status:         0x00,
	Output:         0x02,
	IntStatus:      0x04,
	IntEnable:      0x08,
	EdgeSelect:     0x0C,
	Filter:         0x10,
	CounterControl: 0x12,
	MatchStatus:    0x14,
	MatchEnable:    0x16,
	Overflow:       0x18,
	CountBase:      0x1A,
	CompareBase:    0x22,
	CounterStride:  2,
}

// Count returns the offset of the count register of counter i.
func (l Layout) Count(i int) uint32 {
	return l.CountBase + uint32(i)*l.CounterStride
}

// Compare returns the offset of the compare register of counter i.
func (l Layout) Compare(i int) uint32 {
	return l.CompareBase + uint32(i)*l.CounterStride
}

// Validate checks that counters fit between their bases without overlapping and that the
// window is large enough for every register at the given width in bytes.
func (l Layout) Validate(windowSize uint32, regBytes uint32, counters int) error {
	if regBytes != 1 && regBytes != 2 {
		return errors.Errorf("unsupported register width %d bytes", regBytes)
	}
	if counters > 0 {
		if l.CounterStride < regBytes {
			return errors.Errorf("counter stride %d smaller than register width %d", l.CounterStride, regBytes)
		}
		countEnd := l.Count(counters-1) + regBytes
		compareEnd := l.Compare(counters-1) + regBytes
		if l.CountBase < l.CompareBase && countEnd > l.CompareBase {
			return errors.Errorf("count registers [0x%02x,0x%02x) overlap compare base 0x%02x",
				l.CountBase, countEnd, l.CompareBase)
		}
		if l.CompareBase < l.CountBase && compareEnd > l.CountBase {
			return errors.Errorf("compare registers [0x%02x,0x%02x) overlap count base 0x%02x",
				l.CompareBase, compareEnd, l.CountBase)
		}
		if l.CompareBase == l.CountBase {
			return errors.New("count and compare registers share a base")
		}
	}
	if end := l.End(regBytes, counters); end > windowSize {
		return errors.Errorf("layout needs 0x%02x bytes, window has 0x%02x", end, windowSize)
	}
	return nil
}

// End returns one past the highest byte the layout touches.
func (l Layout) End(regBytes uint32, counters int) uint32 {
	end := uint32(0)
	for _, off := range []uint32{
		l.Status, l.Output, l.IntStatus, l.IntEnable, l.EdgeSelect, l.Filter,
		l.CounterControl, l.MatchStatus, l.MatchEnable, l.Overflow,
	} {
		if off+regBytes > end {
			end = off + regBytes
		}
	}
	if counters > 0 {
		for _, off := range []uint32{l.Count(counters - 1), l.Compare(counters - 1)} {
			if off+regBytes > end {
				end = off + regBytes
			}
		}
	}
	return end
}
