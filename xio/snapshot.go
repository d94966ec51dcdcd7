package xio

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// CounterSnapshot is the raw state of one counter.
type CounterSnapshot struct {
	Raw          uint32
	Overflow     bool
	Enabled      bool
	Match        uint32
	MatchEnabled bool
}

// LineSnapshot is the state of one line at the time of a Snapshot.
type LineSnapshot struct {
	Line      int
	Direction Direction
	Level     gpio.Level
	State     EdgeState
	Masked    bool
	Pending   bool
	Wakeup    bool
	Filter    FilterLevel
	Counter   *CounterSnapshot
}

// Snapshot returns a consistent view of every line. It has no side effects on the hardware:
// overflow and pending flags are reported, not cleared.
func (c *Controller) Snapshot() ([]LineSnapshot, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)

	regs, err := c.dumpLocked()
	if err != nil {
		return nil, err
	}
	val := make(map[string]uint32, len(regs))
	for _, r := range regs {
		val[r.Name] = r.Value
	}

	out := make([]LineSnapshot, c.variant.Lines)
	for i := range out {
		bit := uint32(1) << uint(i)
		ls := c.lines[i]
		snap := LineSnapshot{
			Line:    i,
			Level:   gpio.Level(val["status"]&bit != 0),
			State:   ls.state,
			Masked:  ls.masked,
			Pending: val["int_status"]&bit != 0,
			Wakeup:  ls.wakeup,
		}
		if c.isOutput(i) {
			snap.Direction = Output
			snap.Level = gpio.Level(val["output"]&bit != 0)
		}
		if c.variant.HasFilter {
			snap.Filter = FilterLevel(val["filter"]>>filterShift(i)) & 3
		}
		if i < c.variant.Counters {
			snap.Counter = &CounterSnapshot{
				Raw:          val[fmt.Sprintf("count%d", i)] & c.counterMax(),
				Overflow:     val["overflow"]&bit != 0,
				Enabled:      val["counter_control"]&bit != 0,
				Match:        val[fmt.Sprintf("compare%d", i)] & c.counterMax(),
				MatchEnabled: val["match_enable"]&bit != 0,
			}
		}
		out[i] = snap
	}
	return out, nil
}

// Register is one named register value.
type Register struct {
	Name   string
	Offset uint32
	Value  uint32
}

// DumpRegisters reads every register the variant has, in offset order of the layout.
func (c *Controller) DumpRegisters() ([]Register, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)
	return c.dumpLocked()
}

func (c *Controller) dumpLocked() ([]Register, error) {
	l := c.layout
	regs := []Register{{Name: "status", Offset: l.Status}}
	if c.variant.OutputMask != 0 {
		regs = append(regs, Register{Name: "output", Offset: l.Output})
	}
	regs = append(regs,
		Register{Name: "int_status", Offset: l.IntStatus},
		Register{Name: "int_enable", Offset: l.IntEnable},
		Register{Name: "edge_select", Offset: l.EdgeSelect},
	)
	if c.variant.HasFilter {
		regs = append(regs, Register{Name: "filter", Offset: l.Filter})
	}
	if c.variant.Counters > 0 {
		regs = append(regs,
			Register{Name: "counter_control", Offset: l.CounterControl},
			Register{Name: "match_status", Offset: l.MatchStatus},
			Register{Name: "match_enable", Offset: l.MatchEnable},
			Register{Name: "overflow", Offset: l.Overflow},
		)
		for i := 0; i < c.variant.Counters; i++ {
			regs = append(regs, Register{Name: fmt.Sprintf("count%d", i), Offset: l.Count(i)})
		}
		for i := 0; i < c.variant.Counters; i++ {
			regs = append(regs, Register{Name: fmt.Sprintf("compare%d", i), Offset: l.Compare(i)})
		}
	}
	for i := range regs {
		v, err := c.read("dump "+regs[i].Name, regs[i].Offset)
		if err != nil {
			return nil, err
		}
		regs[i].Value = v
	}
	return regs, nil
}
