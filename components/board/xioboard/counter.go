package xioboard

import (
	"context"
	"sync"

	"github.com/centurysys/linux-kernel-MAE-sub003/components/board"
	"github.com/centurysys/linux-kernel-MAE-sub003/xio"
)

// counterInterrupt is a digital interrupt backed by the hardware pulse counter of its line.
// Its value extends the raw counter across wraps; a configured match delivers a high tick each
// time the raw counter reaches it.
type counterInterrupt struct {
	board.TickingInterrupt

	cfg   board.DigitalInterruptConfig
	chip  xio.Chip
	line  int
	width uint

	mu    sync.Mutex
	wraps int64
}

func newCounterInterrupt(chip xio.Chip, cfg board.DigitalInterruptConfig, line int, width uint) (*counterInterrupt, error) {
	ticks := cfg
	ticks.Type = board.InterruptBasic
	i, err := board.CreateDigitalInterrupt(ticks)
	if err != nil {
		return nil, err
	}

	if err := chip.SetCounter(line, 0); err != nil {
		return nil, err
	}
	if cfg.Match != 0 {
		if err := chip.SetCounterMatch(line, cfg.Match); err != nil {
			return nil, err
		}
		if err := chip.EnableCounterMatch(line, true); err != nil {
			return nil, err
		}
	}
	if err := chip.EnableCounter(line, true); err != nil {
		return nil, err
	}
	return &counterInterrupt{TickingInterrupt: i, cfg: cfg, chip: chip, line: line, width: width}, nil
}

func (c *counterInterrupt) Config() board.DigitalInterruptConfig {
	return c.cfg
}

// Value returns the number of rising edges counted since the board started.
func (c *counterInterrupt) Value(ctx context.Context, extra map[string]interface{}) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, overflowed, err := c.chip.ReadCounterRaw(c.line)
	if err != nil {
		return 0, err
	}
	if overflowed {
		c.wraps++
	}
	return c.wraps<<c.width + int64(raw), nil
}
