package xio

import "github.com/pkg/errors"

func (c *Controller) checkCounter(line int) error {
	if err := c.checkLine(line); err != nil {
		return err
	}
	if line >= c.variant.Counters {
		return unsupportedf("line %d has no counter (%s has %d)", line, c.variant.Name, c.variant.Counters)
	}
	return nil
}

func (c *Controller) counterMax() uint32 {
	return 1<<c.variant.CounterWidth - 1
}

// EnableCounter starts or stops the pulse counter of line. Stopping keeps the count.
func (c *Controller) EnableCounter(line int, enable bool) error {
	if err := c.checkCounter(line); err != nil {
		return err
	}
	bit := uint32(1) << uint(line)
	val := uint32(0)
	if enable {
		val = bit
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)
	return c.update("counter enable", c.layout.CounterControl, bit, val)
}

// CounterEnabled reports whether the counter of line is running.
func (c *Controller) CounterEnabled(line int) (bool, error) {
	if err := c.checkCounter(line); err != nil {
		return false, err
	}
	v, err := c.read("counter control", c.layout.CounterControl)
	if err != nil {
		return false, err
	}
	return v&(1<<uint(line)) != 0, nil
}

// ReadCounter returns the count of line, extended by one bit when the counter has overflowed
// since the last read. The extension is skipped when the raw count sits at its maximum, so a
// read taken exactly at wraparound is not counted twice. The overflow flag is cleared.
func (c *Controller) ReadCounter(line int) (uint32, error) {
	if err := c.checkCounter(line); err != nil {
		return 0, err
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)
	return c.readCounterLocked(line)
}

func (c *Controller) readCounterLocked(line int) (uint32, error) {
	raw, overflowed, err := c.readRawLocked(line)
	if err != nil || !overflowed || raw == c.counterMax() {
		return raw, err
	}
	return raw | 1<<c.variant.CounterWidth, nil
}

// ReadCounterRaw returns the raw count of line and whether it wrapped since the last read,
// clearing the overflow flag in the same locked section. Callers that keep their own wrap count
// use it instead of ReadCounter, whose extension is skipped at the maximum count.
func (c *Controller) ReadCounterRaw(line int) (raw uint32, overflowed bool, err error) {
	if err := c.checkCounter(line); err != nil {
		return 0, false, err
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)
	return c.readRawLocked(line)
}

func (c *Controller) readRawLocked(line int) (uint32, bool, error) {
	raw, err := c.read("counter read", c.layout.Count(line))
	if err != nil {
		return 0, false, err
	}
	raw &= c.counterMax()

	overflow, err := c.read("counter overflow", c.layout.Overflow)
	if err != nil {
		return 0, false, err
	}
	bit := uint32(1) << uint(line)
	if overflow&bit == 0 {
		return raw, false, nil
	}
	if err := c.write("counter overflow clear", c.layout.Overflow, bit); err != nil {
		return 0, false, err
	}
	return raw, true, nil
}

// SetCounter loads the count of line and clears its overflow flag.
func (c *Controller) SetCounter(line int, value uint32) error {
	if err := c.checkCounter(line); err != nil {
		return err
	}
	if value > c.counterMax() {
		return errors.Errorf("count %d exceeds %d-bit counter", value, c.variant.CounterWidth)
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)
	if err := c.write("counter load", c.layout.Count(line), value); err != nil {
		return err
	}
	return c.write("counter overflow clear", c.layout.Overflow, 1<<uint(line))
}

// CounterOverflow reports the overflow flag of line without clearing it.
func (c *Controller) CounterOverflow(line int) (bool, error) {
	if err := c.checkCounter(line); err != nil {
		return false, err
	}
	v, err := c.read("counter overflow", c.layout.Overflow)
	if err != nil {
		return false, err
	}
	return v&(1<<uint(line)) != 0, nil
}

// ClearCounterOverflow clears the overflow flag of line.
func (c *Controller) ClearCounterOverflow(line int) error {
	if err := c.checkCounter(line); err != nil {
		return err
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)
	return c.write("counter overflow clear", c.layout.Overflow, 1<<uint(line))
}

// SetCounterMatch sets the compare value of line's counter. Reaching it raises a match event
// once the match is enabled. Matches never touch the overflow flag.
func (c *Controller) SetCounterMatch(line int, threshold uint32) error {
	if err := c.checkCounter(line); err != nil {
		return err
	}
	if threshold > c.counterMax() {
		return errors.Errorf("compare value %d exceeds %d-bit counter", threshold, c.variant.CounterWidth)
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)
	return c.write("counter compare", c.layout.Compare(line), threshold)
}

// CounterMatch returns the compare value of line's counter.
func (c *Controller) CounterMatch(line int) (uint32, error) {
	if err := c.checkCounter(line); err != nil {
		return 0, err
	}
	v, err := c.read("counter compare", c.layout.Compare(line))
	if err != nil {
		return 0, err
	}
	return v & c.counterMax(), nil
}

// EnableCounterMatch enables or disables the match interrupt of line's counter.
func (c *Controller) EnableCounterMatch(line int, enable bool) error {
	if err := c.checkCounter(line); err != nil {
		return err
	}
	bit := uint32(1) << uint(line)
	val := uint32(0)
	if enable {
		val = bit
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)
	if enable {
		// A match latched while disabled is stale.
		if err := c.write("match ack", c.layout.MatchStatus, bit); err != nil {
			return err
		}
	}
	return c.update("match enable", c.layout.MatchEnable, bit, val)
}
