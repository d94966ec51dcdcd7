package xio

import "periph.io/x/conn/v3/gpio"

// Direction reports how line is wired. Direction is fixed by the hardware.
func (c *Controller) Direction(line int) (Direction, error) {
	if err := c.checkLine(line); err != nil {
		return Input, err
	}
	if c.isOutput(line) {
		return Output, nil
	}
	return Input, nil
}

// SetDirection succeeds only when dir is the wired direction of line.
func (c *Controller) SetDirection(line int, dir Direction) error {
	cur, err := c.Direction(line)
	if err != nil {
		return err
	}
	if dir != cur {
		return unsupportedf("line %d is wired as %s", line, cur)
	}
	return nil
}

// Get returns the level of line. Inputs read the status register, outputs read back the
// output latch.
func (c *Controller) Get(line int) (gpio.Level, error) {
	if err := c.checkLine(line); err != nil {
		return gpio.Low, err
	}
	op, off := "get", c.layout.Status
	if c.isOutput(line) {
		op, off = "get output", c.layout.Output
	}
	v, err := c.read(op, off)
	if err != nil {
		return gpio.Low, err
	}
	return gpio.Level(v&(1<<uint(line)) != 0), nil
}

// Set drives an output line.
func (c *Controller) Set(line int, level gpio.Level) error {
	if err := c.checkLine(line); err != nil {
		return err
	}
	if !c.isOutput(line) {
		return unsupportedf("set on input line %d", line)
	}
	bit := uint32(1) << uint(line)
	val := uint32(0)
	if level {
		val = bit
	}

	st := c.mu.lock()
	defer c.mu.unlock(st)
	return c.update("set output", c.layout.Output, bit, val)
}
