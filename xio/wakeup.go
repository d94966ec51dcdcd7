package xio

// SetWakeupEligible marks whether line may wake the system from a low power state.
func (c *Controller) SetWakeupEligible(line int, eligible bool) error {
	if err := c.checkLine(line); err != nil {
		return err
	}
	if c.isOutput(line) {
		return unsupportedf("wakeup on output line %d", line)
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)
	c.lines[line].wakeup = eligible
	return nil
}

// WakeupEligible reports the wakeup flag of line.
func (c *Controller) WakeupEligible(line int) (bool, error) {
	if err := c.checkLine(line); err != nil {
		return false, err
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)
	return c.lines[line].wakeup, nil
}

// WakeupMask returns the lines a power manager should leave armed when suspending: those marked
// eligible whose edge or counter match interrupt is currently enabled.
func (c *Controller) WakeupMask() (uint32, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	st := c.mu.lock()
	defer c.mu.unlock(st)

	var eligible uint32
	for i, ls := range c.lines {
		if ls.wakeup {
			eligible |= 1 << uint(i)
		}
	}
	if eligible == 0 {
		return 0, nil
	}
	enabled, err := c.read("wakeup enable", c.layout.IntEnable)
	if err != nil {
		return 0, err
	}
	if c.variant.Counters > 0 {
		matchEnabled, err := c.read("wakeup match enable", c.layout.MatchEnable)
		if err != nil {
			return 0, err
		}
		enabled |= matchEnabled & c.variant.counterMask()
	}
	return eligible & enabled, nil
}
