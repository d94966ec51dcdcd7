package xio

// FilterGroup returns the debounce group of line. Lines 4g..4g+3 share group g.
func FilterGroup(line int) int {
	return line / 4
}

func filterShift(line int) uint {
	return uint(2 * FilterGroup(line))
}

// SetFilter sets the debounce filter of the group containing line. The setting applies to every
// line in the group.
func (c *Controller) SetFilter(line int, level FilterLevel) error {
	if err := c.checkLine(line); err != nil {
		return err
	}
	if !c.variant.HasFilter {
		return unsupportedf("%s has no input filter", c.variant.Name)
	}
	if level > Filter20ms {
		return unsupportedf("filter level %d", level)
	}
	shift := filterShift(line)

	st := c.mu.lock()
	err := c.update("filter", c.layout.Filter, 3<<shift, uint32(level)<<shift)
	c.mu.unlock(st)
	if err != nil {
		return err
	}
	group := FilterGroup(line)
	c.logger.Debugw("filter set", "group", group, "lines", []int{4 * group, 4*group + 3}, "level", level.String())
	return nil
}

// Filter returns the debounce filter of the group containing line.
func (c *Controller) Filter(line int) (FilterLevel, error) {
	if err := c.checkLine(line); err != nil {
		return FilterNone, err
	}
	if !c.variant.HasFilter {
		return FilterNone, unsupportedf("%s has no input filter", c.variant.Name)
	}
	v, err := c.read("filter", c.layout.Filter)
	if err != nil {
		return FilterNone, err
	}
	return FilterLevel(v>>filterShift(line)) & 3, nil
}
