package xio

import (
	"github.com/centurysys/linux-kernel-MAE-sub003/logging"
	"github.com/centurysys/linux-kernel-MAE-sub003/xio/sim"
)

// SimConfig returns the simulator configuration matching v.
func SimConfig(v Variant) sim.Config {
	return sim.Config{
		Lines:        v.Lines,
		RegBytes:     v.RegBytes,
		Counters:     v.Counters,
		CounterWidth: v.CounterWidth,
		Layout:       v.Layout,
	}
}

// NewSimulated builds a controller over a simulated block of variant v.
func NewSimulated(v Variant, logger logging.Logger) (*Controller, *sim.Device, error) {
	dev := sim.New(SimConfig(v))
	c, err := New(Config{Variant: v, Window: dev, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return c, dev, nil
}
