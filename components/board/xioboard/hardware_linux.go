//go:build linux

package xioboard

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/centurysys/linux-kernel-MAE-sub003/logging"
	"github.com/centurysys/linux-kernel-MAE-sub003/mmio"
	"github.com/centurysys/linux-kernel-MAE-sub003/parentirq"
	"github.com/centurysys/linux-kernel-MAE-sub003/uio"
	"github.com/centurysys/linux-kernel-MAE-sub003/xio"
)

// openHardware maps the register window of conf and opens its parent interrupt. The returned
// close function releases the parent; the window is closed by the controller.
func openHardware(conf *Config, v xio.Variant, logger logging.Logger) (mmio.Window, xio.ParentIRQ, func() error, error) {
	if strings.HasPrefix(conf.Device, "/dev/uio") {
		dev, err := uio.Open(conf.Device)
		if err != nil {
			return nil, nil, nil, err
		}
		if name, err := dev.Name(); err == nil {
			logger.Debugw("opened uio device", "device", conf.Device, "name", name)
		}
		window, err := dev.Map(conf.MapIndex, conf.Size)
		if err != nil {
			return nil, nil, nil, multierr.Combine(err, dev.Close())
		}
		if conf.Parent == nil {
			return window, dev, dev.Close, nil
		}
		parent, err := parentirq.Open(*conf.Parent, logger)
		if err != nil {
			return nil, nil, nil, multierr.Combine(err, window.Close(), dev.Close())
		}
		return window, parent, func() error { return multierr.Combine(parent.Close(), dev.Close()) }, nil
	}

	size := conf.Size
	if size == 0 {
		size = v.Layout.End(v.RegBytes, v.Counters)
	}
	window, err := mmio.OpenMap(conf.Device, conf.Address, size)
	if err != nil {
		return nil, nil, nil, err
	}
	if conf.Parent == nil {
		logger.Warnw("no parent interrupt configured, interrupts will not be delivered", "device", conf.Device)
		return window, nil, func() error { return nil }, nil
	}
	parent, err := parentirq.Open(*conf.Parent, logger)
	if err != nil {
		return nil, nil, nil, multierr.Combine(errors.Wrap(err, "opening parent interrupt"), window.Close())
	}
	return window, parent, parent.Close, nil
}
