//go:build !linux

package xioboard

import (
	"github.com/pkg/errors"

	"github.com/centurysys/linux-kernel-MAE-sub003/logging"
	"github.com/centurysys/linux-kernel-MAE-sub003/mmio"
	"github.com/centurysys/linux-kernel-MAE-sub003/xio"
)

func openHardware(conf *Config, v xio.Variant, logger logging.Logger) (mmio.Window, xio.ParentIRQ, func() error, error) {
	return nil, nil, nil, errors.Errorf("cannot open %s: xio hardware needs Linux, use simulate", conf.Device)
}
