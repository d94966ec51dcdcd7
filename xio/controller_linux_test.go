//go:build linux && !tinygo

package xio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/centurysys/linux-kernel-MAE-sub003/logging"
	"github.com/centurysys/linux-kernel-MAE-sub003/mmio"
)

func TestOneControllerPerPhysicalWindow(t *testing.T) {
	logger := logging.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "regs")
	test.That(t, os.WriteFile(path, make([]byte, os.Getpagesize()), 0o600), test.ShouldBeNil)

	first, err := mmio.OpenMap(path, 0, 0x40)
	test.That(t, err, test.ShouldBeNil)
	c, err := New(Config{Variant: PlumGPIO, Window: first, Logger: logger})
	test.That(t, err, test.ShouldBeNil)

	second, err := mmio.OpenMap(path, 0, 0x40)
	test.That(t, err, test.ShouldBeNil)
	defer second.Close()
	_, err = New(Config{Variant: PlumGPIO, Window: second, Logger: logger})
	test.That(t, errors.Is(err, mmio.ErrWindowBusy), test.ShouldBeTrue)

	test.That(t, c.Close(), test.ShouldBeNil)
	c, err = New(Config{Variant: PlumGPIO, Window: second, Logger: logger})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Close(), test.ShouldBeNil)
}
