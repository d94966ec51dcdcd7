//go:build linux

// Package uio uses a Linux userspace I/O device as the parent interrupt of an xio block and as
// the source of its register mapping.
package uio

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/centurysys/linux-kernel-MAE-sub003/mmio"
)

// pollIntervalMs bounds how long Wait sleeps in poll before checking its context again.
const pollIntervalMs = 100

var sysfsRoot = "/sys/class/uio"

// Device is an open /dev/uioN node.
type Device struct {
	path string
	file *os.File

	mu    sync.Mutex
	count uint32
}

// Open opens a UIO device node such as /dev/uio0.
func Open(path string) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &Device{path: path, file: file}, nil
}

// Name returns the driver supplied name of the device from sysfs.
func (d *Device) Name() (string, error) {
	b, err := os.ReadFile(filepath.Join(sysfsRoot, filepath.Base(d.path), "name"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// MapSize returns the size of mapping index as reported by sysfs.
func (d *Device) MapSize(index int) (uint32, error) {
	p := filepath.Join(sysfsRoot, filepath.Base(d.path), "maps", "map"+strconv.Itoa(index), "size")
	b, err := os.ReadFile(p)
	if err != nil {
		return 0, err
	}
	size, err := strconv.ParseUint(strings.TrimSpace(string(b)), 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", p)
	}
	return uint32(size), nil
}

// Map maps mapping index of the device. A zero size maps the whole region sysfs reports.
func (d *Device) Map(index int, size uint32) (*mmio.Map, error) {
	if size == 0 {
		var err error
		if size, err = d.MapSize(index); err != nil {
			return nil, err
		}
	}
	// UIO selects mapping N through an offset of N pages.
	return mmio.OpenMap(d.path, int64(index)*int64(os.Getpagesize()), size)
}

// Wait blocks until the device reports an interrupt or ctx is done.
func (d *Device) Wait(ctx context.Context) error {
	fd := int(d.file.Fd())
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := unix.Poll(fds, pollIntervalMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return errors.Wrapf(err, "poll %s", d.path)
		}
		if n == 0 {
			continue
		}
		var buf [4]byte
		if _, err := unix.Read(fd, buf[:]); err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			return errors.Wrapf(err, "read %s", d.path)
		}
		d.mu.Lock()
		d.count = binary.NativeEndian.Uint32(buf[:])
		d.mu.Unlock()
		return nil
	}
}

// Ack re-enables the interrupt. UIO drivers mask it when it fires.
func (d *Device) Ack() error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], 1)
	if _, err := d.file.Write(buf[:]); err != nil {
		return errors.Wrapf(err, "enable interrupt on %s", d.path)
	}
	return nil
}

// Count returns the kernel's interrupt count as of the last Wait.
func (d *Device) Count() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Close closes the device node.
func (d *Device) Close() error {
	return d.file.Close()
}
