//go:build linux

package parentirq

import (
	"context"
	"sync"

	"github.com/mkch/gpio"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/centurysys/linux-kernel-MAE-sub003/logging"
)

type eventLine interface {
	Value() (byte, error)
	Events() <-chan *gpio.Event
	Close() error
}

// Line is a parent interrupt on a GPIO line. The kernel reports edges; Wait also checks the
// level so an interrupt output that stays asserted across an Ack is not missed.
type Line struct {
	cfg    Config
	line   eventLine
	logger logging.Logger

	mu     sync.Mutex
	events uint64
}

// Open requests the line with edge events in the asserting direction.
func Open(cfg Config, logger logging.Logger) (*Line, error) {
	chip, err := gpio.OpenChip(cfg.Chip)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(chip.Close)

	edge := gpio.FallingEdge
	if cfg.ActiveHigh {
		edge = gpio.RisingEdge
	}
	line, err := chip.OpenLineWithEvents(cfg.Offset, gpio.Input, edge, "xio-parent")
	if err != nil {
		return nil, errors.Wrapf(err, "requesting %s line %d", cfg.Chip, cfg.Offset)
	}
	return &Line{cfg: cfg, line: line, logger: logger}, nil
}

func (l *Line) asserted() (bool, error) {
	v, err := l.line.Value()
	if err != nil {
		return false, err
	}
	return (v != 0) == l.cfg.ActiveHigh, nil
}

// Wait blocks until the line is asserted or ctx is done.
func (l *Line) Wait(ctx context.Context) error {
	for {
		asserted, err := l.asserted()
		if err != nil {
			return err
		}
		if asserted {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-l.line.Events():
			if !ok {
				return errors.Errorf("%s line %d closed", l.cfg.Chip, l.cfg.Offset)
			}
			if ev != nil {
				l.mu.Lock()
				l.events++
				l.mu.Unlock()
			}
		}
	}
}

// Ack does nothing: the GPIO line needs no re-enabling.
func (l *Line) Ack() error {
	return nil
}

// Events returns how many edges the kernel has reported.
func (l *Line) Events() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events
}

// Close releases the line.
func (l *Line) Close() error {
	l.logger.Debugw("releasing parent interrupt line", "chip", l.cfg.Chip, "offset", l.cfg.Offset)
	return l.line.Close()
}
