package xio

import (
	"context"

	"github.com/pkg/errors"
)

// ParentIRQ is the upstream interrupt line a Controller is chained behind.
type ParentIRQ interface {
	// Wait blocks until the parent line asserts or ctx is done.
	Wait(ctx context.Context) error
	// Ack re-enables the parent line after the controller has been serviced.
	Ack() error
}

// maxRescans bounds how often ServeIRQ re-runs the handler for one parent interrupt before
// acknowledging the parent. A line re-asserting after that is picked up on the next wait.
const maxRescans = 16

// ServeIRQ services the controller every time parent asserts until ctx is done or a hardware
// fault is latched. It returns ctx.Err() on cancellation.
func (c *Controller) ServeIRQ(ctx context.Context, parent ParentIRQ) error {
	if err := parent.Ack(); err != nil {
		return errors.Wrap(err, "arming parent interrupt")
	}
	for {
		if err := parent.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "waiting for parent interrupt")
		}
		if err := c.serviceChained(); err != nil {
			return err
		}
		if err := parent.Ack(); err != nil {
			return errors.Wrap(err, "acknowledging parent interrupt")
		}
	}
}

// serviceChained runs the handler until the block reports nothing pending.
func (c *Controller) serviceChained() error {
	res, err := c.handle(false)
	for i := 0; err == nil && res == IRQHandled && i < maxRescans; i++ {
		res, err = c.handle(true)
	}
	return err
}
