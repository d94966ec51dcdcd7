package xio

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrHardwareFault matches any HardwareFaultError with errors.Is.
	ErrHardwareFault = errors.New("xio hardware fault")
	// ErrUnsupportedOperation is returned for requests the bound variant cannot perform.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrInvalidLineIndex is returned for a line index at or past the line count.
	ErrInvalidLineIndex = errors.New("invalid line index")
)

// HardwareFaultError describes the register access that failed. Once a Controller has returned
// one it returns the same error from every later call.
type HardwareFaultError struct {
	Op     string
	Offset uint32
	Err    error
}

func (e *HardwareFaultError) Error() string {
	return fmt.Sprintf("xio: %s at offset 0x%02x: %v", e.Op, e.Offset, e.Err)
}

// Unwrap returns the underlying window error.
func (e *HardwareFaultError) Unwrap() error {
	return e.Err
}

// Is reports ErrHardwareFault as a match.
func (e *HardwareFaultError) Is(target error) bool {
	return target == ErrHardwareFault
}

func unsupportedf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnsupportedOperation, format, args...)
}
