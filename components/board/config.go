package board

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Digital interrupt types.
const (
	// InterruptBasic counts high ticks.
	InterruptBasic = "basic"
	// InterruptServo measures the width of high pulses in microseconds.
	InterruptServo = "servo"
	// InterruptCounter reads a hardware pulse counter.
	InterruptCounter = "counter"
)

// DigitalInterruptConfig describes the configuration of digital interrupt for a board.
type DigitalInterruptConfig struct {
	Name string `json:"name"`
	Pin  string `json:"pin"`
	Type string `json:"type,omitempty"` // e.g. basic, servo, counter
	// Edge is rising, falling or both. The default depends on the type.
	Edge string `json:"edge,omitempty"`
	// DebounceMs delays delivery until the input has been quiet this long; 0 or -1 disables it.
	DebounceMs int `json:"debounce_ms,omitempty"`
	// Match raises a tick each time a counter reaches this value; 0 disables it.
	Match uint32 `json:"match,omitempty"`
	// Wakeup marks the interrupt as able to wake the system.
	Wakeup bool `json:"wakeup,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *DigitalInterruptConfig) Validate(path string) error {
	if config.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if config.Pin == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "pin")
	}
	switch config.Type {
	case "", InterruptBasic, InterruptServo, InterruptCounter:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown interrupt type %q", config.Type))
	}
	switch config.Edge {
	case "", "rising", "falling", "both":
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown edge %q", config.Edge))
	}
	if config.Type == InterruptServo && config.Edge != "" && config.Edge != "both" {
		return utils.NewConfigValidationError(path, errors.Errorf("servo interrupts need both edges, not %q", config.Edge))
	}
	if config.Match != 0 && config.Type != InterruptCounter {
		return utils.NewConfigValidationError(path, errors.New("match is only valid for counter interrupts"))
	}
	return nil
}

// EdgeOrDefault returns the configured edge, or the one the interrupt type needs.
func (config *DigitalInterruptConfig) EdgeOrDefault() string {
	if config.Edge != "" {
		return config.Edge
	}
	if config.Type == InterruptServo {
		return "both"
	}
	return "rising"
}
