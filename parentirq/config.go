// Package parentirq uses a SoC GPIO line, through the Linux GPIO character device, as the
// parent interrupt of an xio block.
package parentirq

import "go.viam.com/utils"

// Config names the GPIO line the block's interrupt output is wired to.
type Config struct {
	// Chip is the GPIO character device, e.g. /dev/gpiochip0.
	Chip   string `json:"chip"`
	Offset uint32 `json:"offset"`
	// ActiveHigh is set when the interrupt output is asserted high. The default is active low.
	ActiveHigh bool `json:"active_high,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Chip == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "chip")
	}
	return nil
}
