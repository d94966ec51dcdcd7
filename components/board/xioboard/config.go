package xioboard

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/centurysys/linux-kernel-MAE-sub003/components/board"
	"github.com/centurysys/linux-kernel-MAE-sub003/parentirq"
	"github.com/centurysys/linux-kernel-MAE-sub003/xio"
)

// A Config describes an xio board: where its registers live, how its parent interrupt
// arrives, and the pins and interrupts built on top of it.
type Config struct {
	// Variant names a built in variant, see xio.Variants.
	Variant string `json:"variant"`
	// Device is a UIO device such as /dev/uio0, or /dev/mem.
	Device string `json:"device,omitempty"`
	// Address is the physical base address of the block when Device is /dev/mem.
	Address int64 `json:"address,omitempty"`
	// MapIndex selects the UIO memory map.
	MapIndex int `json:"map_index,omitempty"`
	// Size overrides the register window size.
	Size uint32 `json:"size,omitempty"`
	// Parent is the SoC GPIO carrying the block's interrupt when Device is not a UIO device.
	Parent  *parentirq.Config `json:"parent,omitempty"`
	IRQBase int               `json:"irq_base,omitempty"`
	// Simulate runs the board against the register simulator instead of hardware.
	Simulate bool `json:"simulate,omitempty"`

	Pins              map[string]int                 `json:"pins,omitempty"`
	DigitalInterrupts []board.DigitalInterruptConfig `json:"digital_interrupts,omitempty"`
	// Filters maps a pin name to a hardware debounce time such as "5ms".
	Filters    map[string]string      `json:"filters,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// variantOverrides are the attributes that adjust a built in variant to a board revision.
type variantOverrides struct {
	Lines         int     `mapstructure:"lines"`
	Counters      *int    `mapstructure:"counters"`
	CounterWidth  uint    `mapstructure:"counter_width"`
	CounterStride uint32  `mapstructure:"counter_stride"`
	HasFilter     *bool   `mapstructure:"has_filter"`
	OutputMask    *uint32 `mapstructure:"output_mask"`
}

// ResolveVariant returns the variant the config names, adjusted by its attributes.
func (conf *Config) ResolveVariant() (xio.Variant, error) {
	v, err := xio.VariantByName(conf.Variant)
	if err != nil {
		return xio.Variant{}, err
	}
	if len(conf.Attributes) == 0 {
		return v, nil
	}

	var o variantOverrides
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &o,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return xio.Variant{}, err
	}
	if err := decoder.Decode(conf.Attributes); err != nil {
		return xio.Variant{}, errors.Wrap(err, "decoding attributes")
	}
	if o.Lines != 0 {
		v.Lines = o.Lines
	}
	if o.Counters != nil {
		v.Counters = *o.Counters
	}
	if o.CounterWidth != 0 {
		v.CounterWidth = o.CounterWidth
	}
	if o.CounterStride != 0 {
		v.Layout.CounterStride = o.CounterStride
	}
	if o.HasFilter != nil {
		v.HasFilter = *o.HasFilter
	}
	if o.OutputMask != nil {
		v.OutputMask = *o.OutputMask
	}
	return v, v.Validate()
}

// Line resolves a pin name, or a bare line number, to a line.
func (conf *Config) Line(pin string) (int, error) {
	if line, ok := conf.Pins[pin]; ok {
		return line, nil
	}
	line, err := strconv.Atoi(pin)
	if err != nil {
		return 0, errors.Errorf("unknown pin %q", pin)
	}
	return line, nil
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.Variant == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "variant")
	}
	v, err := conf.ResolveVariant()
	if err != nil {
		return nil, utils.NewConfigValidationError(path, err)
	}
	if !conf.Simulate && conf.Device == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "device")
	}
	if conf.Parent != nil {
		if err := conf.Parent.Validate(fmt.Sprintf("%s.%s", path, "parent")); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(conf.Pins))
	for name := range conf.Pins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if line := conf.Pins[name]; line < 0 || line >= v.Lines {
			return nil, utils.NewConfigValidationError(fmt.Sprintf("%s.pins.%s", path, name),
				errors.Errorf("line %d out of range, %s has %d lines", line, v.Name, v.Lines))
		}
	}

	seen := map[string]bool{}
	for idx, di := range conf.DigitalInterrupts {
		diPath := fmt.Sprintf("%s.%s.%d", path, "digital_interrupts", idx)
		if err := di.Validate(diPath); err != nil {
			return nil, err
		}
		if seen[di.Name] {
			return nil, utils.NewConfigValidationError(diPath, errors.Errorf("duplicate interrupt %q", di.Name))
		}
		seen[di.Name] = true
		line, err := conf.Line(di.Pin)
		if err != nil {
			return nil, utils.NewConfigValidationError(diPath, err)
		}
		if line < 0 || line >= v.Lines {
			return nil, utils.NewConfigValidationError(diPath, errors.Errorf("line %d out of range", line))
		}
		if di.Type == board.InterruptCounter && line >= v.Counters {
			return nil, utils.NewConfigValidationError(diPath, errors.Errorf("line %d has no counter", line))
		}
	}

	for pin, d := range conf.Filters {
		fPath := fmt.Sprintf("%s.filters.%s", path, pin)
		if !v.HasFilter {
			return nil, utils.NewConfigValidationError(fPath, errors.Errorf("%s has no hardware filter", v.Name))
		}
		if _, err := conf.Line(pin); err != nil {
			return nil, utils.NewConfigValidationError(fPath, err)
		}
		dur, err := time.ParseDuration(d)
		if err != nil {
			return nil, utils.NewConfigValidationError(fPath, err)
		}
		if _, err := xio.FilterLevelFromDuration(dur); err != nil {
			return nil, utils.NewConfigValidationError(fPath, err)
		}
	}
	return nil, nil
}
