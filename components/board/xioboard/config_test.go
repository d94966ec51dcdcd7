package xioboard

import (
	"testing"

	"go.viam.com/test"

	"github.com/centurysys/linux-kernel-MAE-sub003/components/board"
	"github.com/centurysys/linux-kernel-MAE-sub003/parentirq"
)

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Variant: "xioirq",
			Device:  "/dev/uio0",
			Pins:    map[string]int{"door": 0},
			DigitalInterrupts: []board.DigitalInterruptConfig{
				{Name: "door", Pin: "door"},
				{Name: "meter", Pin: "3", Type: board.InterruptCounter, Match: 10},
			},
			Filters: map[string]string{"door": "5ms"},
		}
	}
	deps, err := valid().Validate("board")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldBeEmpty)

	for _, tc := range []struct {
		name   string
		mutate func(*Config)
		err    string
	}{
		{"no variant", func(c *Config) { c.Variant = "" }, "variant"},
		{"unknown variant", func(c *Config) { c.Variant = "tulip" }, "unknown xio variant"},
		{"no device", func(c *Config) { c.Device = "" }, "device"},
		{"bad parent", func(c *Config) { c.Parent = &parentirq.Config{} }, "chip"},
		{"pin range", func(c *Config) { c.Pins["far"] = 8 }, "out of range"},
		{"unknown pin", func(c *Config) { c.DigitalInterrupts[0].Pin = "window" }, "unknown pin"},
		{"duplicate", func(c *Config) { c.DigitalInterrupts[1].Name = "door" }, "duplicate"},
		{"bad filter", func(c *Config) { c.Filters["door"] = "50ms" }, "exceeds"},
		{"filter syntax", func(c *Config) { c.Filters["door"] = "soon" }, "duration"},
		{"unknown attribute", func(c *Config) { c.Attributes = map[string]interface{}{"colour": "red"} }, "colour"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			conf := valid()
			tc.mutate(conf)
			_, err := conf.Validate("board")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
		})
	}

	plum := &Config{
		Variant: "plum-gpio",
		Device:  "/dev/mem",
		DigitalInterrupts: []board.DigitalInterruptConfig{
			{Name: "meter", Pin: "0", Type: board.InterruptCounter},
		},
	}
	_, err = plum.Validate("board")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no counter")

	plum.DigitalInterrupts = nil
	plum.Filters = map[string]string{"0": "1ms"}
	_, err = plum.Validate("board")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no hardware filter")

	simulated := &Config{Variant: "plum-gpio", Simulate: true}
	_, err = simulated.Validate("board")
	test.That(t, err, test.ShouldBeNil)
}

func TestResolveVariant(t *testing.T) {
	conf := &Config{
		Variant: "XIOIRQ",
		Attributes: map[string]interface{}{
			"counters":       2.0,
			"output_mask":    "0xF0",
			"counter_stride": 2,
		},
	}
	v, err := conf.ResolveVariant()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.Name, test.ShouldEqual, "xioirq")
	test.That(t, v.Counters, test.ShouldEqual, 2)
	test.That(t, v.OutputMask, test.ShouldEqual, uint32(0xF0))
	test.That(t, v.Layout.CounterStride, test.ShouldEqual, uint32(2))
	test.That(t, v.HasFilter, test.ShouldBeTrue)

	conf.Attributes = map[string]interface{}{"output_mask": 0x03}
	_, err = conf.ResolveVariant()
	test.That(t, err, test.ShouldNotBeNil)

	line, err := (&Config{Pins: map[string]int{"lamp": 9}}).Line("lamp")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line, test.ShouldEqual, 9)
}
