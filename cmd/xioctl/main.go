// Package main is xioctl, a host tool for inspecting and driving an xio block.
package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig   = "config"
	flagBoard    = "board"
	flagVariant  = "variant"
	flagDevice   = "device"
	flagAddress  = "address"
	flagSimulate = "simulate"
	flagDebug    = "debug"
	flagLogLevel = "log-level"
	flagLogFile  = "log-file"
	flagNoColor  = "no-color"

	flagTimeout  = "timeout"
	flagDuration = "duration"
	flagMatch    = "match"
	flagInterval = "interval"
)

func newApp() *cli.App {
	return &cli.App{
		Name:            "xioctl",
		Usage:           "inspect and drive xio GPIO, interrupt and counter blocks",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load board configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  flagBoard,
				Usage: "board to use from a config with more than one",
			},
			&cli.StringFlag{
				Name:  flagVariant,
				Usage: "block variant when no config is given: plum-gpio, xioirq or magnolia2-dio",
			},
			&cli.StringFlag{
				Name:  flagDevice,
				Usage: "UIO device or /dev/mem when no config is given",
			},
			&cli.Int64Flag{
				Name:  flagAddress,
				Usage: "physical base address of the block when device is /dev/mem",
			},
			&cli.BoolFlag{
				Name:  flagSimulate,
				Usage: "use the register simulator instead of hardware",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "log configuration and board bring-up whatever the log level",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "debug, info, warn or error; overrides the config's log_level",
			},
			&cli.PathFlag{
				Name:  flagLogFile,
				Usage: "write logs to `FILE` instead of stdout, rotating it as it grows",
			},
			&cli.BoolFlag{
				Name:  flagNoColor,
				Usage: "never color levels",
			},
		},
		Before: setupLogging,
		After:  closeLogging,
		Commands: []*cli.Command{
			{
				Name:   "dump",
				Usage:  "print every register and the state of every line",
				Action: DumpAction,
			},
			{
				Name:      "get",
				Usage:     "read the level of a pin",
				ArgsUsage: "<pin>",
				Action:    GetAction,
			},
			{
				Name:      "set",
				Usage:     "drive an output pin",
				ArgsUsage: "<pin> <high|low>",
				Action:    SetAction,
			},
			{
				Name:      "edge",
				Usage:     "arm a pin and wait for one edge",
				ArgsUsage: "<pin> <rising|falling|both>",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  flagTimeout,
						Usage: "give up after this long; 0 waits forever",
					},
				},
				Action: EdgeAction,
			},
			{
				Name:      "watch",
				Usage:     "print ticks from digital interrupts",
				ArgsUsage: "[interrupt...]",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  flagDuration,
						Usage: "stop after this long; 0 watches until interrupted",
					},
					&cli.DurationFlag{
						Name:  flagInterval,
						Usage: "also print every counter interrupt's value this often",
					},
				},
				Action: WatchAction,
			},
			{
				Name:      "counter",
				Usage:     "count rising edges on a line for a while",
				ArgsUsage: "<line>",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  flagDuration,
						Value: time.Second,
						Usage: "how long to count",
					},
					&cli.UintFlag{
						Name:  flagMatch,
						Usage: "report each time the raw count reaches `N`",
					},
				},
				Action: CounterAction,
			},
			{
				Name:      "filter",
				Usage:     "read or set the debounce filter of a line's group",
				ArgsUsage: "<line> [none|1ms|5ms|20ms]",
				Action:    FilterAction,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
