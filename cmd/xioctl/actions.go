package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"github.com/centurysys/linux-kernel-MAE-sub003/components/board"
	"github.com/centurysys/linux-kernel-MAE-sub003/components/board/xioboard"
	"github.com/centurysys/linux-kernel-MAE-sub003/config"
	"github.com/centurysys/linux-kernel-MAE-sub003/logging"
	"github.com/centurysys/linux-kernel-MAE-sub003/xio"
)

const (
	metaLogFile  = "logFile"
	logFileMaxMB = 10
)

// setupLogging installs the tool's logger as the global one. Under --debug the command runs
// in debug mode, so configuration and bring-up steps are logged at any level.
func setupLogging(c *cli.Context) error {
	if c.Bool(flagNoColor) {
		color.NoColor = true
	}

	var logger logging.Logger
	if path := c.Path(flagLogFile); path != "" {
		appender := logging.NewFileAppender(path, logFileMaxMB)
		logger = logging.NewBlankLogger("xioctl")
		logger.AddAppender(appender)
		c.App.Metadata = map[string]interface{}{metaLogFile: appender}
	} else {
		logger = logging.NewLogger("xioctl")
	}
	logger.SetLevel(logging.INFO)
	if s := c.String(flagLogLevel); s != "" {
		level, err := logging.LevelFromString(s)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}
	if c.Bool(flagDebug) {
		c.Context = logging.EnableDebugMode(c.Context, "xioctl")
	}
	logging.ReplaceGlobal(logger)
	return nil
}

func closeLogging(c *cli.Context) error {
	err := logging.Global().Sync()
	if appender, ok := c.App.Metadata[metaLogFile].(*logging.FileAppender); ok {
		err = multierr.Combine(err, appender.Close())
	}
	return err
}

// openBoard opens the board the global flags describe, with extra interrupts added to its
// configuration. Interrupts already configured on the lines of extra are dropped.
var openBoard = func(c *cli.Context, extra ...board.DigitalInterruptConfig) (*xioboard.Board, error) {
	logger := logging.Global()
	conf, err := boardConfig(c, logger)
	if err != nil {
		return nil, err
	}

	taken := map[int]bool{}
	for _, di := range extra {
		line, err := conf.Line(di.Pin)
		if err != nil {
			return nil, err
		}
		taken[line] = true
	}
	interrupts := make([]board.DigitalInterruptConfig, 0, len(conf.DigitalInterrupts)+len(extra))
	for _, di := range conf.DigitalInterrupts {
		if line, err := conf.Line(di.Pin); err == nil && taken[line] {
			logger.Debugw("replacing configured interrupt", "interrupt", di.Name, "line", line)
			continue
		}
		interrupts = append(interrupts, di)
	}
	conf.DigitalInterrupts = append(interrupts, extra...)

	return xioboard.NewBoard(c.Context, conf, logger)
}

func boardConfig(c *cli.Context, logger logging.Logger) (*xioboard.Config, error) {
	if path := c.Path(flagConfig); path != "" {
		cfg, err := config.Read(c.Context, path, logger)
		if err != nil {
			return nil, err
		}
		if c.String(flagLogLevel) == "" {
			logger.SetLevel(cfg.Level())
		}
		b, err := cfg.FindBoard(c.String(flagBoard))
		if err != nil {
			return nil, err
		}
		conf := b.Config
		if c.Bool(flagSimulate) {
			conf.Simulate = true
		}
		return &conf, nil
	}
	if c.String(flagVariant) == "" {
		return nil, errors.New("either --config or --variant is required")
	}
	return &xioboard.Config{
		Variant:  c.String(flagVariant),
		Device:   c.String(flagDevice),
		Address:  c.Int64(flagAddress),
		Simulate: c.Bool(flagSimulate),
	}, nil
}

func withBoard(c *cli.Context, extra []board.DigitalInterruptConfig, f func(b *xioboard.Board) error) (err error) {
	b, err := openBoard(c, extra...)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, b.Close(context.Background()))
	}()
	return f(b)
}

func checkArgs(c *cli.Context, least, most int) error {
	if n := c.Args().Len(); n < least || n > most {
		return errors.Errorf("%s: wrong number of arguments, usage: %s %s", c.Command.Name, c.Command.Name, c.Command.ArgsUsage)
	}
	return nil
}

var (
	highColor = color.New(color.FgGreen, color.Bold)
	lowColor  = color.New(color.FgBlue)
)

func levelString(high bool) string {
	if high {
		return highColor.Sprint("high")
	}
	return lowColor.Sprint("low")
}

func tickTime(t board.Tick) string {
	return time.Unix(0, int64(t.TimestampNanosec)).Format(time.RFC3339Nano)
}

// DumpAction prints every register, then one row per line.
func DumpAction(c *cli.Context) error {
	if err := checkArgs(c, 0, 0); err != nil {
		return err
	}
	return withBoard(c, nil, func(b *xioboard.Board) error {
		chip := b.Chip()
		regs, err := chip.DumpRegisters()
		if err != nil {
			return err
		}
		w := c.App.Writer
		for _, r := range regs {
			fmt.Fprintf(w, "%-16s +0x%02x  0x%04x\n", r.Name, r.Offset, r.Value)
		}

		lines, err := chip.Snapshot()
		if err != nil {
			return err
		}
		fmt.Fprintln(w)
		for _, l := range lines {
			fmt.Fprintf(w, "line %2d  %-6s  %-4s  %-13s  filter=%s", l.Line, l.Direction, levelString(bool(l.Level)), l.State, l.Filter)
			if l.Masked {
				fmt.Fprint(w, "  masked")
			}
			if l.Pending {
				fmt.Fprint(w, "  pending")
			}
			if l.Wakeup {
				fmt.Fprint(w, "  wakeup")
			}
			if cs := l.Counter; cs != nil {
				fmt.Fprintf(w, "  count=%d overflow=%t enabled=%t match=%d/%t", cs.Raw, cs.Overflow, cs.Enabled, cs.Match, cs.MatchEnabled)
			}
			fmt.Fprintln(w)
		}
		return nil
	})
}

// GetAction prints the level of a pin.
func GetAction(c *cli.Context) error {
	if err := checkArgs(c, 1, 1); err != nil {
		return err
	}
	return withBoard(c, nil, func(b *xioboard.Board) error {
		pin, err := b.GPIOPinByName(c.Args().First())
		if err != nil {
			return err
		}
		high, err := pin.Get(c.Context, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, levelString(high))
		return nil
	})
}

func parseLevel(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "high", "1", "on":
		return true, nil
	case "low", "0", "off":
		return false, nil
	default:
		return false, errors.Errorf("bad level %q, want high or low", s)
	}
}

// SetAction drives an output pin.
func SetAction(c *cli.Context) error {
	if err := checkArgs(c, 2, 2); err != nil {
		return err
	}
	high, err := parseLevel(c.Args().Get(1))
	if err != nil {
		return err
	}
	return withBoard(c, nil, func(b *xioboard.Board) error {
		pin, err := b.GPIOPinByName(c.Args().First())
		if err != nil {
			return err
		}
		if err := pin.Set(c.Context, high, nil); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s set %s\n", c.Args().First(), levelString(high))
		return nil
	})
}

// EdgeAction arms a pin for the given edge and waits for it.
func EdgeAction(c *cli.Context) error {
	if err := checkArgs(c, 2, 2); err != nil {
		return err
	}
	pinName, edge := c.Args().First(), strings.ToLower(c.Args().Get(1))
	di := board.DigitalInterruptConfig{Name: pinName, Pin: pinName, Edge: edge}
	if err := di.Validate("edge"); err != nil {
		return err
	}

	return withBoard(c, []board.DigitalInterruptConfig{di}, func(b *xioboard.Board) error {
		ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
		defer cancel()
		if timeout := c.Duration(flagTimeout); timeout > 0 {
			var cancelTimeout func()
			ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
			defer cancelTimeout()
		}

		i, err := b.DigitalInterruptByName(pinName)
		if err != nil {
			return err
		}
		ch := make(chan board.Tick, 1)
		if err := b.StreamTicks(ctx, []board.DigitalInterrupt{i}, ch, nil); err != nil {
			return err
		}
		select {
		case t := <-ch:
			fmt.Fprintf(c.App.Writer, "%s %s %s\n", tickTime(t), t.Name, levelString(t.High))
			return nil
		case <-ctx.Done():
			return errors.Errorf("no %s edge on %s: %v", edge, pinName, ctx.Err())
		}
	})
}

// WatchAction prints ticks until interrupted. Names that are not configured interrupts are
// watched as pins on both edges.
func WatchAction(c *cli.Context) error {
	conf := lo.Map(c.Args().Slice(), func(name string, _ int) board.DigitalInterruptConfig {
		return board.DigitalInterruptConfig{Name: name, Pin: name, Edge: "both"}
	})
	if len(conf) > 0 {
		bc, err := boardConfig(c, logging.NewBlankLogger("xioctl"))
		if err != nil {
			return err
		}
		configured := lo.Map(bc.DigitalInterrupts, func(di board.DigitalInterruptConfig, _ int) string {
			return di.Name
		})
		conf = lo.Filter(conf, func(di board.DigitalInterruptConfig, _ int) bool {
			return !lo.Contains(configured, di.Name)
		})
	}

	return withBoard(c, conf, func(b *xioboard.Board) error {
		names := c.Args().Slice()
		if len(names) == 0 {
			names = b.DigitalInterruptNames()
		}
		if len(names) == 0 {
			return errors.New("nothing to watch: no digital interrupts configured")
		}
		interrupts := make([]board.DigitalInterrupt, 0, len(names))
		for _, name := range names {
			i, err := b.DigitalInterruptByName(name)
			if err != nil {
				return err
			}
			interrupts = append(interrupts, i)
		}

		ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
		defer cancel()
		if d := c.Duration(flagDuration); d > 0 {
			var cancelDuration func()
			ctx, cancelDuration = context.WithTimeout(ctx, d)
			defer cancelDuration()
		}

		ch := make(chan board.Tick, 64)
		if err := b.StreamTicks(ctx, interrupts, ch, nil); err != nil {
			return err
		}

		var mu sync.Mutex
		printf := func(format string, args ...interface{}) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(c.App.Writer, format, args...)
		}
		printf("watching %s\n", strings.Join(names, ", "))

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			for {
				select {
				case t := <-ch:
					printf("%s %s %s\n", tickTime(t), t.Name, levelString(t.High))
				case <-ctx.Done():
					return nil
				}
			}
		})
		if interval := c.Duration(flagInterval); interval > 0 {
			g.Go(func() error {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
					case <-ctx.Done():
						return nil
					}
					for _, i := range interrupts {
						v, err := i.Value(ctx, nil)
						if err != nil {
							return err
						}
						printf("%s value %d\n", i.Name(), v)
					}
				}
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		dropped := b.DroppedTicks()
		for _, name := range names {
			if n := dropped[name]; n > 0 {
				printf("%s: %d ticks dropped\n", name, n)
			}
		}
		return nil
	})
}

// CounterAction counts rising edges on a line for the given duration.
func CounterAction(c *cli.Context) error {
	if err := checkArgs(c, 1, 1); err != nil {
		return err
	}
	line := c.Args().First()
	if _, err := strconv.Atoi(line); err != nil {
		return errors.Errorf("bad line %q", line)
	}
	di := board.DigitalInterruptConfig{
		Name:  "counter" + line,
		Pin:   line,
		Type:  board.InterruptCounter,
		Match: uint32(c.Uint(flagMatch)),
	}

	return withBoard(c, []board.DigitalInterruptConfig{di}, func(b *xioboard.Board) error {
		i, err := b.DigitalInterruptByName(di.Name)
		if err != nil {
			return err
		}
		ch := make(chan board.Tick, 1024)
		if di.Match != 0 {
			if err := b.StreamTicks(c.Context, []board.DigitalInterrupt{i}, ch, nil); err != nil {
				return err
			}
		}

		ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
		defer cancel()
		utils.SelectContextOrWait(ctx, c.Duration(flagDuration))

		count, err := i.Value(c.Context, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "line %s: %d edges\n", line, count)
		if di.Match != 0 {
			fmt.Fprintf(c.App.Writer, "line %s: reached %d %d times\n", line, di.Match, len(ch))
		}
		return nil
	})
}

// FilterAction prints, and optionally sets, the debounce filter of a line's group.
func FilterAction(c *cli.Context) error {
	if err := checkArgs(c, 1, 2); err != nil {
		return err
	}
	line, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return errors.Errorf("bad line %q", c.Args().First())
	}

	return withBoard(c, nil, func(b *xioboard.Board) error {
		chip := b.Chip()
		if c.Args().Len() == 2 {
			var d time.Duration
			if s := c.Args().Get(1); s != "none" {
				if d, err = time.ParseDuration(s); err != nil {
					return err
				}
			}
			lvl, err := xio.FilterLevelFromDuration(d)
			if err != nil {
				return err
			}
			if err := chip.SetFilter(line, lvl); err != nil {
				return err
			}
		}
		lvl, err := chip.Filter(line)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "group %d (lines %d-%d): %s\n",
			xio.FilterGroup(line), xio.FilterGroup(line)*4, xio.FilterGroup(line)*4+3, lvl)
		return nil
	})
}
