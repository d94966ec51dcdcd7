package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.viam.com/test"

	"github.com/centurysys/linux-kernel-MAE-sub003/components/board"
	"github.com/centurysys/linux-kernel-MAE-sub003/components/board/xioboard"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	return runApp(t, args...)
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"xioctl"}, args...))
	return out.String(), err
}

// hookBoard calls f on every board the command opens, before the command uses it.
func hookBoard(t *testing.T, f func(b *xioboard.Board)) {
	t.Helper()
	orig := openBoard
	t.Cleanup(func() { openBoard = orig })
	openBoard = func(c *cli.Context, extra ...board.DigitalInterruptConfig) (*xioboard.Board, error) {
		b, err := orig(c, extra...)
		if err == nil {
			f(b)
		}
		return b, err
	}
}

func TestDump(t *testing.T) {
	out, err := run(t, "--variant", "xioirq", "--simulate", "dump")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "int_enable")
	test.That(t, out, test.ShouldContainSubstring, "compare7")
	test.That(t, out, test.ShouldContainSubstring, "line  7  input")
	test.That(t, out, test.ShouldContainSubstring, "count=0 overflow=false")

	_, err = run(t, "dump")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "--variant")

	_, err = run(t, "--variant", "xioirq", "--simulate", "dump", "extra")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGetSet(t *testing.T) {
	out, err := run(t, "--variant", "magnolia2-dio", "--simulate", "set", "8", "high")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldEqual, "8 set high\n")

	hookBoard(t, func(b *xioboard.Board) { b.Simulator().SetLevel(3, true) })
	out, err = run(t, "--variant", "magnolia2-dio", "--simulate", "get", "3")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldEqual, "high\n")

	_, err = run(t, "--variant", "magnolia2-dio", "--simulate", "set", "3", "high")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = run(t, "--variant", "magnolia2-dio", "--simulate", "set", "8", "maybe")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xio.json5")
	conf := `{
		boards: [{name: "dio", variant: "magnolia2-dio", device: "/dev/uio0", pins: {lamp: 9}}],
	}`
	test.That(t, os.WriteFile(path, []byte(conf), 0o600), test.ShouldBeNil)

	out, err := run(t, "--config", path, "--simulate", "set", "lamp", "on")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldEqual, "lamp set high\n")

	_, err = run(t, "--config", path, "--board", "relay", "--simulate", "get", "lamp")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEdge(t *testing.T) {
	var sim func(line int, high bool)
	ready := make(chan struct{})
	hookBoard(t, func(b *xioboard.Board) {
		sim = b.Simulator().SetLevel
		close(ready)
	})

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := run(t, "--variant", "plum-gpio", "--simulate", "edge", "--timeout", "5s", "2", "falling")
		done <- result{out, err}
	}()

	<-ready
	for {
		select {
		case r := <-done:
			test.That(t, r.err, test.ShouldBeNil)
			test.That(t, r.out, test.ShouldContainSubstring, " 2 low")
			return
		default:
			sim(2, true)
			sim(2, false)
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestEdgeTimeout(t *testing.T) {
	_, err := run(t, "--variant", "plum-gpio", "--simulate", "edge", "--timeout", "10ms", "2", "rising")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no rising edge on 2")

	_, err = run(t, "--variant", "plum-gpio", "--simulate", "edge", "2", "sideways")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWatch(t *testing.T) {
	out, err := run(t, "--variant", "xioirq", "--simulate", "watch", "--duration", "10ms", "0", "1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldStartWith, "watching 0, 1\n")

	_, err = run(t, "--variant", "xioirq", "--simulate", "watch", "--duration", "10ms")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "nothing to watch")
}

func TestCounter(t *testing.T) {
	hookBoard(t, func(b *xioboard.Board) { b.Simulator().Pulse(2, 300) })
	out, err := run(t, "--variant", "xioirq", "--simulate", "counter", "--duration", "1ms", "2")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldEqual, "line 2: 300 edges\n")

	_, err = run(t, "--variant", "plum-gpio", "--simulate", "counter", "2")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCounterMatch(t *testing.T) {
	hookBoard(t, func(b *xioboard.Board) {
		dev := b.Simulator()
		go func() {
			time.Sleep(20 * time.Millisecond)
			dev.Pulse(1, 10)
		}()
	})
	out, err := run(t, "--variant", "xioirq", "--simulate", "counter", "--duration", "200ms", "--match", "4", "1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldEqual, "line 1: 10 edges\nline 1: reached 4 1 times\n")
}

func TestFilter(t *testing.T) {
	out, err := run(t, "--variant", "xioirq", "--simulate", "filter", "5", "5ms")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldEqual, "group 1 (lines 4-7): 5ms\n")

	out, err = run(t, "--variant", "xioirq", "--simulate", "filter", "5")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldEqual, "group 1 (lines 4-7): none\n")

	_, err = run(t, "--variant", "plum-gpio", "--simulate", "filter", "1", "1ms")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = run(t, "--variant", "xioirq", "--simulate", "filter", "1", "1h")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestColorLevels(t *testing.T) {
	hookBoard(t, func(b *xioboard.Board) { b.Simulator().SetLevel(3, true) })
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = true })

	out, err := runApp(t, "--variant", "magnolia2-dio", "--simulate", "get", "3")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldStartWith, "\x1b[")
	test.That(t, out, test.ShouldContainSubstring, "high")

	out, err = runApp(t, "--no-color", "--variant", "magnolia2-dio", "--simulate", "get", "3")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldEqual, "high\n")
}

func TestDebugModeLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xio.json5")
	conf := `{
		boards: [{name: "dio", variant: "magnolia2-dio", device: "/dev/uio0", pins: {lamp: 9}}],
		log_level: "warn",
	}`
	test.That(t, os.WriteFile(path, []byte(conf), 0o600), test.ShouldBeNil)

	quiet := filepath.Join(dir, "quiet.log")
	_, err := run(t, "--log-file", quiet, "--config", path, "--simulate", "set", "lamp", "on")
	test.That(t, err, test.ShouldBeNil)
	buf, err := os.ReadFile(quiet)
	if err == nil {
		test.That(t, string(buf), test.ShouldNotContainSubstring, "board ready")
	}

	// Debug mode logs bring-up although the config asks for warnings only.
	loud := filepath.Join(dir, "loud.log")
	_, err = run(t, "--debug", "--log-file", loud, "--config", path, "--simulate", "set", "lamp", "on")
	test.That(t, err, test.ShouldBeNil)
	buf, err = os.ReadFile(loud)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(buf), test.ShouldContainSubstring, "read config")
	test.That(t, string(buf), test.ShouldContainSubstring, "board ready")
	test.That(t, string(buf), test.ShouldContainSubstring, `"debug_key":"xioctl"`)

	_, err = run(t, "--log-level", "loud", "--variant", "xioirq", "--simulate", "dump")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWatchInterval(t *testing.T) {
	hookBoard(t, func(b *xioboard.Board) { b.Simulator().Pulse(0, 3) })
	out, err := run(t, "--variant", "xioirq", "--simulate", "watch", "--duration", "200ms", "--interval", "20ms", "0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldStartWith, "watching 0\n")
	test.That(t, out, test.ShouldContainSubstring, "0 value ")
}
