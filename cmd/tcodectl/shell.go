package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/sevfate/go-tcode/axis"
	"github.com/sevfate/go-tcode/registry"
	"github.com/sevfate/go-tcode/tcode"
	"github.com/sevfate/go-tcode/wire"
)

const readTimeout = 3 * time.Second

var (
	errQuit  = errors.New("quit")
	errUsage = errors.New("invalid arguments")
)

const shellHelp = `Commands:
  Device:
    list                              - Show the device and its endpoints
    info <idx>                        - Show one endpoint
    get <idx> <prop>                  - Read a property
    set <idx> <prop> <value>          - Write a property
    interval <idx> <prop> <ms>        - Change a property's update interval (0 stops)
    call <idx>                        - Call an endpoint
    enumerate                         - Enumerate the device again

  Axes:
    axis <idx> <0-999>                - Move an axis manually
    stop <idx>|all                    - Stop an axis or every endpoint
    pattern <idx> show                - Show an axis pattern
    pattern <idx> add [pos]           - Insert an element
    pattern <idx> del <pos>           - Delete an element
    pattern <idx> dur <pos> <ms>      - Set an element's duration
    pattern <idx> start <pos> <ms>    - Move an element in time
    pattern <idx> type <pos> <type>   - Set nop, normal, interval or speed
    pattern <idx> target <pos> <0-999>
    pattern <idx> swap <pos> <pos>
    pattern <idx> play|pause|rewind
    script <idx> <file> [invert]      - Drive an axis from a funscript
    play | pause | seek <seconds>     - Control script playback

  General:
    metrics                           - Show connection counters
    help                              - Show this help
    quit                              - Exit`

// runShell reads commands until quit or EOF.
func (a *app) runShell(ctx context.Context, rl *readline.Instance) error {
	fmt.Fprintln(a.out, shellHelp)

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			return nil
		}

		err = a.exec(ctx, line)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case errors.Is(err, errUsage):
			fmt.Fprintf(a.out, "Usage: %v (type 'help' for commands)\n", err)
		case err != nil:
			fmt.Fprintf(a.out, "Error: %v\n", err)
		}
	}
}

// exec runs one shell command.
func (a *app) exec(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprintln(a.out, shellHelp)
		return nil
	case "list", "ls":
		a.conn.WithRegistry(func(r *registry.Registry) { printRegistry(a.out, r) })
		return nil
	case "info", "i":
		return a.cmdInfo(args)
	case "get", "r":
		return a.cmdGet(ctx, args)
	case "set", "w":
		return a.cmdSet(args)
	case "interval":
		return a.cmdInterval(args)
	case "call":
		return a.cmdCall(args)
	case "enumerate":
		ctx, cancel := context.WithTimeout(ctx, enumerateTimeout)
		defer cancel()
		return a.conn.SyncEnumerate(ctx)
	case "axis", "a":
		return a.cmdAxis(args)
	case "stop":
		return a.cmdStop(ctx, args)
	case "pattern", "p":
		return a.cmdPattern(args)
	case "script":
		return a.cmdScript(args)
	case "play":
		a.clock.Play()
		return nil
	case "pause":
		a.clock.Pause()
		return nil
	case "seek":
		return a.cmdSeek(args)
	case "metrics":
		a.printMetrics()
		return nil
	case "quit", "exit", "q":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}

// withEndpoint runs fn with the registry locked and the endpoint of name
// resolved.
func (a *app) withEndpoint(name string, fn func(idx wire.CommandIndex, ep *registry.Endpoint) error) error {
	idx, err := wire.ParseCommandIndex(name)
	if err != nil {
		return err
	}

	err = fmt.Errorf("%w: %s", tcode.ErrUnknownEndpoint, idx)
	a.conn.WithRegistry(func(r *registry.Registry) {
		if ep, ok := r.Endpoint(idx); ok {
			err = fn(idx, ep)
		}
	})

	return err
}

func (a *app) withProperty(idxName, name string, fn func(idx wire.CommandIndex, p *registry.Property) error) error {
	return a.withEndpoint(idxName, func(idx wire.CommandIndex, ep *registry.Endpoint) error {
		p, ok := ep.Property(name)
		if !ok {
			return fmt.Errorf("%w: %s.%s", tcode.ErrUnknownProperty, idx, name)
		}
		return fn(idx, p)
	})
}

func (a *app) cmdInfo(args []string) error {
	if len(args) != 1 {
		return usage("info <idx>")
	}

	return a.withEndpoint(args[0], func(idx wire.CommandIndex, ep *registry.Endpoint) error {
		fmt.Fprintf(a.out, "%s %q [%s]\n", idx, ep.Description(), capabilities(ep))
		if idx.Type.IsAxis() {
			lo, hi, reversed := ep.AxisLimits(axis.TargetDigits)
			fmt.Fprintf(a.out, "  limits: %d..%d reversed=%t\n", lo, hi, reversed)
			if ctl, ok := a.ctl.Lookup(idx); ok {
				fmt.Fprintf(a.out, "  mode:   %s\n", ctl.Mode())
			}
			if _, _, _, ok := ep.PendingUpdate(); ok {
				fmt.Fprintf(a.out, "  queued: %s\n", formatAxis(idx, ep))
			}
		}
		for _, name := range ep.PropertyNames() {
			p, _ := ep.Property(name)
			fmt.Fprintf(a.out, "  %s = %s\n", name, formatValue(p))
			if lo, hi := p.Min(), p.Max(); lo != nil && hi != nil {
				fmt.Fprintf(a.out, "      range %s..%s\n", lo, hi)
			}
			if ms := p.CurrentUpdateInterval(); ms != 0 {
				fmt.Fprintf(a.out, "      every %d ms\n", ms)
			}
		}
		return nil
	})
}

func (a *app) cmdGet(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("get <idx> <prop>")
	}
	idx, err := wire.ParseCommandIndex(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	if _, err := a.conn.ReadProperty(ctx, idx, args[1]); err != nil {
		return err
	}

	return a.withProperty(args[0], args[1], func(idx wire.CommandIndex, p *registry.Property) error {
		fmt.Fprintf(a.out, "%s.%s = %s\n", idx, p.Name(), formatValue(p))
		return nil
	})
}

func (a *app) cmdSet(args []string) error {
	if len(args) < 3 {
		return usage("set <idx> <prop> <value>")
	}

	return a.withProperty(args[0], args[1], func(_ wire.CommandIndex, p *registry.Property) error {
		v, err := parseValue(p, strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		return p.PendSet(v)
	})
}

func (a *app) cmdInterval(args []string) error {
	if len(args) != 3 {
		return usage("interval <idx> <prop> <ms>")
	}
	ms, err := strconv.ParseUint(args[2], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid interval %q", args[2])
	}

	return a.withProperty(args[0], args[1], func(_ wire.CommandIndex, p *registry.Property) error {
		if !p.Event() {
			return fmt.Errorf("%s does not send updates", p.Name())
		}
		p.PendCurrentUpdateInterval(uint32(ms))
		return nil
	})
}

func (a *app) cmdCall(args []string) error {
	if len(args) != 1 {
		return usage("call <idx>")
	}

	return a.withEndpoint(args[0], func(idx wire.CommandIndex, ep *registry.Endpoint) error {
		if !ep.SupportsCall() {
			return fmt.Errorf("%s cannot be called", idx)
		}
		ep.PendCall()
		return nil
	})
}

// axisControl returns the control of an axis endpoint the device has.
func (a *app) axisControl(name string) (*axis.Control, error) {
	var ctl *axis.Control
	err := a.withEndpoint(name, func(idx wire.CommandIndex, _ *registry.Endpoint) error {
		if !idx.Type.IsAxis() {
			return fmt.Errorf("%s is not an axis", idx)
		}
		ctl = a.ctl.Control(idx)
		return nil
	})

	return ctl, err
}

func (a *app) cmdAxis(args []string) error {
	if len(args) != 2 {
		return usage("axis <idx> <0-999>")
	}
	target, err := parseTarget(args[1])
	if err != nil {
		return err
	}
	ctl, err := a.axisControl(args[0])
	if err != nil {
		return err
	}
	ctl.SetManual(target)

	return nil
}

func (a *app) cmdStop(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("stop <idx>|all")
	}

	if strings.EqualFold(args[0], "all") {
		a.ctl.Reset()
		return a.conn.Send(ctx, func(c *tcode.Conn) { c.SendStopAll() })
	}

	return a.withEndpoint(args[0], func(idx wire.CommandIndex, ep *registry.Endpoint) error {
		if !ep.SupportsStop() {
			return fmt.Errorf("%s cannot be stopped", idx)
		}
		a.ctl.Remove(idx)
		ep.PendStop()
		return nil
	})
}

func (a *app) cmdPattern(args []string) error {
	if len(args) < 2 {
		return usage("pattern <idx> <show|add|del|dur|start|type|target|swap|play|pause|rewind> ...")
	}
	ctl, err := a.axisControl(args[0])
	if err != nil {
		return err
	}
	op, rest := strings.ToLower(args[1]), args[2:]

	ctl.WithPattern(func(pl *axis.PatternList) {
		err = editPattern(pl, op, rest)
		if err == nil && op == "show" {
			printPattern(a.out, pl)
		}
	})
	if err == nil && op == "play" {
		ctl.SelectPattern()
	}

	return err
}

func editPattern(pl *axis.PatternList, op string, args []string) error {
	nums := make([]uint32, 0, len(args))
	for i, arg := range args {
		n, err := strconv.ParseUint(arg, 10, 32)
		if err != nil && (op != "type" || i == 0) {
			return fmt.Errorf("invalid number %q", arg)
		}
		nums = append(nums, uint32(n))
	}
	need := func(n int, format string) error {
		if len(args) != n {
			return usage("pattern <idx> " + format)
		}
		return nil
	}

	switch op {
	case "show":
		return nil
	case "play":
		pl.Play()
		return nil
	case "pause":
		pl.Pause()
		return nil
	case "rewind":
		pl.Rewind()
		return nil
	case "add":
		pos := pl.Len()
		if len(args) == 1 {
			pos = int(nums[0])
		}
		_, err := pl.Insert(pos)
		return err
	case "del":
		if err := need(1, "del <pos>"); err != nil {
			return err
		}
		return pl.Delete(int(nums[0]))
	case "dur":
		if err := need(2, "dur <pos> <ms>"); err != nil {
			return err
		}
		_, err := pl.SetDuration(int(nums[0]), nums[1])
		return err
	case "start":
		if err := need(2, "start <pos> <ms>"); err != nil {
			return err
		}
		return pl.SetStartTime(int(nums[0]), nums[1])
	case "type":
		if err := need(2, "type <pos> <type>"); err != nil {
			return err
		}
		typ, err := axis.ParseElementType(args[1])
		if err != nil {
			return err
		}
		return pl.SetType(int(nums[0]), typ)
	case "target":
		if err := need(2, "target <pos> <0-999>"); err != nil {
			return err
		}
		return pl.SetTarget(int(nums[0]), nums[1])
	case "swap":
		if err := need(2, "swap <pos> <pos>"); err != nil {
			return err
		}
		return pl.Swap(int(nums[0]), int(nums[1]))
	default:
		return fmt.Errorf("unknown pattern command %q", op)
	}
}

func printPattern(w io.Writer, pl *axis.PatternList) {
	state := "paused"
	if pl.Active() {
		state = "playing"
	}
	fmt.Fprintf(w, "%s at %d/%d ms\n", state, pl.Time(), pl.Total())
	for i, e := range pl.Elements() {
		marker := " "
		if i == pl.Current() {
			marker = ">"
		}
		fmt.Fprintf(w, "%s %2d  %6d +%-6d %-8s %d\n", marker, i, e.Start, e.Duration, e.Type, e.Target)
	}
}

func (a *app) cmdScript(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return usage("script <idx> <file> [invert]")
	}
	invert := len(args) == 3 && strings.EqualFold(args[2], "invert")
	if len(args) == 3 && !invert {
		return usage("script <idx> <file> [invert]")
	}

	ctl, err := a.axisControl(args[0])
	if err != nil {
		return err
	}
	fs, err := axis.LoadFunscript(args[1])
	if err != nil {
		return err
	}

	ctl.WithScript(func(s *axis.ScriptLink) {
		s.SetSource(fs)
		s.SetInvert(invert)
	})
	ctl.SelectScript()
	fmt.Fprintf(a.out, "%s: %q, %d actions, %s\n", ctl.Index(), fs.Title, len(fs.Actions()), fs.Duration())

	return nil
}

func (a *app) cmdSeek(args []string) error {
	if len(args) != 1 {
		return usage("seek <seconds>")
	}
	secs, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid position %q", args[0])
	}
	a.clock.Seek(time.Duration(secs * float64(time.Second)))

	return nil
}

func (a *app) printMetrics() {
	m := a.conn.GetMetrics()
	fmt.Fprintf(a.out, "requests sent:      %d (%d failed, %d bytes)\n",
		m.RequestSendCount.Load(), m.RequestErrCount.Load(), m.BytesSent.Load())
	fmt.Fprintf(a.out, "responses received: %d (%d errors, %d malformed, %d bytes)\n",
		m.ResponseRecvCount.Load(), m.ResponseErrCount.Load(), m.MalformedResponseCount.Load(), m.BytesRecv.Load())
	fmt.Fprintf(a.out, "dropped records:    %d\n", m.DroppedRecordCount.Load())
	fmt.Fprintf(a.out, "connects:           %d (%d lost)\n", m.ConnectCount.Load(), m.ConnLostCount.Load())
}

func parseTarget(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n > axis.TargetMax {
		return 0, fmt.Errorf("invalid target %q, want 0-%d", s, axis.TargetMax)
	}
	return uint32(n), nil
}
