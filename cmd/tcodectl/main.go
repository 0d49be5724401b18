// Command tcodectl talks to T-Code devices.
//
// Usage:
//
//	tcodectl <command> [flags]
//
// Commands:
//
//	enumerate  Connect, print the device's endpoints and disconnect
//	shell      Interactive shell for properties and axis control
//	trace      Print a CBOR packet trace
//	config     Print the effective configuration
//
// Examples:
//
//	# Enumerate a device on a serial port
//	tcodectl enumerate -target /dev/ttyUSB0
//
//	# Drive a device over TCP with a config file
//	tcodectl shell -config tcode.yaml -target 192.168.1.20:8000
//
//	# Show only received lines of a trace
//	tcodectl trace -direction received traces/etcode_20240101_120000.cbor
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"

	"github.com/sevfate/go-tcode/logger"
	"github.com/sevfate/go-tcode/trace"
)

const usageText = `tcodectl - T-Code device tool

Usage:
  tcodectl <command> [flags]

Commands:
  enumerate  Connect, print the device's endpoints and disconnect
  shell      Interactive shell for properties and axis control
  trace      Print a CBOR packet trace
  config     Print the effective configuration

Use "tcodectl <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "enumerate":
		return runEnumerate(ctx, args, out)
	case "shell":
		return runShellCmd(ctx, args, out)
	case "trace":
		return runTrace(args, out)
	case "config":
		return runConfig(args, out)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(out, usageText)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// connFlags are the flags shared by the commands that connect.
type connFlags struct {
	configPath string
	target     string
	transport  string
	logLevel   string
}

func (f *connFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "YAML config file")
	fs.StringVar(&f.target, "target", "", "serial port or host:port, overrides the config")
	fs.StringVar(&f.transport, "transport", "", "auto, serial or tcp, overrides the config")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error, overrides the config")
}

// load reads the config file, if any, and applies the flag overrides.
func (f *connFlags) load() (*Config, error) {
	cfg := &Config{}
	if f.configPath != "" {
		var err error
		if cfg, err = LoadConfig(f.configPath); err != nil {
			return nil, err
		}
	}
	if f.target != "" {
		cfg.Target = f.target
	}
	if f.transport != "" {
		cfg.Transport = f.transport
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}

	return cfg, nil
}

func newLogger(cfg *Config, w io.Writer) (logger.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return logger.NewSlogWithWriter(w, level, false), nil
}

func runEnumerate(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("enumerate", flag.ContinueOnError)
	var cf connFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cf.load()
	if err != nil {
		return err
	}
	l, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, l, out)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.connect(ctx, cfg.Target); err != nil {
		return err
	}

	return a.exec(ctx, "list")
}

func runShellCmd(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	var cf connFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cf.load()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tcode> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	l, err := newLogger(cfg, rl.Stderr())
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, l, rl.Stdout())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.connect(ctx, cfg.Target); err != nil {
		return err
	}

	return a.runShell(ctx, rl)
}

func runTrace(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	direction := fs.String("direction", "", "only show sent or received packets")
	session := fs.String("session", "", "only show packets of one recorder session")
	text := fs.Bool("text", false, "print in the text trace format")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: tcodectl trace [flags] <file.cbor>")
	}

	filter := trace.Filter{Session: *session}
	switch strings.ToLower(*direction) {
	case "":
	case "sent", "out":
		d := trace.DirectionSent
		filter.Direction = &d
	case "received", "in":
		d := trace.DirectionReceived
		filter.Direction = &d
	default:
		return fmt.Errorf("unknown direction %q", *direction)
	}

	rd, err := trace.OpenReader(fs.Arg(0), filter)
	if err != nil {
		return err
	}
	defer rd.Close()

	return dumpTrace(rd, out, *text)
}

func dumpTrace(rd *trace.Reader, out io.Writer, text bool) error {
	w := bufio.NewWriter(out)
	var line []byte
	for {
		e, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = w.Flush()
			return err
		}

		if text {
			line = e.AppendText(line[:0])
		} else {
			line = append(append(line[:0], e.String()...), '\n')
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
	}

	return w.Flush()
}

func runConfig(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	var cf connFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cf.load()
	if err != nil {
		return err
	}
	if _, err := cfg.ConnOptions(nil); err != nil {
		return err
	}
	if _, err := cfg.Level(); err != nil {
		return err
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = out.Write(data)

	return err
}
