package tcode

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/sevfate/go-tcode/logger"
)

// DefaultMaxResponseSize is the default and largest accepted response line.
const DefaultMaxResponseSize = 1 << 20

// TransportKind selects how a target string is opened.
type TransportKind uint8

const (
	// TransportAuto opens "host:port" targets over TCP and anything else as
	// a serial device path.
	TransportAuto TransportKind = iota
	TransportSerial
	TransportTCP
)

func (k TransportKind) String() string {
	switch k {
	case TransportSerial:
		return "serial"
	case TransportTCP:
		return "tcp"
	default:
		return "auto"
	}
}

// Parity is the serial parity mode. ParityNotSet keeps the driver default.
type Parity uint8

const (
	ParityNotSet Parity = iota
	ParityNone
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

// StopBits is the serial stop bit count. StopBitsNotSet keeps the driver
// default.
type StopBits uint8

const (
	StopBitsNotSet StopBits = iota
	StopBitsOne
	StopBitsOnePointFive
	StopBitsTwo
)

// FlowControl is the serial flow control mode. FlowControlNotSet keeps the
// driver default.
type FlowControl uint8

const (
	FlowControlNotSet FlowControl = iota
	FlowControlNone
	FlowControlSoftware
	FlowControlHardware
)

// TraceFormat selects the packet trace file format.
type TraceFormat uint8

const (
	// TraceText writes `<micros>>>>line` and `<micros><<<line` records.
	TraceText TraceFormat = iota
	// TraceCBOR writes a CBOR event log.
	TraceCBOR
)

func (f TraceFormat) String() string {
	if f == TraceCBOR {
		return "cbor"
	}
	return "text"
}

// ConnectionConfig represents the configuration of a T-Code connection.
type ConnectionConfig struct {
	mu sync.RWMutex

	// transport selects how Connect opens its target.
	// Defaults to TransportAuto.
	transport TransportKind

	// baudRate, dataBits, parity, stopBits and flowControl configure serial
	// transports. Zero values keep the driver defaults.
	baudRate    int
	dataBits    int
	parity      Parity
	stopBits    StopBits
	flowControl FlowControl

	// dialTimeout bounds opening a TCP transport. It should be between 1 and 30 seconds.
	// Defaults to 3 seconds.
	dialTimeout time.Duration

	// writeTimeout bounds each write on transports that support deadlines.
	// Defaults to 2 seconds.
	writeTimeout time.Duration

	// closeTimeout bounds tearing down the connection. It should be between 1 and 30 seconds.
	// Defaults to 3 seconds.
	closeTimeout time.Duration

	// maxResponseSize caps a single response line.
	// Defaults to DefaultMaxResponseSize.
	maxResponseSize int

	// traceDir enables packet tracing into a new file in this directory.
	traceDir    string
	traceFormat TraceFormat

	// autoEnumerate sends D0 D1 D2 right after connecting.
	// Defaults to true.
	autoEnumerate bool

	logger logger.Logger
}

// NewConnectionConfig creates a connection configuration with default
// values and applies opts in order.
func NewConnectionConfig(opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		transport:       TransportAuto,
		dialTimeout:     3 * time.Second,
		writeTimeout:    2 * time.Second,
		closeTimeout:    3 * time.Second,
		maxResponseSize: DefaultMaxResponseSize,
		autoEnumerate:   true,
		logger:          logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func (cfg *ConnectionConfig) Transport() TransportKind {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.transport
}

func (cfg *ConnectionConfig) DialTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.dialTimeout
}

func (cfg *ConnectionConfig) WriteTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.writeTimeout
}

func (cfg *ConnectionConfig) CloseTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.closeTimeout
}

func (cfg *ConnectionConfig) MaxResponseSize() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.maxResponseSize
}

// PacketTracing returns the trace directory, empty when disabled, and format.
func (cfg *ConnectionConfig) PacketTracing() (string, TraceFormat) {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.traceDir, cfg.traceFormat
}

func (cfg *ConnectionConfig) AutoEnumerate() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.autoEnumerate
}

func (cfg *ConnectionConfig) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

// SerialMode returns the go.bug.st/serial mode for the configured settings.
func (cfg *ConnectionConfig) SerialMode() *serial.Mode {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	mode := &serial.Mode{BaudRate: cfg.baudRate, DataBits: cfg.dataBits}
	switch cfg.parity {
	case ParityOdd:
		mode.Parity = serial.OddParity
	case ParityEven:
		mode.Parity = serial.EvenParity
	case ParityMark:
		mode.Parity = serial.MarkParity
	case ParitySpace:
		mode.Parity = serial.SpaceParity
	default:
		mode.Parity = serial.NoParity
	}
	switch cfg.stopBits {
	case StopBitsOnePointFive:
		mode.StopBits = serial.OnePointFiveStopBits
	case StopBitsTwo:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	return mode
}

// resolveTransport decides how target is opened.
func (cfg *ConnectionConfig) resolveTransport(target string) TransportKind {
	kind := cfg.Transport()
	if kind != TransportAuto {
		return kind
	}
	if _, _, err := net.SplitHostPort(target); err == nil {
		return TransportTCP
	}

	return TransportSerial
}

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	runtime   bool
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error {
	if cfg == nil {
		return ErrConnConfigNil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	return c.applyFunc(cfg)
}

func newConnOptFunc(name string, runtime bool, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{name: name, runtime: runtime, applyFunc: f}
}

// WithSerial opens every target as a serial device path.
//
// This option can't be changed at runtime.
func WithSerial() ConnOption {
	return newConnOptFunc("WithSerial", false, func(cfg *ConnectionConfig) error {
		cfg.transport = TransportSerial
		return nil
	})
}

// WithTCP opens every target as a "host:port" TCP address.
//
// This option can't be changed at runtime.
func WithTCP() ConnOption {
	return newConnOptFunc("WithTCP", false, func(cfg *ConnectionConfig) error {
		cfg.transport = TransportTCP
		return nil
	})
}

// WithAutoTransport picks TCP for "host:port" targets and serial otherwise.
//
// This option can't be changed at runtime.
func WithAutoTransport() ConnOption {
	return newConnOptFunc("WithAutoTransport", false, func(cfg *ConnectionConfig) error {
		cfg.transport = TransportAuto
		return nil
	})
}

// WithBaudRate sets the serial baud rate.
//
// This option can't be changed at runtime.
func WithBaudRate(baud int) ConnOption {
	return newConnOptFunc("WithBaudRate", false, func(cfg *ConnectionConfig) error {
		if baud <= 0 {
			return fmt.Errorf("baud rate %d must be positive", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithDataBits sets the serial character size, 5 to 8 bits.
//
// This option can't be changed at runtime.
func WithDataBits(bits int) ConnOption {
	return newConnOptFunc("WithDataBits", false, func(cfg *ConnectionConfig) error {
		if bits < 5 || bits > 8 {
			return fmt.Errorf("data bits %d out of range [5, 8]", bits)
		}
		cfg.dataBits = bits

		return nil
	})
}

// WithParity sets the serial parity.
//
// This option can't be changed at runtime.
func WithParity(p Parity) ConnOption {
	return newConnOptFunc("WithParity", false, func(cfg *ConnectionConfig) error {
		if p > ParitySpace {
			return fmt.Errorf("invalid parity %d", p)
		}
		cfg.parity = p

		return nil
	})
}

// WithStopBits sets the serial stop bits.
//
// This option can't be changed at runtime.
func WithStopBits(s StopBits) ConnOption {
	return newConnOptFunc("WithStopBits", false, func(cfg *ConnectionConfig) error {
		if s > StopBitsTwo {
			return fmt.Errorf("invalid stop bits %d", s)
		}
		cfg.stopBits = s

		return nil
	})
}

// WithFlowControl sets the serial flow control. The serial driver only
// supports running without flow control.
//
// This option can't be changed at runtime.
func WithFlowControl(f FlowControl) ConnOption {
	return newConnOptFunc("WithFlowControl", false, func(cfg *ConnectionConfig) error {
		switch f {
		case FlowControlNotSet, FlowControlNone:
			cfg.flowControl = f
			return nil
		case FlowControlSoftware, FlowControlHardware:
			return ErrUnsupportedFlowControl
		default:
			return fmt.Errorf("invalid flow control %d", f)
		}
	})
}

// WithDialTimeout sets the TCP dial timeout, 1 to 30 seconds.
//
// This option can be changed at runtime.
func WithDialTimeout(d time.Duration) ConnOption {
	return newConnOptFunc("WithDialTimeout", true, func(cfg *ConnectionConfig) error {
		if d < time.Second || d > 30*time.Second {
			return errors.New("dial timeout out of range [1, 30] seconds")
		}
		cfg.dialTimeout = d

		return nil
	})
}

// WithWriteTimeout sets the per-write deadline, 1 millisecond to 60 seconds.
//
// This option can be changed at runtime.
func WithWriteTimeout(d time.Duration) ConnOption {
	return newConnOptFunc("WithWriteTimeout", true, func(cfg *ConnectionConfig) error {
		if d < time.Millisecond || d > 60*time.Second {
			return errors.New("write timeout out of range [1ms, 60s]")
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithCloseTimeout sets the teardown timeout, 1 to 30 seconds.
//
// This option can be changed at runtime.
func WithCloseTimeout(d time.Duration) ConnOption {
	return newConnOptFunc("WithCloseTimeout", true, func(cfg *ConnectionConfig) error {
		if d < time.Second || d > 30*time.Second {
			return errors.New("close timeout out of range [1, 30] seconds")
		}
		cfg.closeTimeout = d

		return nil
	})
}

// WithMaxResponseSize caps a response line, up to DefaultMaxResponseSize.
//
// This option can't be changed at runtime.
func WithMaxResponseSize(n int) ConnOption {
	return newConnOptFunc("WithMaxResponseSize", false, func(cfg *ConnectionConfig) error {
		if n < 64 || n > DefaultMaxResponseSize {
			return fmt.Errorf("max response size out of range [64, %d]", DefaultMaxResponseSize)
		}
		cfg.maxResponseSize = n

		return nil
	})
}

// WithPacketTracing records every sent and received line into a new file
// in dir for each connect.
//
// This option can't be changed at runtime.
func WithPacketTracing(dir string, format TraceFormat) ConnOption {
	return newConnOptFunc("WithPacketTracing", false, func(cfg *ConnectionConfig) error {
		if dir == "" {
			return errors.New("trace directory is empty")
		}
		if format > TraceCBOR {
			return fmt.Errorf("invalid trace format %d", format)
		}
		cfg.traceDir = dir
		cfg.traceFormat = format

		return nil
	})
}

// WithAutoEnumerate controls whether Connect queries D0 D1 D2.
//
// This option can be changed at runtime.
func WithAutoEnumerate(enabled bool) ConnOption {
	return newConnOptFunc("WithAutoEnumerate", true, func(cfg *ConnectionConfig) error {
		cfg.autoEnumerate = enabled
		return nil
	})
}

// WithLogger sets the logger.
//
// This option can't be changed at runtime.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", false, func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
