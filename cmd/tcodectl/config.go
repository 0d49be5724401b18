package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sevfate/go-tcode/axis"
	"github.com/sevfate/go-tcode/logger"
	"github.com/sevfate/go-tcode/tcode"
)

// Config is the tcodectl configuration file.
//
//	target: /dev/ttyUSB0
//	transport: auto
//	serial:
//	  baud_rate: 115200
//	  parity: none
//	timeouts:
//	  dial: 3s
//	trace:
//	  dir: ./traces
//	  format: cbor
//	suggested_intervals: true
type Config struct {
	Target             string        `yaml:"target"`
	Transport          string        `yaml:"transport"`
	Serial             SerialConfig  `yaml:"serial"`
	Timeouts           TimeoutConfig `yaml:"timeouts"`
	MaxResponseSize    int           `yaml:"max_response_size"`
	Trace              TraceConfig   `yaml:"trace"`
	AutoEnumerate      *bool         `yaml:"auto_enumerate"`
	SuggestedIntervals bool          `yaml:"suggested_intervals"`
	PumpInterval       time.Duration `yaml:"pump_interval"`
	LogLevel           string        `yaml:"log_level"`
}

type SerialConfig struct {
	BaudRate    int    `yaml:"baud_rate"`
	DataBits    int    `yaml:"data_bits"`
	Parity      string `yaml:"parity"`
	StopBits    string `yaml:"stop_bits"`
	FlowControl string `yaml:"flow_control"`
}

type TimeoutConfig struct {
	Dial  time.Duration `yaml:"dial"`
	Write time.Duration `yaml:"write"`
	Close time.Duration `yaml:"close"`
}

type TraceConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

// LoadConfig reads a YAML config file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := parseConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

func parseConfig(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return &cfg, nil
}

// Marshal returns the YAML form of the config.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Level returns the configured log level, InfoLevel by default.
func (c *Config) Level() (logger.LogLevel, error) {
	if c.LogLevel == "" {
		return logger.InfoLevel, nil
	}
	level, ok := logger.ParseLevel(c.LogLevel)
	if !ok {
		return level, fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	return level, nil
}

// PumpOptions returns the axis pump options of the config.
func (c *Config) PumpOptions() []axis.PumpOption {
	return []axis.PumpOption{axis.WithPumpInterval(c.PumpInterval)}
}

// ConnOptions converts the config into connection options. Zero values
// leave the connection defaults in place.
func (c *Config) ConnOptions(l logger.Logger) ([]tcode.ConnOption, error) {
	var opts []tcode.ConnOption

	switch strings.ToLower(c.Transport) {
	case "", "auto":
		opts = append(opts, tcode.WithAutoTransport())
	case "serial":
		opts = append(opts, tcode.WithSerial())
	case "tcp":
		opts = append(opts, tcode.WithTCP())
	default:
		return nil, fmt.Errorf("unknown transport %q", c.Transport)
	}

	if c.Serial.BaudRate != 0 {
		opts = append(opts, tcode.WithBaudRate(c.Serial.BaudRate))
	}
	if c.Serial.DataBits != 0 {
		opts = append(opts, tcode.WithDataBits(c.Serial.DataBits))
	}
	if c.Serial.Parity != "" {
		p, err := lookup(parities, "parity", c.Serial.Parity)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tcode.WithParity(p))
	}
	if c.Serial.StopBits != "" {
		s, err := lookup(stopBits, "stop bits", c.Serial.StopBits)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tcode.WithStopBits(s))
	}
	if c.Serial.FlowControl != "" {
		f, err := lookup(flowControls, "flow control", c.Serial.FlowControl)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tcode.WithFlowControl(f))
	}

	if c.Timeouts.Dial != 0 {
		opts = append(opts, tcode.WithDialTimeout(c.Timeouts.Dial))
	}
	if c.Timeouts.Write != 0 {
		opts = append(opts, tcode.WithWriteTimeout(c.Timeouts.Write))
	}
	if c.Timeouts.Close != 0 {
		opts = append(opts, tcode.WithCloseTimeout(c.Timeouts.Close))
	}
	if c.MaxResponseSize != 0 {
		opts = append(opts, tcode.WithMaxResponseSize(c.MaxResponseSize))
	}

	if c.Trace.Dir != "" {
		format, err := lookup(traceFormats, "trace format", c.Trace.Format)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tcode.WithPacketTracing(c.Trace.Dir, format))
	}
	if c.AutoEnumerate != nil {
		opts = append(opts, tcode.WithAutoEnumerate(*c.AutoEnumerate))
	}
	if l != nil {
		opts = append(opts, tcode.WithLogger(l))
	}

	return opts, nil
}

var (
	parities = map[string]tcode.Parity{
		"none": tcode.ParityNone, "odd": tcode.ParityOdd, "even": tcode.ParityEven,
		"mark": tcode.ParityMark, "space": tcode.ParitySpace,
	}
	stopBits = map[string]tcode.StopBits{
		"1": tcode.StopBitsOne, "1.5": tcode.StopBitsOnePointFive, "2": tcode.StopBitsTwo,
	}
	flowControls = map[string]tcode.FlowControl{
		"none": tcode.FlowControlNone, "software": tcode.FlowControlSoftware, "hardware": tcode.FlowControlHardware,
	}
	traceFormats = map[string]tcode.TraceFormat{
		"": tcode.TraceText, "text": tcode.TraceText, "cbor": tcode.TraceCBOR,
	}
)

func lookup[T any](table map[string]T, what, name string) (T, error) {
	v, ok := table[strings.ToLower(name)]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s %q", what, name)
	}
	return v, nil
}
