package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sevfate/go-tcode/axis"
	"github.com/sevfate/go-tcode/logger"
	"github.com/sevfate/go-tcode/registry"
	"github.com/sevfate/go-tcode/tcode"
	"github.com/sevfate/go-tcode/wire"
)

const enumerateTimeout = 5 * time.Second

// app is a connection to one device together with its axis controls.
type app struct {
	cfg     *Config
	connCfg *tcode.ConnectionConfig
	logger  logger.Logger
	conn    *tcode.Conn
	clock   *axis.PlaybackClock
	ctl     *axis.Controller
	pump    *axis.Pump
	out     io.Writer
}

func newApp(ctx context.Context, cfg *Config, l logger.Logger, out io.Writer) (*app, error) {
	opts, err := cfg.ConnOptions(l)
	if err != nil {
		return nil, err
	}
	connCfg, err := tcode.NewConnectionConfig(opts...)
	if err != nil {
		return nil, err
	}
	conn, err := tcode.NewConn(ctx, connCfg)
	if err != nil {
		return nil, err
	}

	clock := axis.NewPlaybackClock()
	a := &app{
		cfg:     cfg,
		connCfg: connCfg,
		logger:  l,
		conn:    conn,
		clock:   clock,
		ctl:     axis.NewController(clock),
		out:     out,
	}
	a.pump = axis.NewPump(ctx, conn, a.ctl, append(cfg.PumpOptions(), axis.WithPumpLogger(l))...)

	conn.WithRegistry(func(r *registry.Registry) {
		r.SetEnumerationCallback(a.onEnumerated)
	})
	conn.SetRequestErrorCallback(func(_ *tcode.Conn, e wire.Error) {
		a.logger.Warn("request failed", "error", e.Err())
	})

	return a, nil
}

// onEnumerated runs with the registry locked after every enumeration.
func (a *app) onEnumerated(r *registry.Registry) {
	a.ctl.Reset()
	if a.cfg.SuggestedIntervals {
		r.PendSuggestedPropertyIntervals()
	}
	dev := r.Device()
	a.logger.Info("enumerated", "device", dev.Name, "version", dev.Version, "endpoints", r.Len())
}

// connect opens target and waits for the enumeration.
func (a *app) connect(ctx context.Context, target string) error {
	if target == "" {
		return errors.New("no target given")
	}
	if err := a.conn.Connect(ctx, target); err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}

	return a.start(ctx)
}

// connectWith runs the app over an open transport.
func (a *app) connectWith(ctx context.Context, trans io.ReadWriteCloser, name string) error {
	if err := a.conn.ConnectWith(trans, name); err != nil {
		return err
	}

	return a.start(ctx)
}

// start enumerates the device and starts the axis pump.
func (a *app) start(ctx context.Context) error {
	if err := a.enumerate(ctx); err != nil {
		return err
	}

	return a.pump.Start()
}

func (a *app) enumerate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, enumerateTimeout)
	defer cancel()

	if a.connCfg.AutoEnumerate() {
		if err := a.conn.WaitPendingResponse(ctx); err != nil {
			return fmt.Errorf("enumerate: %w", err)
		}
		return nil
	}
	if err := a.conn.SyncEnumerate(ctx); err != nil {
		return fmt.Errorf("enumerate: %w", err)
	}

	return nil
}

func (a *app) close() {
	a.pump.Stop()
	if err := a.conn.Close(); err != nil {
		a.logger.Warn("failed to close connection", "error", err)
	}
}
