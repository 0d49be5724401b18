package axis

import (
	"context"
	"errors"
	"time"

	"github.com/sevfate/go-tcode/logger"
	"github.com/sevfate/go-tcode/registry"
	"github.com/sevfate/go-tcode/tcode"
)

// DefaultPumpInterval is the default period of the axis pump.
const DefaultPumpInterval = 10 * time.Millisecond

const pumpTaskName = "axis-pump"

// Pump periodically applies a Controller to the registry of a connection
// and sends the scheduled operations whenever no response is pending.
type Pump struct {
	conn     *tcode.Conn
	ctl      *Controller
	interval time.Duration
	logger   logger.Logger
	taskMgr  *tcode.TaskManager

	now  func() time.Time
	last time.Time
}

// PumpOption configures a Pump.
type PumpOption func(*Pump)

// WithPumpInterval sets the tick period. Non-positive values are ignored.
func WithPumpInterval(d time.Duration) PumpOption {
	return func(p *Pump) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPumpLogger replaces the connection's logger.
func WithPumpLogger(l logger.Logger) PumpOption {
	return func(p *Pump) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPump returns a stopped pump. It stops for good when ctx is done.
func NewPump(ctx context.Context, conn *tcode.Conn, ctl *Controller, opts ...PumpOption) *Pump {
	p := &Pump{
		conn:     conn,
		ctl:      ctl,
		interval: DefaultPumpInterval,
		logger:   conn.GetLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.taskMgr = tcode.NewTaskManager(ctx, p.logger)

	return p
}

// Start runs the pump until Stop is called.
func (p *Pump) Start() error {
	p.last = p.now()
	_, err := p.taskMgr.StartInterval(pumpTaskName, func() bool {
		p.Tick()
		return true
	}, p.interval, false)

	return err
}

// Stop stops the pump and waits for the running tick.
func (p *Pump) Stop() {
	p.taskMgr.Stop()
	p.taskMgr.Wait()
}

// Tick applies the controls for the whole milliseconds elapsed since the
// previous tick and flushes the registry. The remainder carries over to
// the next tick.
func (p *Pump) Tick() {
	now := p.now()
	delta := now.Sub(p.last).Milliseconds()
	p.last = p.last.Add(time.Duration(delta) * time.Millisecond)

	if !p.conn.IsConnected() {
		return
	}

	p.conn.WithRegistry(func(r *registry.Registry) {
		p.ctl.Apply(r, int(delta))
	})

	if p.conn.IsResponsePending() {
		return
	}
	if _, err := p.conn.Flush(); err != nil && !errors.Is(err, tcode.ErrNotConnected) {
		p.logger.Warn("failed to send axis updates", "error", err)
	}
}
