package axis

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/sevfate/go-tcode/registry"
	"github.com/sevfate/go-tcode/wire"
)

// Mode selects what drives an axis.
type Mode uint8

const (
	ModeUnknown Mode = iota
	ModeManual
	ModePattern
	ModeScript
)

var modeNames = [...]string{"unknown", "manual", "pattern", "script"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// Updates used by manual control on axes without plain update support.
const (
	ManualImpulseInterval = 1
	ManualImpulseSpeed    = 1000
)

// Control is the control state of one axis: a manual target, a pattern
// list and a script link, of which the selected mode is applied. It is
// safe for concurrent use.
type Control struct {
	idx wire.CommandIndex

	mu          sync.Mutex
	mode        Mode
	manual      uint32
	manualDirty bool
	pattern     *PatternList
	script      *ScriptLink
}

func newControl(idx wire.CommandIndex, clock Clock) *Control {
	return &Control{
		idx:     idx,
		manual:  TargetDefault,
		pattern: NewPatternList(),
		script:  NewScriptLink(clock),
	}
}

func (c *Control) Index() wire.CommandIndex { return c.idx }

func (c *Control) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mode
}

// SelectManual switches to manual control. On a mode change the manual
// target starts at def and is not sent until SetManual is called.
func (c *Control) SelectManual(def uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == ModeManual {
		return false
	}
	c.mode = ModeManual
	c.manual = min(def, TargetMax)
	c.manualDirty = false

	return true
}

// SelectPattern switches to pattern control.
func (c *Control) SelectPattern() bool { return c.selectMode(ModePattern) }

// SelectScript switches to script control.
func (c *Control) SelectScript() bool { return c.selectMode(ModeScript) }

func (c *Control) selectMode(m Mode) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == m {
		return false
	}
	c.mode = m

	return true
}

// SetManual selects manual control and schedules target for the next
// Apply.
func (c *Control) SetManual(target uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mode = ModeManual
	c.manual = min(target, TargetMax)
	c.manualDirty = true
}

// Manual returns the manual target.
func (c *Control) Manual() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.manual
}

// WithPattern runs fn with the axis' pattern list locked.
func (c *Control) WithPattern(fn func(pl *PatternList)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(c.pattern)
}

// WithScript runs fn with the axis' script link locked.
func (c *Control) WithScript(fn func(s *ScriptLink)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(c.script)
}

// Apply schedules the updates of the selected mode on ep.
func (c *Control) Apply(ep *registry.Endpoint, deltaMs int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case ModeManual:
		if c.manualDirty {
			c.manualDirty = false
			applyManual(ep, c.manual)
		}
	case ModePattern:
		c.pattern.Apply(ep, deltaMs)
	case ModeScript:
		c.script.Apply(ep, deltaMs)
	}
}

// applyManual moves the axis to target, kept within the axis limits, with
// the first update kind the axis supports.
func applyManual(ep *registry.Endpoint, target uint32) {
	lo, hi, reversed := ep.AxisLimits(TargetDigits)
	if reversed {
		lo, hi = TargetDefault, TargetDefault
	}
	v := wire.NewFractional(min(max(target, lo), hi), TargetDigits)

	switch {
	case ep.SupportsUpdate():
		ep.PendNormalUpdate(v)
	case ep.SupportsIntervalUpdate():
		ep.PendIntervalUpdate(v, ManualImpulseInterval)
	case ep.SupportsSpeedUpdate():
		ep.PendSpeedUpdate(v, ManualImpulseSpeed)
	}
}

// Controller keeps the control state of every axis of a device.
type Controller struct {
	clock    Clock
	controls *xsync.MapOf[wire.CommandIndex, *Control]
}

// NewController returns a controller whose script links follow clock.
func NewController(clock Clock) *Controller {
	return &Controller{
		clock:    clock,
		controls: xsync.NewMapOf[wire.CommandIndex, *Control](),
	}
}

// Control returns the control state of idx, creating it on first use.
func (c *Controller) Control(idx wire.CommandIndex) *Control {
	ctl, _ := c.controls.LoadOrCompute(idx, func() *Control {
		return newControl(idx, c.clock)
	})
	return ctl
}

// Lookup returns the control state of idx if it exists.
func (c *Controller) Lookup(idx wire.CommandIndex) (*Control, bool) {
	return c.controls.Load(idx)
}

// Remove drops the control state of idx.
func (c *Controller) Remove(idx wire.CommandIndex) {
	c.controls.Delete(idx)
}

// Reset drops every control state, e.g. after the device changed.
func (c *Controller) Reset() {
	c.controls.Clear()
}

func (c *Controller) Len() int { return c.controls.Size() }

// Apply applies every control state whose axis exists in r. The caller
// must hold r.
func (c *Controller) Apply(r *registry.Registry, deltaMs int) {
	c.controls.Range(func(idx wire.CommandIndex, ctl *Control) bool {
		if ep, ok := r.Endpoint(idx); ok {
			ctl.Apply(ep, deltaMs)
		}
		return true
	})
}
