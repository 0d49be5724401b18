package axis

import (
	"math"
	"time"

	"github.com/sevfate/go-tcode/registry"
	"github.com/sevfate/go-tcode/wire"
)

// TimePositionSource yields the position of a script over time. current
// and target are normalized to [0, 1]; secondsToTarget is how long the
// move to target takes from at, and may be +Inf.
type TimePositionSource interface {
	Interpolate(at time.Duration) (current, target, secondsToTarget float64)
}

// Clock is the playback clock a script follows.
type Clock interface {
	Paused() bool
	Now() time.Duration
}

const (
	// MaxUpdatePeriod is the longest time, in milliseconds, between two
	// updates sent by a playing script link.
	MaxUpdatePeriod = 333

	maxIntervalSeconds = 60
	pausedRefreshMs    = 60 * 1000
)

// CommandKind is the kind of the last command a script link scheduled.
type CommandKind uint8

const (
	CommandNone CommandKind = iota
	CommandNormal
	CommandInterval
	CommandStop
)

// Command is an update scheduled by a script link.
type Command struct {
	Kind     CommandKind
	Target   wire.Fractional
	Interval uint32
}

// ScriptLink drives an axis from a TimePositionSource. On a reset or a
// pause transition it moves the axis straight to the current position.
// While playing it sends interval updates toward the next target, at most
// MaxUpdatePeriod apart.
//
// A ScriptLink is not safe for concurrent use.
type ScriptLink struct {
	source      TimePositionSource
	clock       Clock
	invert      bool
	stopOnPause bool

	paused    bool
	untilNext int
	last      Command
}

// NewScriptLink returns a link following clock. It does nothing until a
// source is set.
func NewScriptLink(clock Clock) *ScriptLink {
	return &ScriptLink{clock: clock}
}

// SetSource links src and resynchronizes the axis on the next Apply.
func (s *ScriptLink) SetSource(src TimePositionSource) {
	s.source = src
	s.Reset()
}

func (s *ScriptLink) Source() TimePositionSource { return s.source }

// SetInvert mirrors positions within the axis limits.
func (s *ScriptLink) SetInvert(invert bool) {
	if s.invert != invert {
		s.invert = invert
		s.Reset()
	}
}

func (s *ScriptLink) Inverted() bool { return s.invert }

// SetStopOnPause makes a pause stop the axis instead of moving it to the
// current position, when the axis supports stop.
func (s *ScriptLink) SetStopOnPause(stop bool) { s.stopOnPause = stop }

func (s *ScriptLink) StopOnPause() bool { return s.stopOnPause }

// Reset resynchronizes the axis on the next Apply.
func (s *ScriptLink) Reset() { s.untilNext = 0 }

// LastCommand returns the update scheduled last.
func (s *ScriptLink) LastCommand() Command { return s.last }

// Apply schedules the updates due after deltaMs milliseconds. The caller
// must hold the registry that ep belongs to.
func (s *ScriptLink) Apply(ep *registry.Endpoint, deltaMs int) {
	if s.source == nil || s.clock == nil {
		return
	}

	if paused := s.clock.Paused(); paused != s.paused {
		s.paused = paused
		s.untilNext = 0
	}
	if s.untilNext > deltaMs {
		s.untilNext -= deltaMs
		return
	}

	pos, target, secs := s.source.Interpolate(s.clock.Now())
	lo, hi, reversed := ep.AxisLimits(TargetDigits)
	if reversed {
		lo, hi = TargetDefault, TargetDefault
	}

	if s.untilNext == 0 || s.paused {
		if s.paused && s.stopOnPause && ep.SupportsStop() {
			ep.PendStop()
			s.last = Command{Kind: CommandStop}
		} else {
			s.sendNormal(ep, s.scale(pos, lo, hi))
		}
		if s.paused {
			s.untilNext = pausedRefreshMs
		} else {
			s.untilNext = 1
		}
		return
	}

	ms := math.Min(secs, maxIntervalSeconds) * 1000
	tgt := s.scale(target, lo, hi)
	if ep.SupportsIntervalUpdate() {
		v := wire.NewFractional(tgt, TargetDigits)
		ep.PendIntervalUpdate(v, uint32(ms))
		s.last = Command{Kind: CommandInterval, Target: v, Interval: uint32(ms)}
	} else {
		s.sendNormal(ep, tgt)
	}
	// 1 rather than 0 so an immediate target does not read as a reset
	s.untilNext = max(min(int(ms), MaxUpdatePeriod), 1)
}

func (s *ScriptLink) sendNormal(ep *registry.Endpoint, num uint32) {
	if !ep.SupportsUpdate() {
		return
	}
	v := wire.NewFractional(num, TargetDigits)
	ep.PendNormalUpdate(v)
	s.last = Command{Kind: CommandNormal, Target: v}
}

// scale maps a normalized position into [lo, hi].
func (s *ScriptLink) scale(pos float64, lo, hi uint32) uint32 {
	if math.IsNaN(pos) {
		pos = 0
	}
	pos = math.Max(0, math.Min(1, pos))
	if s.invert {
		pos = 1 - pos
	}
	return uint32(math.Round(float64(lo) + pos*(float64(hi)-float64(lo))))
}
