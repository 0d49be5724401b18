package axis

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/sevfate/go-tcode/registry"
	"github.com/sevfate/go-tcode/wire"
)

// Axis targets produced by this package use three fractional digits.
const (
	TargetDigits  = 3
	TargetMax     = 999
	TargetDefault = (TargetMax + 1) / 2
)

// PatternTimeLimit is the longest cycle of a pattern list, in milliseconds.
const PatternTimeLimit = 60 * 1000

var (
	// ErrElementIndex indicates an element index outside the list.
	ErrElementIndex = errors.New("pattern element index out of range")

	// ErrPatternFull indicates that the list already spans PatternTimeLimit.
	ErrPatternFull = errors.New("pattern list reached its time limit")
)

// ElementType selects the update an element sends when it becomes current.
type ElementType uint8

const (
	ElementNoAction ElementType = iota
	ElementNormal
	ElementInterval
	ElementSpeed
)

var elementTypeNames = [...]string{"nop", "normal", "interval", "speed"}

func (t ElementType) String() string {
	if int(t) < len(elementTypeNames) {
		return elementTypeNames[t]
	}
	return fmt.Sprintf("ElementType(%d)", t)
}

// ParseElementType parses the name printed by ElementType.String.
func ParseElementType(s string) (ElementType, error) {
	for i, name := range elementTypeNames {
		if strings.EqualFold(s, name) {
			return ElementType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown pattern element type %q", s)
}

// Element is one step of a pattern. Times are in milliseconds and Target
// is a numerator over TargetMax.
type Element struct {
	Start    uint32
	Duration uint32
	Type     ElementType
	Target   uint32
}

func defaultElement(start uint32) Element {
	return Element{Start: start, Duration: 1, Target: TargetDefault}
}

// End is the time at which the next element takes over.
func (e Element) End() uint32 { return e.Start + e.Duration }

// apply schedules the element's update on ep. previous is the target of
// the element before it, used to derive the speed of a speed update.
func (e Element) apply(ep *registry.Endpoint, previous uint32) {
	target := wire.NewFractional(e.Target, TargetDigits)

	switch e.Type {
	case ElementNoAction:
	case ElementNormal:
		if ep.SupportsUpdate() {
			ep.PendNormalUpdate(target)
		}
	case ElementInterval:
		if ep.SupportsIntervalUpdate() {
			ep.PendIntervalUpdate(target, e.Duration)
		}
	case ElementSpeed:
		if ep.SupportsSpeedUpdate() {
			ep.PendSpeedUpdate(target, speedFor(previous, e.Target, e.Duration))
		}
	}
}

// speedFor returns the rate, in hundredths of the full range per second,
// that moves from one target to another in durationMs. It is at least 1.
func speedFor(from, to, durationMs uint32) uint32 {
	diff := math.Abs(float64(int64(to) - int64(from)))
	rate := diff / TargetMax / (float64(durationMs) / 1000)
	return max(uint32(math.Round(rate*100)), 1)
}

// PatternList is a cyclic sequence of elements without time gaps. While
// active, Apply advances its clock and schedules the update of every
// element it enters.
//
// A PatternList is not safe for concurrent use.
type PatternList struct {
	elems   []Element
	current int // -1 until the first element was applied
	time    uint32
	active  bool
}

// NewPatternList returns a list holding one default element.
func NewPatternList() *PatternList {
	return &PatternList{elems: []Element{defaultElement(0)}, current: -1}
}

func (pl *PatternList) Len() int { return len(pl.elems) }

// Elements returns a copy of the elements.
func (pl *PatternList) Elements() []Element { return slices.Clone(pl.elems) }

// Element returns the element at i.
func (pl *PatternList) Element(i int) (Element, bool) {
	if i < 0 || i >= len(pl.elems) {
		return Element{}, false
	}
	return pl.elems[i], true
}

// Total is the cycle length in milliseconds.
func (pl *PatternList) Total() uint32 { return pl.elems[len(pl.elems)-1].End() }

// Time is the position within the cycle in milliseconds.
func (pl *PatternList) Time() uint32 { return pl.time }

// Current returns the index of the element applied last, or -1.
func (pl *PatternList) Current() int { return pl.current }

func (pl *PatternList) Active() bool { return pl.active }

// Play starts advancing the clock on Apply.
func (pl *PatternList) Play() { pl.active = true }

// Pause stops the clock. The update sent last is left running.
func (pl *PatternList) Pause() { pl.active = false }

// Rewind moves the clock back to the start. The first element is applied
// again on the next Apply while playing.
func (pl *PatternList) Rewind() {
	pl.time = 0
	pl.current = -1
}

// Find returns the index of the element covering time t.
func (pl *PatternList) Find(t uint32) (int, bool) {
	i := sort.Search(len(pl.elems), func(i int) bool { return pl.elems[i].End() > t })
	if i == len(pl.elems) || pl.elems[i].Start > t {
		return 0, false
	}
	return i, true
}

// Insert adds a default element at i, or at the end when i is past the
// last element, and returns its index. It starts where the previous
// element ends and shifts the later elements by its duration.
func (pl *PatternList) Insert(i int) (int, error) {
	if pl.Total() >= PatternTimeLimit {
		return 0, ErrPatternFull
	}
	if i < 0 || i > len(pl.elems) {
		i = len(pl.elems)
	}
	var start uint32
	if i > 0 {
		start = pl.elems[i-1].End()
	}
	pl.elems = slices.Insert(pl.elems, i, defaultElement(start))
	pl.restack(i + 1)
	if pl.current >= i {
		pl.current++
	}

	return i, nil
}

// Delete removes the element at i. The last remaining element is reset to
// the default instead of being removed.
func (pl *PatternList) Delete(i int) error {
	if i < 0 || i >= len(pl.elems) {
		return ErrElementIndex
	}
	if len(pl.elems) == 1 {
		pl.elems[0] = defaultElement(0)
		return nil
	}
	pl.elems = slices.Delete(pl.elems, i, i+1)
	pl.restack(i)
	switch {
	case pl.current > i:
		pl.current--
	case pl.current >= len(pl.elems):
		pl.current = len(pl.elems) - 1
	}
	if pl.time >= pl.Total() {
		pl.time = 0
	}

	return nil
}

// Swap exchanges every field of two elements except their start times,
// which are then recomputed from the new durations.
func (pl *PatternList) Swap(a, b int) error {
	if a < 0 || b < 0 || a >= len(pl.elems) || b >= len(pl.elems) {
		return ErrElementIndex
	}
	if a == b {
		return nil
	}
	sa, sb := pl.elems[a].Start, pl.elems[b].Start
	pl.elems[a], pl.elems[b] = pl.elems[b], pl.elems[a]
	pl.elems[a].Start, pl.elems[b].Start = sa, sb
	pl.restack(min(a, b) + 1)

	return nil
}

// SetDuration changes the duration of element i and moves the later
// elements accordingly. The duration is at least 1 and is cut so the list
// stays within PatternTimeLimit. It returns the duration applied.
func (pl *PatternList) SetDuration(i int, d uint32) (uint32, error) {
	if i < 0 || i >= len(pl.elems) {
		return 0, ErrElementIndex
	}
	allowance := PatternTimeLimit - (pl.Total() - pl.elems[i].Duration)
	d = min(max(d, 1), allowance)
	pl.elems[i].Duration = d
	pl.restack(i + 1)

	return d, nil
}

// SetStartTime moves element i to start at t, re-sorts the list and
// rebalances the durations so no gaps remain. The first element always
// starts at 0.
func (pl *PatternList) SetStartTime(i int, t uint32) error {
	if i < 0 || i >= len(pl.elems) {
		return ErrElementIndex
	}
	pl.elems[i].Start = min(t, PatternTimeLimit-1)
	slices.SortStableFunc(pl.elems, func(a, b Element) int {
		return int(a.Start) - int(b.Start)
	})

	pl.elems[0].Start = 0
	for j := 0; j < len(pl.elems)-1; j++ {
		next := pl.elems[j+1].Start
		if next > pl.elems[j].Start {
			pl.elems[j].Duration = next - pl.elems[j].Start
		} else {
			pl.elems[j].Duration = 1
		}
		pl.elems[j+1].Start = pl.elems[j].End()
	}
	if pl.time >= pl.Total() {
		pl.time = 0
	}

	return nil
}

// SetType changes the update type of element i.
func (pl *PatternList) SetType(i int, t ElementType) error {
	if i < 0 || i >= len(pl.elems) {
		return ErrElementIndex
	}
	pl.elems[i].Type = t
	return nil
}

// SetTarget changes the target of element i. It is clamped to TargetMax.
func (pl *PatternList) SetTarget(i int, target uint32) error {
	if i < 0 || i >= len(pl.elems) {
		return ErrElementIndex
	}
	pl.elems[i].Target = min(target, TargetMax)
	return nil
}

// restack recomputes the start times of the elements from index from on.
func (pl *PatternList) restack(from int) {
	if from <= 0 {
		pl.elems[0].Start = 0
		from = 1
	}
	for j := from; j < len(pl.elems); j++ {
		pl.elems[j].Start = pl.elems[j-1].End()
	}
}

// Apply advances the clock by deltaMs while the list is active. When the
// clock leaves the current element, the following element is applied and
// the clock is aligned with its start, so no element is ever skipped. A
// list of one element applies it again on every wrap.
func (pl *PatternList) Apply(ep *registry.Endpoint, deltaMs int) {
	if !pl.active {
		return
	}

	n := len(pl.elems)
	total := int64(pl.Total())
	next := int64(pl.time) + int64(deltaMs)
	wrapped := next >= total || next < 0
	next %= total
	if next < 0 {
		next += total
	}

	idx, ok := pl.Find(uint32(next))
	if !ok {
		idx = 0
	}
	if idx != pl.current || (wrapped && n == 1) {
		previous := uint32(TargetDefault)
		if pl.current >= 0 && pl.current < n {
			previous = pl.elems[pl.current].Target
		}
		idx = (pl.current + 1) % n
		e := pl.elems[idx]
		next = int64(e.Start)
		e.apply(ep, previous)
		pl.current = idx
	}
	pl.time = uint32(next)
}
