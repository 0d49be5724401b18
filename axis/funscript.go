package axis

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ErrInvalidFunscript indicates a funscript document that cannot be used.
var ErrInvalidFunscript = errors.New("invalid funscript")

// Action is one point of a funscript: a position in 0..100 at a time in
// milliseconds.
type Action struct {
	At  int64 `json:"at"`
	Pos int   `json:"pos"`
}

// Funscript is a TimePositionSource backed by the actions of a funscript
// document. Actions are kept sorted by time with unique times.
type Funscript struct {
	Title   string
	actions []Action
}

type funscriptDoc struct {
	Actions  []Action `json:"actions"`
	Metadata struct {
		Title string `json:"title"`
	} `json:"metadata"`
}

// ParseFunscript decodes a funscript document. Positions are clamped to
// 0..100; the first of several actions at the same time is kept.
func ParseFunscript(data []byte) (*Funscript, error) {
	var doc funscriptDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFunscript, err)
	}

	actions := make([]Action, 0, len(doc.Actions))
	for _, a := range doc.Actions {
		if a.At < 0 {
			return nil, fmt.Errorf("%w: negative action time %d", ErrInvalidFunscript, a.At)
		}
		a.Pos = min(max(a.Pos, 0), 100)
		actions = append(actions, a)
	}
	slices.SortStableFunc(actions, func(a, b Action) int { return cmp.Compare(a.At, b.At) })
	actions = slices.CompactFunc(actions, func(a, b Action) bool { return a.At == b.At })

	return &Funscript{Title: doc.Metadata.Title, actions: actions}, nil
}

// LoadFunscript reads a funscript file. The title defaults to the file
// name without extension.
func LoadFunscript(path string) (*Funscript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fs, err := ParseFunscript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if fs.Title == "" {
		fs.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return fs, nil
}

// Actions returns a copy of the actions.
func (f *Funscript) Actions() []Action { return slices.Clone(f.actions) }

// Duration is the time of the last action.
func (f *Funscript) Duration() time.Duration {
	if len(f.actions) == 0 {
		return 0
	}
	return time.Duration(f.actions[len(f.actions)-1].At) * time.Millisecond
}

// Interpolate implements TimePositionSource. Outside the span of the
// actions, and for scripts with fewer than two actions, the position is
// held with an infinite time to target.
func (f *Funscript) Interpolate(at time.Duration) (current, target, secondsToTarget float64) {
	inf := math.Inf(1)
	n := len(f.actions)
	switch {
	case n == 0:
		return 0, 0, inf
	case n == 1:
		p := norm(f.actions[0])
		return p, p, inf
	}

	t := float64(at) / float64(time.Millisecond)
	first, last := f.actions[0], f.actions[n-1]
	if t <= float64(first.At) {
		p := norm(first)
		return p, p, inf
	}
	if t >= float64(last.At) {
		p := norm(last)
		return p, p, inf
	}

	// first action at or after t; never 0 here
	i, found := slices.BinarySearchFunc(f.actions, t, func(a Action, t float64) int {
		return cmp.Compare(float64(a.At), t)
	})
	if found {
		p := norm(f.actions[i])
		return p, p, 0
	}
	cur, next := f.actions[i-1], f.actions[i]
	from, to := norm(cur), norm(next)
	factor := (t - float64(cur.At)) / float64(next.At-cur.At)

	return from + factor*(to-from), to, (float64(next.At) - t) / 1000
}

func norm(a Action) float64 { return float64(a.Pos) / 100 }
