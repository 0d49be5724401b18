package axis

import (
	"sync"
	"time"
)

// PlaybackClock is a Clock driven by play, pause and seek calls. It starts
// paused at zero and is safe for concurrent use.
type PlaybackClock struct {
	mu      sync.Mutex
	now     func() time.Time
	paused  bool
	offset  time.Duration
	started time.Time
}

// NewPlaybackClock returns a paused clock at zero.
func NewPlaybackClock() *PlaybackClock {
	return &PlaybackClock{now: time.Now, paused: true}
}

// Paused implements Clock.
func (c *PlaybackClock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.paused
}

// Now implements Clock.
func (c *PlaybackClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.position()
}

func (c *PlaybackClock) position() time.Duration {
	if c.paused {
		return c.offset
	}
	return c.offset + c.now().Sub(c.started)
}

// Play resumes the clock.
func (c *PlaybackClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		c.paused = false
		c.started = c.now()
	}
}

// Pause freezes the clock at its current position.
func (c *PlaybackClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		c.offset = c.position()
		c.paused = true
	}
}

// Seek moves the clock to at. Negative positions are treated as zero.
func (c *PlaybackClock) Seek(at time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.offset = max(at, 0)
	c.started = c.now()
}
