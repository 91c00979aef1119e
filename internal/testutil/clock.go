// Package testutil provides deterministic test doubles shared across
// packages: a stepping clock and a scripted remote transport.
package testutil

import (
	"sync"
	"time"
)

// Clock is a deterministic time source for tests.
//
// Every call to Now returns a timestamp one step after the previous one,
// so stored audit fields are strictly ordered and reproducible.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

// NewClock creates a clock that starts at start and advances one second
// per Now call.
func NewClock(start time.Time) *Clock {
	return &Clock{t: start, step: time.Second}
}

// Now returns the current time and advances the clock by one step.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

// Peek returns the time the next Now call will report, without advancing.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}
