package hybridtime

import (
	"sync"
	"time"
)

/*
Clock is a hybrid logical clock. Timestamps returned by Now are strictly
increasing even when the wall clock goes backwards or stalls, once the
clock has reached Max it stays there.
*/
type Clock struct {
	mu   sync.Mutex
	last Timestamp
	wall func() time.Time
}

// NewClock returns clock backed by system wall clock.
func NewClock() *Clock {
	return NewClockWithSource(time.Now)
}

// NewClockWithSource returns clock which uses "wall" as physical time source.
func NewClockWithSource(wall func() time.Time) *Clock {
	return &Clock{wall: wall}
}

// Now returns new timestamp which is after any timestamp previously returned or observed.
func (c *Clock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := FromTime(c.wall())
	if now.After(c.last) {
		c.last = now
	} else {
		c.last = c.last.Next()
	}
	return c.last
}

/*
Update advances the clock past timestamp received from another node and
returns the new current value.
*/
func (c *Clock) Update(observed Timestamp) Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := FromTime(c.wall())
	switch {
	case now.After(c.last) && now.After(observed):
		c.last = now
	case observed.After(c.last):
		c.last = observed.Next()
	default:
		c.last = c.last.Next()
	}
	return c.last
}
