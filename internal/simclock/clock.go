// Package simclock provides a wall clock that can start at an arbitrary instant and run
// faster than real time.
package simclock

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hylla/daybox/internal/domain"
)

// DefaultSpeed is real time.
const DefaultSpeed = 1.0

// MaxSpeed is the fastest allowed timelapse.
const MaxSpeed = 1000.0

// ErrInvalidSpeed reports a timelapse speed outside (0, MaxSpeed].
var ErrInvalidSpeed = errors.New("timelapse speed must be in (0, 1000]")

// ErrInvalidStart reports an unparseable start time.
var ErrInvalidStart = errors.New("invalid simulated start time")

// Clock is safe for concurrent use.
type Clock struct {
	mu        sync.Mutex
	wall      func() time.Time
	speed     float64
	realStart time.Time
	simStart  time.Time
}

// Info is a snapshot of the simulation state.
type Info struct {
	Speed      float64
	RealStart  time.Time
	SimStart   time.Time
	Now        time.Time
	Simulating bool
}

// ValidateSpeed checks a timelapse speed.
func ValidateSpeed(speed float64) error {
	if !(speed > 0 && speed <= MaxSpeed) {
		return fmt.Errorf("%w: got %g", ErrInvalidSpeed, speed)
	}
	return nil
}

// New constructs a clock. A zero start begins at the real current time; wall defaults to time.Now.
func New(speed float64, start time.Time, wall func() time.Time) (*Clock, error) {
	if err := ValidateSpeed(speed); err != nil {
		return nil, err
	}
	if wall == nil {
		wall = time.Now
	}
	now := wall()
	if start.IsZero() {
		start = now
	}
	return &Clock{wall: wall, speed: speed, realStart: now, simStart: start}, nil
}

// Now returns the simulated current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowLocked()
}

func (c *Clock) nowLocked() time.Time {
	elapsed := c.wall().Sub(c.realStart)
	return c.simStart.Add(time.Duration(float64(elapsed) * c.speed))
}

// Speed returns the timelapse multiplier.
func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// SetSpeed changes the multiplier without jumping the simulated time.
func (c *Clock) SetSpeed(speed float64) error {
	if err := ValidateSpeed(speed); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.simStart = c.nowLocked()
	c.realStart = c.wall()
	c.speed = speed
	return nil
}

// Reset returns to real time at normal speed.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.wall()
	c.realStart = now
	c.simStart = now
	c.speed = DefaultSpeed
}

// Simulating reports whether the clock is sped up or offset from real time.
func (c *Clock) Simulating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.simulatingLocked()
}

func (c *Clock) simulatingLocked() bool {
	return c.speed != DefaultSpeed || !c.simStart.Equal(c.realStart)
}

// Info returns a snapshot of the simulation state.
func (c *Clock) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Info{
		Speed:      c.speed,
		RealStart:  c.realStart,
		SimStart:   c.simStart,
		Now:        c.nowLocked(),
		Simulating: c.simulatingLocked(),
	}
}

// ParseStart parses "HH:MM" (today, in now's location), "YYYY-MM-DD HH:MM" or RFC 3339.
func ParseStart(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ct, err := domain.ParseClockTime(raw); err == nil {
		return ct.On(domain.DateOf(now), now.Location()), nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", raw, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidStart, raw)
}
