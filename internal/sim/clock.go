// Package sim drives the per-tick simulation: it maps wall time onto
// simulated time and runs the propagate → transform → occlude pass over the
// tracked population, publishing a frame for the rendering layer.
package sim

import "time"

// Clock maps wall-clock time onto simulation time. The simulation start is
// fixed at construction, so elapsed simulated time has one explicit
// initialization point and tests can pin it.
type Clock struct {
	simStart  time.Time
	wallStart time.Time
	accel     float64
	wallNow   func() time.Time
}

// NewClock creates a clock that starts the simulation at start and runs it
// at accel times real speed. accel <= 0 means real time.
func NewClock(start time.Time, accel float64) *Clock {
	return newClockAt(start, accel, time.Now)
}

func newClockAt(start time.Time, accel float64, wallNow func() time.Time) *Clock {
	if accel <= 0 {
		accel = 1
	}
	return &Clock{
		simStart:  start.UTC(),
		wallStart: wallNow(),
		accel:     accel,
		wallNow:   wallNow,
	}
}

// Now returns the current simulated instant.
func (c *Clock) Now() time.Time {
	elapsed := c.wallNow().Sub(c.wallStart)
	return c.simStart.Add(time.Duration(float64(elapsed) * c.accel))
}

// Acceleration returns the simulation speed factor.
func (c *Clock) Acceleration() float64 {
	return c.accel
}
