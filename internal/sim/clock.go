package sim

import "math"

// Clock converts irregular wall-clock deltas into a whole number of fixed
// steps. Leftover time stays in the accumulator for the next call, so step
// boundaries never drift.
type Clock struct {
	stepDur  float64
	acc      float64
	maxDelta float64
}

// NewClock builds a clock at hz fixed steps per second. maxCatchup caps how
// many steps a single Advance can demand; a stall longer than that is
// forgotten rather than replayed.
func NewClock(hz float64, maxCatchup int) *Clock {
	if hz <= 0 {
		hz = 60
	}
	if maxCatchup < 1 {
		maxCatchup = 1
	}
	step := 1 / hz
	return &Clock{
		stepDur:  step,
		maxDelta: step * float64(maxCatchup),
	}
}

// Advance banks dt seconds and returns the number of fixed steps now due.
// NaN and negative deltas contribute nothing.
func (c *Clock) Advance(dt float64) int {
	if math.IsNaN(dt) || dt < 0 {
		dt = 0
	}
	c.acc += dt
	if c.acc > c.maxDelta {
		c.acc = c.maxDelta
	}
	n := 0
	for c.acc >= c.stepDur {
		c.acc -= c.stepDur
		n++
	}
	return n
}

// StepDur is the fixed step length in seconds.
func (c *Clock) StepDur() float64 {
	return c.stepDur
}
