package sim

import "time"

// Step describes one fixed-size physics step.
type Step struct {
	// Index counts dispatched steps from 1.
	Index     uint64
	DeltaTime time.Duration
	// SimTime is the simulated time at the end of the step.
	SimTime time.Duration
}

// Clock converts irregular frame intervals into fixed-size physics steps and
// stops the simulation once the simulated time budget is reached.
//
// Time is kept in integer nanoseconds so the step count is exactly
// floor(total frame time / step size) regardless of how frames are sliced.
type Clock struct {
	stepSize   time.Duration
	timeBudget time.Duration

	accumulator time.Duration
	elapsed     time.Duration
	steps       uint64

	paused     bool
	terminated bool
}

// NewClock creates a Clock. A timeBudget <= 0 disables termination.
func NewClock(stepSize, timeBudget time.Duration) *Clock {
	if stepSize <= 0 {
		stepSize = DefaultStepSize
	}
	return &Clock{stepSize: stepSize, timeBudget: timeBudget}
}

// Advance adds frame to the accumulator and runs step once per whole step
// size it contains. The step that reaches the time budget terminates the
// clock without running. Leftover time is carried to the next call. It
// returns the number of steps run.
func (c *Clock) Advance(frame time.Duration, step func(Step)) int {
	if c.paused || c.terminated || frame <= 0 {
		return 0
	}

	c.accumulator += frame
	n := 0
	for c.accumulator >= c.stepSize {
		c.accumulator -= c.stepSize
		c.elapsed += c.stepSize

		if c.timeBudget > 0 && c.elapsed >= c.timeBudget {
			c.terminated = true
			return n
		}

		c.steps++
		n++
		if step != nil {
			step(Step{Index: c.steps, DeltaTime: c.stepSize, SimTime: c.elapsed})
		}
	}
	return n
}

// SetPaused freezes or unfreezes the clock. Frames passed to Advance while
// paused are dropped entirely.
func (c *Clock) SetPaused(paused bool) {
	c.paused = paused
}

func (c *Clock) Paused() bool { return c.paused }
func (c *Clock) Terminated() bool { return c.terminated }
func (c *Clock) StepSize() time.Duration { return c.stepSize }
func (c *Clock) TimeBudget() time.Duration { return c.timeBudget }
func (c *Clock) Elapsed() time.Duration { return c.elapsed }
func (c *Clock) Accumulator() time.Duration { return c.accumulator }
func (c *Clock) Steps() uint64 { return c.steps }
