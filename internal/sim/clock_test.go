package sim

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectSteps(c *Clock, frames ...time.Duration) []Step {
	var steps []Step
	for _, f := range frames {
		c.Advance(f, func(st Step) { steps = append(steps, st) })
	}
	return steps
}

func TestAdvanceSingleSlowFrame(t *testing.T) {
	c := NewClock(50*time.Millisecond, 100*time.Second)

	steps := collectSteps(c, 160*time.Millisecond)

	require.Len(t, steps, 3)
	for i, st := range steps {
		assert.Equal(t, uint64(i+1), st.Index)
		assert.Equal(t, 50*time.Millisecond, st.DeltaTime)
	}
	assert.Equal(t, 150*time.Millisecond, c.Elapsed())
	assert.Equal(t, 10*time.Millisecond, c.Accumulator())
}

func TestAdvanceCarriesLeftoverTime(t *testing.T) {
	c := NewClock(50*time.Millisecond, 0)

	assert.Equal(t, 0, c.Advance(30*time.Millisecond, nil))
	assert.Equal(t, 1, c.Advance(30*time.Millisecond, nil))
	assert.Equal(t, 10*time.Millisecond, c.Accumulator())
	assert.Equal(t, 1, c.Advance(40*time.Millisecond, nil))
	assert.Equal(t, time.Duration(0), c.Accumulator())
}

func TestStepCountInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	randomFrames := make([]time.Duration, 500)
	for i := range randomFrames {
		randomFrames[i] = time.Duration(rng.Int63n(int64(120 * time.Millisecond)))
	}

	tests := []struct {
		name   string
		frames []time.Duration
	}{
		{"60 fps", repeat(16666667*time.Nanosecond, 600)},
		{"144 fps", repeat(6944444*time.Nanosecond, 1000)},
		{"exact step frames", repeat(50*time.Millisecond, 40)},
		{"stalls mixed with fast frames", []time.Duration{
			time.Millisecond, 2 * time.Second, 7 * time.Millisecond, 49 * time.Millisecond,
			time.Millisecond, 333 * time.Millisecond,
		}},
		{"random frame times", randomFrames},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClock(50*time.Millisecond, 0)
			var total time.Duration
			count := 0
			for _, f := range tt.frames {
				total += f
				count += c.Advance(f, nil)
			}
			want := int(total / (50 * time.Millisecond))
			assert.Equal(t, want, count)
			assert.Equal(t, uint64(want), c.Steps())
			assert.Equal(t, total%(50*time.Millisecond), c.Accumulator())
		})
	}
}

func TestTerminationWithinOneAdvance(t *testing.T) {
	c := NewClock(50*time.Millisecond, 100*time.Second)

	steps := collectSteps(c, 200*time.Second)

	require.Len(t, steps, 1999)
	assert.Equal(t, 99950*time.Millisecond, steps[len(steps)-1].SimTime)
	assert.True(t, c.Terminated())
	assert.Equal(t, 100*time.Second, c.Elapsed())

	assert.Equal(t, 0, c.Advance(time.Second, func(Step) { t.Fatal("step after termination") }))
}

func TestTerminationAcrossFrames(t *testing.T) {
	c := NewClock(50*time.Millisecond, 100*time.Second)

	count := 0
	for i := 0; i < 1999; i++ {
		count += c.Advance(50*time.Millisecond, nil)
		require.False(t, c.Terminated(), "terminated early at frame %d", i)
	}
	assert.Equal(t, 1999, count)

	assert.Equal(t, 0, c.Advance(50*time.Millisecond, nil))
	assert.True(t, c.Terminated())
}

func TestTerminationIsOneWay(t *testing.T) {
	c := NewClock(50*time.Millisecond, 100*time.Millisecond)
	c.Advance(time.Second, nil)
	require.True(t, c.Terminated())

	c.SetPaused(true)
	c.SetPaused(false)
	assert.True(t, c.Terminated())
	assert.Equal(t, 0, c.Advance(time.Second, nil))
}

func TestPauseNeutrality(t *testing.T) {
	c := NewClock(50*time.Millisecond, 100*time.Second)
	c.Advance(30*time.Millisecond, nil)

	c.SetPaused(true)
	assert.Equal(t, 0, c.Advance(10*time.Second, nil))
	assert.Equal(t, 30*time.Millisecond, c.Accumulator())
	assert.Equal(t, time.Duration(0), c.Elapsed())

	c.SetPaused(false)
	assert.Equal(t, 1, c.Advance(20*time.Millisecond, nil))
	assert.Equal(t, 50*time.Millisecond, c.Elapsed())
}

func TestAdvanceIgnoresNonPositiveFrames(t *testing.T) {
	c := NewClock(50*time.Millisecond, 0)
	assert.Equal(t, 0, c.Advance(0, nil))
	assert.Equal(t, 0, c.Advance(-time.Second, nil))
	assert.Equal(t, time.Duration(0), c.Accumulator())
}

func TestNewClockDefaultStepSize(t *testing.T) {
	c := NewClock(0, 0)
	assert.Equal(t, DefaultStepSize, c.StepSize())
	assert.Equal(t, time.Duration(0), c.TimeBudget())
}

func repeat(d time.Duration, n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = d
	}
	return out
}
