// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package reps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drive feeds samples of constant gyro magnitude (on the x axis) at
// 50 Hz starting from t0, returning the final state.
func drive(c *Counter, mag, t0 float64, n int) (reps int, filtered float64, state string, tEnd float64) {
	t := t0
	for i := 0; i < n; i++ {
		t = t0 + float64(i)*0.02
		reps, filtered, state = c.Update(mag, 0, 0, t)
	}
	return reps, filtered, state, t
}

func TestCounterSingleHysteresisCycle(t *testing.T) {
	c := NewCounter(1200.0, 0.6, 0.2)

	// High burst for 0.5 s crosses the threshold.
	reps, _, state, tEnd := drive(c, 2000.0, 0.0, 25)
	assert.Equal(t, 0, reps)
	assert.Equal(t, StateMoving, state)

	// Quiet for 0.5 s falls through the hysteresis band and completes
	// exactly one rep.
	reps, _, state, _ = drive(c, 200.0, tEnd+0.02, 25)
	assert.Equal(t, 1, reps)
	assert.Equal(t, StateWaiting, state)
}

func TestCounterRepCompletesBetweenHalfAndSixTenths(t *testing.T) {
	c := NewCounter(1200.0, 0.6, 0.2)

	// Scenario: magnitude 2000 for t ∈ [0, 0.5), then 200. The rep must
	// land shortly after the drop while the filter decays below 720.
	var repT float64
	for i := 0; i < 50; i++ {
		tm := float64(i) * 0.02
		mag := 2000.0
		if tm >= 0.5 {
			mag = 200.0
		}
		reps, _, _ := c.Update(mag, 0, 0, tm)
		if reps == 1 && repT == 0 {
			repT = tm
		}
	}
	require.NotZero(t, repT)
	assert.GreaterOrEqual(t, repT, 0.5)
	// The EMA needs a few samples to fall through the band, so the
	// event lands just past the drop.
	assert.LessOrEqual(t, repT, 0.65)
}

func TestCounterDebounce(t *testing.T) {
	c := NewCounter(1200.0, 0.6, 0.2)

	// First full cycle: one rep.
	_, _, _, tEnd := drive(c, 2000.0, 0.0, 25)
	reps, _, _, tEnd := drive(c, 0.0, tEnd+0.02, 10)
	require.Equal(t, 1, reps)

	// Immediate second cycle within the debounce window: the high/low
	// traversal happens but the completion is suppressed.
	_, _, _, tEnd = drive(c, 2500.0, tEnd+0.02, 5)
	reps, _, _, tEnd = drive(c, 0.0, tEnd+0.02, 5)
	assert.Equal(t, 1, reps)

	// A later cycle clears the debounce and counts.
	_, _, _, tEnd = drive(c, 2500.0, tEnd+0.5, 10)
	reps, _, _, _ = drive(c, 0.0, tEnd+0.02, 15)
	assert.Equal(t, 2, reps)
}

func TestCounterFilterIsEma(t *testing.T) {
	c := NewCounter(1200.0, 0.6, 0.2)

	_, f1, _ := c.Update(1000.0, 0, 0, 0)
	assert.InDelta(t, 200.0, f1, 1e-9) // 0.2·1000

	_, f2, _ := c.Update(1000.0, 0, 0, 0.02)
	assert.InDelta(t, 360.0, f2, 1e-9) // 0.2·1000 + 0.8·200
}

func TestCounterMagnitudeIsVectorNorm(t *testing.T) {
	c := NewCounter(1200.0, 0.6, 1.0) // alpha 1: filter follows input

	_, f, _ := c.Update(300.0, 400.0, 0, 0)
	assert.InDelta(t, 500.0, f, 1e-9)
}

func TestCounterReset(t *testing.T) {
	c := NewCounter(1200.0, 0.6, 0.2)
	drive(c, 2000.0, 0.0, 25)
	drive(c, 0.0, 0.52, 25)
	require.Equal(t, 1, c.Reps())

	c.Reset()
	assert.Equal(t, 0, c.Reps())
	assert.Equal(t, StateWaiting, c.State())
	assert.Equal(t, 0.0, c.Filtered())
}
