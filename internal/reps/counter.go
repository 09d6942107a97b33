// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package reps segments repetitions out of the angular-rate stream with
// a two-state hysteresis machine on the exponentially-smoothed gyro
// magnitude.
package reps

import "math"

// Detector states.
const (
	StateWaiting = "WAITING"
	StateMoving  = "MOVING"
)

// Hysteresis: the rep completes when the filtered signal falls below
// this fraction of the rise threshold.
const hysteresisRatio = 0.6

// Counter is the hysteresis rep detector. One full high-then-low
// traversal of the filtered signal counts one rep, debounced by
// MinRepInterval.
type Counter struct {
	Threshold      float64
	MinRepInterval float64
	Alpha          float64

	filtered    float64
	state       string
	lastRepTime float64
	reps        int
}

// NewCounter creates a detector. Threshold is in deg/s on the filtered
// gyro magnitude; minRepInterval in seconds; alpha is the EMA weight of
// the newest sample.
func NewCounter(threshold, minRepInterval, alpha float64) *Counter {
	return &Counter{
		Threshold:      threshold,
		MinRepInterval: minRepInterval,
		Alpha:          alpha,
		state:          StateWaiting,
	}
}

// Update folds in one gyro sample at time t (seconds) and returns the
// running rep count, the filtered magnitude, and the detector state.
func (c *Counter) Update(gx, gy, gz, t float64) (reps int, filtered float64, state string) {
	mag := math.Sqrt(gx*gx + gy*gy + gz*gz)
	c.filtered = c.Alpha*mag + (1-c.Alpha)*c.filtered

	switch c.state {
	case StateWaiting:
		if c.filtered > c.Threshold {
			c.state = StateMoving
		}
	case StateMoving:
		// Drop below the hysteresis band to end the rep.
		if c.filtered < c.Threshold*hysteresisRatio {
			// The first rep has no earlier completion to debounce against.
			if c.reps == 0 || t-c.lastRepTime >= c.MinRepInterval {
				c.reps++
				c.lastRepTime = t
			}
			c.state = StateWaiting
		}
	}

	return c.reps, c.filtered, c.state
}

// Reps returns the running rep count.
func (c *Counter) Reps() int { return c.reps }

// State returns the current detector state.
func (c *Counter) State() string { return c.state }

// Filtered returns the current smoothed gyro magnitude.
func (c *Counter) Filtered() float64 { return c.filtered }

// Reset clears all detector state.
func (c *Counter) Reset() {
	c.filtered = 0
	c.state = StateWaiting
	c.lastRepTime = 0
	c.reps = 0
}
