// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKalman1DGainBoundsAndConvergence(t *testing.T) {
	const q, r = 1e-3, 0.1
	f := NewKalman1D(q, r, 0, 1.0)

	var prevK float64 = 2.0
	for i := 0; i < 200; i++ {
		f.Update(1.0)
		_, p, k := f.State()
		assert.GreaterOrEqual(t, k, 0.0)
		assert.LessOrEqual(t, k, 1.0)
		assert.GreaterOrEqual(t, p, 0.0)
		// Gain decays monotonically toward its fixed point.
		assert.LessOrEqual(t, k, prevK)
		prevK = k
	}

	// At steady state the gain satisfies k = (p+q)/(p+q+r) with
	// p = (1-k)(p+q); the constant-input estimate converges to it.
	x, _, k := f.State()
	assert.InDelta(t, 1.0, x, 1e-3)
	steady := (math.Sqrt(q*q+4*q*r) + q) / (math.Sqrt(q*q+4*q*r) + q + 2*r)
	assert.InDelta(t, steady, k, 1e-3)
}

func TestKalman1DSmoothsTowardMeasurements(t *testing.T) {
	f := NewKalman1D(1e-3, 0.5, 0, 1.0)

	measurements := []float64{1.2, 0.8, 1.1, 0.9, 1.05, 0.95, 1.0, 1.0}
	var est float64
	for _, m := range measurements {
		est = f.Update(m)
	}
	assert.InDelta(t, 1.0, est, 0.15)
}

func TestKalman1DReset(t *testing.T) {
	f := NewKalman1D(1e-3, 0.1, 0, 1.0)
	for i := 0; i < 10; i++ {
		f.Update(5.0)
	}
	f.Reset(0, 1.0)
	x, p, k := f.State()
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 1.0, p)
	assert.Equal(t, 0.0, k)
}

func TestAdaptiveKalmanBounds(t *testing.T) {
	const qMin, qMax = 1e-6, 1.0
	f := NewAdaptiveKalman1D(1e-4, 0.1, 0.1, qMin, qMax)

	// Wild swings push q up; it must stay within bounds.
	for i := 0; i < 100; i++ {
		f.Update(float64(i%2) * 100.0)
		assert.GreaterOrEqual(t, f.ProcessVariance(), qMin)
		assert.LessOrEqual(t, f.ProcessVariance(), qMax)
	}
	grown := f.ProcessVariance()
	assert.Greater(t, grown, 1e-4)

	// A long steady stream decays q back down.
	for i := 0; i < 2000; i++ {
		f.Update(0.0)
		assert.GreaterOrEqual(t, f.ProcessVariance(), qMin)
	}
	assert.Less(t, f.ProcessVariance(), grown)
}

func TestAdaptiveKalmanReset(t *testing.T) {
	f := NewAdaptiveKalman1D(1e-4, 0.1, 0.1, 1e-6, 1.0)
	for i := 0; i < 50; i++ {
		f.Update(float64(i))
	}
	f.Reset(0)
	assert.Equal(t, 1e-4, f.ProcessVariance())
}
