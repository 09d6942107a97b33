// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedRep drives one down-pause-up movement and returns its ROM.
func feedRep(r *RomEstimator, depth float64) float64 {
	r.OnRepStart()
	steps := int(depth / (1.0 * 0.02)) // at 1 m/s each step moves 0.02 m
	for i := 0; i < steps; i++ {
		r.Update(-1.0)
	}
	for i := 0; i < 10; i++ {
		r.Update(0.0)
	}
	for i := 0; i < steps; i++ {
		r.Update(1.0)
	}
	return r.OnRepComplete()
}

func TestRomSingleRep(t *testing.T) {
	r := NewRomEstimator(50)

	rom := feedRep(r, 0.5)
	assert.InDelta(t, 0.5, rom, 1e-9)
	assert.InDelta(t, 0.0, r.CurrentDisplacement(), 1e-9)
}

func TestRomPositionIntegration(t *testing.T) {
	r := NewRomEstimator(50)
	r.OnRepStart()

	// 0.5 m/s for 0.5 s displaces 0.25 m.
	for i := 0; i < 25; i++ {
		r.Update(0.5)
	}
	assert.InDelta(t, 0.25, r.CurrentDisplacement(), 1e-9)
}

func TestRomLossAndConsistency(t *testing.T) {
	r := NewRomEstimator(50)

	feedRep(r, 0.5)
	feedRep(r, 0.4)

	loss := r.RomLossPct()
	require.NotNil(t, loss)
	assert.InDelta(t, 20.0, *loss, 0.5)

	avg := r.AverageRom()
	require.NotNil(t, avg)
	assert.InDelta(t, 0.45, *avg, 0.01)

	cv := r.RomConsistencyPct()
	require.NotNil(t, cv)
	// std of {0.5, 0.4} is 0.05, mean 0.45: CV ≈ 11.11%.
	assert.InDelta(t, 11.11, *cv, 0.2)
}

func TestRomLossNilBelowTwoReps(t *testing.T) {
	r := NewRomEstimator(50)
	assert.Nil(t, r.RomLossPct())
	assert.Nil(t, r.RomConsistencyPct())
	assert.Nil(t, r.AverageRom())

	feedRep(r, 0.5)
	assert.Nil(t, r.RomLossPct())
}

func TestRomPartialRepFlag(t *testing.T) {
	r := NewRomEstimator(50)

	feedRep(r, 0.5)
	feedRep(r, 0.5)

	// A shallow in-flight rep trips the partial flag against the 0.5 avg.
	r.OnRepStart()
	for i := 0; i < 5; i++ {
		r.Update(-1.0) // 0.1 m band, 20% of average
	}
	assert.True(t, r.IsPartialRep(70.0))
	assert.False(t, r.IsPartialRep(10.0))
}

func TestRomReset(t *testing.T) {
	r := NewRomEstimator(50)
	feedRep(r, 0.5)
	r.Reset()

	assert.Empty(t, r.RepRoms())
	assert.Equal(t, 0.0, r.CurrentDisplacement())
	assert.Nil(t, r.AverageRom())
}

func TestUnitConversions(t *testing.T) {
	assert.InDelta(t, 50.0, MetersToCm(0.5), 1e-9)
	assert.InDelta(t, 19.68505, MetersToInches(0.5), 1e-4)
}
