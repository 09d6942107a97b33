// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoveGravityFlat(t *testing.T) {
	g := NewGravityRemover(StandardGravity)

	x, y, z := g.RemoveGravity(0, 0, 9.81, 0, 0, 0)
	assert.InDelta(t, 0.0, x, 1e-9)
	assert.InDelta(t, 0.0, y, 1e-9)
	assert.InDelta(t, 0.0, z, 1e-9)
}

func TestRemoveGravityRolled(t *testing.T) {
	g := NewGravityRemover(StandardGravity)

	// At 30° roll gravity projects onto y and z.
	roll := 30.0
	ay := -9.81 * math.Sin(roll*math.Pi/180)
	az := 9.81 * math.Cos(roll*math.Pi/180)

	x, y, z := g.RemoveGravity(0, ay, az, roll, 0, 0)
	assert.InDelta(t, 0.0, x, 1e-9)
	assert.InDelta(t, 0.0, y, 1e-9)
	assert.InDelta(t, 0.0, z, 1e-9)

	gx, gy, gz := g.GravityVector()
	assert.InDelta(t, 0.0, gx, 1e-9)
	assert.InDelta(t, ay, gy, 1e-9)
	assert.InDelta(t, az, gz, 1e-9)
}

func TestRemoveGravityQuaternionMatchesEuler(t *testing.T) {
	g := NewGravityRemover(StandardGravity)

	// Identity quaternion equals zero Euler angles.
	ex, ey, ez := g.RemoveGravity(0.5, -0.3, 10.0, 0, 0, 0)
	qx, qy, qz := g.RemoveGravityQuaternion(0.5, -0.3, 10.0, 1, 0, 0, 0)
	assert.InDelta(t, ex, qx, 1e-9)
	assert.InDelta(t, ey, qy, 1e-9)
	assert.InDelta(t, ez, qz, 1e-9)

	// 90° roll quaternion: gravity lands on the sensor y axis.
	s := math.Sqrt(2) / 2
	_, y, z := g.RemoveGravityQuaternion(0, 9.81, 0, s, s, 0, 0)
	assert.InDelta(t, 0.0, y, 1e-6)
	assert.InDelta(t, 0.0, z, 1e-6)
}

func TestRotateToWorldFrame(t *testing.T) {
	// With zero angles the frames coincide.
	x, y, z := RotateToWorldFrame(1, 2, 3, 0, 0, 0)
	assert.InDelta(t, 1.0, x, 1e-9)
	assert.InDelta(t, 2.0, y, 1e-9)
	assert.InDelta(t, 3.0, z, 1e-9)

	// 90° pitch maps sensor x onto world -z.
	_, _, wz := RotateToWorldFrame(1, 0, 0, 0, 90, 0)
	assert.InDelta(t, -1.0, wz, 1e-9)
}

func TestAdaptiveGravityCalibratesWhenStationary(t *testing.T) {
	a := NewAdaptiveGravityRemover(9.81, 0.05, 0.5)

	// Flat, stationary, true gravity slightly off nominal.
	for i := 0; i < 500; i++ {
		a.RemoveGravity(0, 0, 9.90, 0, 0, 0, true)
	}
	cal := a.GetCalibration()
	assert.InDelta(t, 9.90, cal.Gravity, 0.01)
}

func TestAdaptiveGravityAutoDetectsStationary(t *testing.T) {
	a := NewAdaptiveGravityRemover(9.81, 0.05, 0.5)

	// Constant readings have zero variance, so auto-detection engages
	// after the 10-sample window fills and gravity adapts.
	for i := 0; i < 300; i++ {
		a.RemoveGravity(0, 0, 9.70, 0, 0, 0, false)
	}
	cal := a.GetCalibration()
	assert.Less(t, cal.Gravity, 9.81)
}

func TestAdaptiveGravityIgnoresMotion(t *testing.T) {
	a := NewAdaptiveGravityRemover(9.81, 0.05, 0.1)

	// Heavily varying magnitude: no calibration should happen.
	for i := 0; i < 100; i++ {
		a.RemoveGravity(0, 0, 9.81+3.0*math.Sin(float64(i)), 0, 0, 0, false)
	}
	cal := a.GetCalibration()
	assert.Equal(t, 9.81, cal.Gravity)
	assert.Equal(t, 0.0, cal.BiasZ)
}

func TestAdaptiveGravitySetCalibration(t *testing.T) {
	a := NewAdaptiveGravityRemover(9.81, 0.01, 0.5)
	a.SetCalibration(Calibration{Gravity: 9.79, BiasX: 0.1, BiasY: -0.1, BiasZ: 0.05})
	cal := a.GetCalibration()
	assert.Equal(t, 9.79, cal.Gravity)
	assert.Equal(t, 0.1, cal.BiasX)
}
