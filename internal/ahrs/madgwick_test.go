// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ahrs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quatNorm(m *Madgwick) float64 {
	w, x, y, z := m.Quaternion()
	return math.Sqrt(w*w + x*x + y*y + z*z)
}

func TestMadgwickUnitNormInvariant(t *testing.T) {
	m := NewMadgwick(50, DefaultBeta)

	inputs := []struct {
		ax, ay, az, gx, gy, gz float64
	}{
		{0, 0, 9.81, 0, 0, 0},
		{0.3, -0.2, 9.7, 10, -5, 3},
		{5, 5, 5, 500, 500, 500},
		{0, 0, 25, 2000, 0, 0}, // gate closed, gyro only
		{0, 0, 0.1, 0, 0, 0},   // gate closed low
	}
	for _, in := range inputs {
		for i := 0; i < 100; i++ {
			m.Update(in.ax, in.ay, in.az, in.gx, in.gy, in.gz)
			assert.InDelta(t, 1.0, quatNorm(m), 1e-6)
		}
	}
}

func TestMadgwickFlatConvergence(t *testing.T) {
	m := NewMadgwick(50, 0.1)

	var e Euler
	for i := 0; i < 50; i++ {
		e = m.Update(0, 0, 9.81, 0, 0, 0)
	}
	assert.InDelta(t, 0.0, e.Roll, 0.1)
	assert.InDelta(t, 0.0, e.Pitch, 0.1)
	assert.InDelta(t, 0.0, e.Yaw, 0.1)
	assert.False(t, m.GyroOnly())
}

func TestMadgwickRollConvergence(t *testing.T) {
	m := NewMadgwick(50, 0.1)

	// 45° roll: gravity projects onto y and z equally.
	ay := 9.81 * math.Sin(45*math.Pi/180)
	az := 9.81 * math.Cos(45*math.Pi/180)
	var e Euler
	for i := 0; i < 2000; i++ {
		e = m.Update(0, ay, az, 0, 0, 0)
	}
	assert.InDelta(t, 45.0, e.Roll, 2.0)
	assert.InDelta(t, 0.0, e.Pitch, 2.0)
}

func TestMadgwickGyroIntegrationWithGateClosed(t *testing.T) {
	m := NewMadgwick(50, 0.1)

	// |a| far above 2g keeps the accel correction off; constant rate
	// about x integrates to rate·n·Δt.
	const rate = 90.0 // deg/s
	const n = 25      // 0.5 s
	for i := 0; i < n; i++ {
		m.Update(0, 0, 30.0, rate, 0, 0)
		assert.True(t, m.GyroOnly())
	}
	e := m.EulerAngles()
	expected := rate * n * (1.0 / 50.0)
	assert.InDelta(t, expected, e.Roll, expected*0.01)
}

func TestMadgwickNonFiniteInputZeroed(t *testing.T) {
	m := NewMadgwick(50, 0.1)
	for i := 0; i < 50; i++ {
		m.Update(0, 0, 9.81, 0, 0, 0)
	}
	before := m.EulerAngles()

	e := m.Update(math.NaN(), math.Inf(1), math.NaN(), math.NaN(), 0, 0)
	require.False(t, math.IsNaN(e.Roll))
	require.False(t, math.IsNaN(e.Pitch))
	assert.InDelta(t, 1.0, quatNorm(m), 1e-6)

	// Orientation should stay close to where it was: the sample is
	// treated as zeros, which closes the accel gate.
	assert.InDelta(t, before.Roll, e.Roll, 1.0)
}

func TestMadgwickReset(t *testing.T) {
	m := NewMadgwick(50, 0.1)
	for i := 0; i < 100; i++ {
		m.Update(1, 2, 9.5, 50, 20, 10)
	}
	m.Reset()
	w, x, y, z := m.Quaternion()
	assert.Equal(t, 1.0, w)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)
	assert.Equal(t, 0.0, z)
}

func TestMadgwickSetBetaClamps(t *testing.T) {
	m := NewMadgwick(50, 0.1)
	m.SetBeta(5.0)
	assert.Equal(t, 1.0, m.Beta())
	m.SetBeta(-1.0)
	assert.Equal(t, 0.0, m.Beta())
	m.SetBeta(0.25)
	assert.Equal(t, 0.25, m.Beta())
}

func TestComplementaryConvergesToTilt(t *testing.T) {
	c := NewComplementary(50, 0.98)

	ay := 9.81 * math.Sin(30*math.Pi/180)
	az := 9.81 * math.Cos(30*math.Pi/180)
	var e Euler
	for i := 0; i < 2000; i++ {
		e = c.Update(0, ay, az, 0, 0, 0)
	}
	assert.InDelta(t, 30.0, e.Roll, 1.0)
	assert.InDelta(t, 0.0, e.Pitch, 1.0)
}
