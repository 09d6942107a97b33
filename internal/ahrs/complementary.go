// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ahrs

import "math"

// Complementary is a first-order complementary filter: gyro integration
// blended against the accelerometer tilt estimate. Cheaper and easier to
// tune than Madgwick, at the cost of accuracy. Yaw drifts freely.
type Complementary struct {
	dt    float64
	alpha float64

	roll  float64
	pitch float64
	yaw   float64
}

// NewComplementary creates a filter; alpha in [0.9, 0.99] is typical.
func NewComplementary(sampleRateHz, alpha float64) *Complementary {
	return &Complementary{dt: 1.0 / sampleRateHz, alpha: alpha}
}

// Update advances the filter. Units match Madgwick.Update.
func (c *Complementary) Update(ax, ay, az, gx, gy, gz float64) Euler {
	accelRoll := math.Atan2(ay, az) * 180.0 / math.Pi
	accelPitch := math.Atan2(-ax, math.Sqrt(ay*ay+az*az)) * 180.0 / math.Pi

	c.roll += gx * c.dt
	c.pitch += gy * c.dt
	c.yaw += gz * c.dt

	c.roll = c.alpha*c.roll + (1-c.alpha)*accelRoll
	c.pitch = c.alpha*c.pitch + (1-c.alpha)*accelPitch

	return Euler{Roll: c.roll, Pitch: c.pitch, Yaw: c.yaw}
}

// EulerAngles returns the current angles in degrees.
func (c *Complementary) EulerAngles() Euler {
	return Euler{Roll: c.roll, Pitch: c.pitch, Yaw: c.yaw}
}

// Reset zeroes all angles.
func (c *Complementary) Reset() {
	c.roll, c.pitch, c.yaw = 0, 0, 0
}
