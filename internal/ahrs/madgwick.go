// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ahrs estimates sensor orientation from accelerometer and
// gyroscope data. Yaw has no absolute reference without a magnetometer
// and will drift; roll and pitch are corrected against gravity.
package ahrs

import "math"

// DefaultBeta is the Madgwick filter gain. Higher trusts the
// accelerometer more and converges faster; lower trusts the gyro and is
// smoother. 0.05–0.15 works well for bar tracking.
const DefaultBeta = 0.1

// Accelerometer correction gate: outside roughly 0.5g–2g the gravity
// reference is corrupted by movement and the filter integrates gyro only.
const (
	accelGateLow  = 4.9  // m/s²
	accelGateHigh = 19.6 // m/s²
)

// Euler is an orientation in degrees, ZYX sequence.
type Euler struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Madgwick is a gradient-descent AHRS filter over a unit quaternion.
type Madgwick struct {
	samplePeriod float64
	beta         float64

	// Quaternion w, x, y, z.
	q [4]float64

	lastAccelMagnitude float64
	gyroOnly           bool
}

// NewMadgwick creates a filter at the given sample rate with gain beta.
func NewMadgwick(sampleRateHz, beta float64) *Madgwick {
	return &Madgwick{
		samplePeriod: 1.0 / sampleRateHz,
		beta:         beta,
		q:            [4]float64{1, 0, 0, 0},
	}
}

// Update advances the filter by one sample. Accelerations in m/s²,
// angular rates in deg/s. Returns the new orientation in degrees.
// Non-finite inputs are zeroed before use.
func (m *Madgwick) Update(ax, ay, az, gx, gy, gz float64) Euler {
	ax, ay, az = finite(ax), finite(ay), finite(az)
	gx, gy, gz = finite(gx), finite(gy), finite(gz)

	q0, q1, q2, q3 := m.q[0], m.q[1], m.q[2], m.q[3]

	gxr := gx * math.Pi / 180.0
	gyr := gy * math.Pi / 180.0
	gzr := gz * math.Pi / 180.0

	// Rate of change of quaternion from gyroscope: ½·q⊗(0, ω).
	qDot1 := 0.5 * (-q1*gxr - q2*gyr - q3*gzr)
	qDot2 := 0.5 * (q0*gxr + q2*gzr - q3*gyr)
	qDot3 := 0.5 * (q0*gyr - q1*gzr + q3*gxr)
	qDot4 := 0.5 * (q0*gzr + q1*gyr - q2*gxr)

	accelNorm := math.Sqrt(ax*ax + ay*ay + az*az)
	m.lastAccelMagnitude = accelNorm

	if accelNorm > accelGateLow && accelNorm < accelGateHigh {
		axn := ax / accelNorm
		ayn := ay / accelNorm
		azn := az / accelNorm

		_2q0 := 2.0 * q0
		_2q1 := 2.0 * q1
		_2q2 := 2.0 * q2
		_2q3 := 2.0 * q3
		_4q0 := 4.0 * q0
		_4q1 := 4.0 * q1
		_4q2 := 4.0 * q2
		_8q1 := 8.0 * q1
		_8q2 := 8.0 * q2
		q0q0 := q0 * q0
		q1q1 := q1 * q1
		q2q2 := q2 * q2
		q3q3 := q3 * q3

		// Gradient descent corrective step against the gravity objective.
		s0 := _4q0*q2q2 + _2q2*axn + _4q0*q1q1 - _2q1*ayn
		s1 := _4q1*q3q3 - _2q3*axn + 4.0*q0q0*q1 - _2q0*ayn - _4q1 + _8q1*q1q1 + _8q1*q2q2 + _4q1*azn
		s2 := 4.0*q0q0*q2 + _2q0*axn + _4q2*q3q3 - _2q3*ayn - _4q2 + _8q2*q1q1 + _8q2*q2q2 + _4q2*azn
		s3 := 4.0*q1q1*q3 - _2q1*axn + 4.0*q2q2*q3 - _2q2*ayn

		sNorm := math.Sqrt(s0*s0 + s1*s1 + s2*s2 + s3*s3)
		if sNorm > 0 {
			s0 /= sNorm
			s1 /= sNorm
			s2 /= sNorm
			s3 /= sNorm
		}

		qDot1 -= m.beta * s0
		qDot2 -= m.beta * s1
		qDot3 -= m.beta * s2
		qDot4 -= m.beta * s3

		m.gyroOnly = false
	} else {
		m.gyroOnly = true
	}

	q0 += qDot1 * m.samplePeriod
	q1 += qDot2 * m.samplePeriod
	q2 += qDot3 * m.samplePeriod
	q3 += qDot4 * m.samplePeriod

	qNorm := math.Sqrt(q0*q0 + q1*q1 + q2*q2 + q3*q3)
	if qNorm == 0 || math.IsNaN(qNorm) || math.IsInf(qNorm, 0) {
		// Numerical blowup: reset to identity rather than propagate.
		m.q = [4]float64{1, 0, 0, 0}
		return m.EulerAngles()
	}
	m.q = [4]float64{q0 / qNorm, q1 / qNorm, q2 / qNorm, q3 / qNorm}

	return m.EulerAngles()
}

// EulerAngles converts the current quaternion to degrees, ZYX sequence.
// Pitch is clamped to ±90° at gimbal.
func (m *Madgwick) EulerAngles() Euler {
	q0, q1, q2, q3 := m.q[0], m.q[1], m.q[2], m.q[3]

	sinrCosp := 2.0 * (q0*q1 + q2*q3)
	cosrCosp := 1.0 - 2.0*(q1*q1+q2*q2)
	roll := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2.0 * (q0*q2 - q3*q1)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2.0 * (q0*q3 + q1*q2)
	cosyCosp := 1.0 - 2.0*(q2*q2+q3*q3)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	return Euler{
		Roll:  roll * 180.0 / math.Pi,
		Pitch: pitch * 180.0 / math.Pi,
		Yaw:   yaw * 180.0 / math.Pi,
	}
}

// Quaternion returns the current quaternion as (w, x, y, z).
func (m *Madgwick) Quaternion() (w, x, y, z float64) {
	return m.q[0], m.q[1], m.q[2], m.q[3]
}

// RotationMatrix returns the 3x3 rotation matrix for the current
// quaternion.
func (m *Madgwick) RotationMatrix() [3][3]float64 {
	q0, q1, q2, q3 := m.q[0], m.q[1], m.q[2], m.q[3]
	return [3][3]float64{
		{1 - 2*(q2*q2+q3*q3), 2 * (q1*q2 - q0*q3), 2 * (q1*q3 + q0*q2)},
		{2 * (q1*q2 + q0*q3), 1 - 2*(q1*q1+q3*q3), 2 * (q2*q3 - q0*q1)},
		{2 * (q1*q3 - q0*q2), 2 * (q2*q3 + q0*q1), 1 - 2*(q1*q1+q2*q2)},
	}
}

// Reset returns the filter to the identity orientation.
func (m *Madgwick) Reset() {
	m.q = [4]float64{1, 0, 0, 0}
	m.gyroOnly = false
	m.lastAccelMagnitude = 0
}

// SetBeta adjusts the filter gain, clamped to [0, 1].
func (m *Madgwick) SetBeta(beta float64) {
	m.beta = math.Max(0.0, math.Min(1.0, beta))
}

// Beta returns the current filter gain.
func (m *Madgwick) Beta() float64 { return m.beta }

// GyroOnly reports whether the last update skipped the accelerometer
// correction.
func (m *Madgwick) GyroOnly() bool { return m.gyroOnly }

// LastAccelMagnitude returns |a| from the last update, for diagnostics.
func (m *Madgwick) LastAccelMagnitude() float64 { return m.lastAccelMagnitude }

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
