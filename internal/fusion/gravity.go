// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fusion contains the numerical filter chain between orientation
// and per-rep metrics: gravity decomposition, Kalman smoothing, velocity
// integration with ZUPT, and range-of-motion accumulation.
package fusion

import "math"

// StandardGravity is the default local gravity magnitude in m/s².
const StandardGravity = 9.81

// GravityRemover subtracts the orientation-projected gravity vector from
// raw accelerometer readings, leaving motion-only linear acceleration.
type GravityRemover struct {
	gravity float64

	lastGravityVector [3]float64
	lastLinearAccel   [3]float64
}

// NewGravityRemover creates a remover with the given local gravity
// magnitude (pass StandardGravity unless calibrated otherwise).
func NewGravityRemover(gravity float64) *GravityRemover {
	return &GravityRemover{
		gravity:           gravity,
		lastGravityVector: [3]float64{0, 0, gravity},
	}
}

// RemoveGravity decomposes using Euler angles (degrees, ZYX sequence).
// Yaw does not affect the gravity projection and is accepted only for
// signature symmetry with the world-frame helper.
func (g *GravityRemover) RemoveGravity(ax, ay, az, roll, pitch, yaw float64) (linX, linY, linZ float64) {
	rollRad := roll * math.Pi / 180.0
	pitchRad := pitch * math.Pi / 180.0

	gx := g.gravity * math.Sin(pitchRad)
	gy := -g.gravity * math.Sin(rollRad) * math.Cos(pitchRad)
	gz := g.gravity * math.Cos(rollRad) * math.Cos(pitchRad)

	g.lastGravityVector = [3]float64{gx, gy, gz}

	linX = ax - gx
	linY = ay - gy
	linZ = az - gz
	g.lastLinearAccel = [3]float64{linX, linY, linZ}
	return linX, linY, linZ
}

// RemoveGravityQuaternion decomposes directly from the quaternion,
// avoiding the Euler intermediate. More accurate near gimbal lock.
func (g *GravityRemover) RemoveGravityQuaternion(ax, ay, az, qw, qx, qy, qz float64) (linX, linY, linZ float64) {
	gx := 2 * g.gravity * (qx*qz - qw*qy)
	gy := 2 * g.gravity * (qw*qx + qy*qz)
	gz := g.gravity * (qw*qw - qx*qx - qy*qy + qz*qz)

	g.lastGravityVector = [3]float64{gx, gy, gz}

	linX = ax - gx
	linY = ay - gy
	linZ = az - gz
	g.lastLinearAccel = [3]float64{linX, linY, linZ}
	return linX, linY, linZ
}

// GravityVector returns the last computed gravity vector in the sensor
// frame.
func (g *GravityRemover) GravityVector() (x, y, z float64) {
	return g.lastGravityVector[0], g.lastGravityVector[1], g.lastGravityVector[2]
}

// LinearAccelMagnitude returns |a_lin| from the last removal.
func (g *GravityRemover) LinearAccelMagnitude() float64 {
	v := g.lastLinearAccel
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// RotateToWorldFrame expresses a sensor-frame vector in the world frame
// using ZYX Euler angles in degrees. Callers that want world-vertical
// acceleration use the Z component of the result.
func RotateToWorldFrame(x, y, z, roll, pitch, yaw float64) (wx, wy, wz float64) {
	r := roll * math.Pi / 180.0
	p := pitch * math.Pi / 180.0
	w := yaw * math.Pi / 180.0

	cr, sr := math.Cos(r), math.Sin(r)
	cp, sp := math.Cos(p), math.Sin(p)
	cy, sy := math.Cos(w), math.Sin(w)

	wx = cy*cp*x + (cy*sp*sr-sy*cr)*y + (cy*sp*cr+sy*sr)*z
	wy = sy*cp*x + (sy*sp*sr+cy*cr)*y + (sy*sp*cr-cy*sr)*z
	wz = -sp*x + cp*sr*y + cp*cr*z
	return wx, wy, wz
}

// Calibration is a persisted set of adaptive gravity estimates.
type Calibration struct {
	Gravity float64 `json:"gravity"`
	BiasX   float64 `json:"bias_x"`
	BiasY   float64 `json:"bias_y"`
	BiasZ   float64 `json:"bias_z"`
}

// AdaptiveGravityRemover tracks the local gravity magnitude and a
// per-axis accelerometer bias, updating both during stationary periods.
type AdaptiveGravityRemover struct {
	gravity         float64
	alpha           float64
	motionThreshold float64

	biasX, biasY, biasZ float64

	history     [][3]float64
	historySize int
}

// NewAdaptiveGravityRemover creates an adaptive remover. adaptationRate
// is the EMA rate for gravity and bias (default 0.01 in the daemon).
func NewAdaptiveGravityRemover(initialGravity, adaptationRate, motionThreshold float64) *AdaptiveGravityRemover {
	return &AdaptiveGravityRemover{
		gravity:         initialGravity,
		alpha:           adaptationRate,
		motionThreshold: motionThreshold,
		historySize:     10,
	}
}

// RemoveGravity removes gravity with bias correction, calibrating during
// stationary periods. isStationary may be asserted by the caller; when
// false, stationarity is auto-detected from the accel-magnitude variance
// over the last 10 samples.
func (a *AdaptiveGravityRemover) RemoveGravity(ax, ay, az, roll, pitch, yaw float64, isStationary bool) (linX, linY, linZ float64) {
	axCorr := ax - a.biasX
	ayCorr := ay - a.biasY
	azCorr := az - a.biasZ

	a.history = append(a.history, [3]float64{axCorr, ayCorr, azCorr})
	if len(a.history) > a.historySize {
		a.history = a.history[1:]
	}

	if !isStationary && len(a.history) >= a.historySize {
		isStationary = a.detectStationary()
	}

	if isStationary {
		a.calibrate(ax, ay, az, roll, pitch)
	}

	rollRad := roll * math.Pi / 180.0
	pitchRad := pitch * math.Pi / 180.0

	gx := a.gravity * math.Sin(pitchRad)
	gy := -a.gravity * math.Sin(rollRad) * math.Cos(pitchRad)
	gz := a.gravity * math.Cos(rollRad) * math.Cos(pitchRad)

	return axCorr - gx, ayCorr - gy, azCorr - gz
}

func (a *AdaptiveGravityRemover) detectStationary() bool {
	if len(a.history) < a.historySize {
		return false
	}
	var mags []float64
	var mean float64
	for _, v := range a.history {
		m := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
		mags = append(mags, m)
		mean += m
	}
	mean /= float64(len(mags))
	var variance float64
	for _, m := range mags {
		variance += (m - mean) * (m - mean)
	}
	variance /= float64(len(mags))
	return variance < a.motionThreshold*a.motionThreshold
}

func (a *AdaptiveGravityRemover) calibrate(ax, ay, az, roll, pitch float64) {
	measured := math.Sqrt(ax*ax + ay*ay + az*az)
	a.gravity = (1-a.alpha)*a.gravity + a.alpha*measured

	rollRad := roll * math.Pi / 180.0
	pitchRad := pitch * math.Pi / 180.0

	expectedX := a.gravity * math.Sin(pitchRad)
	expectedY := -a.gravity * math.Sin(rollRad) * math.Cos(pitchRad)
	expectedZ := a.gravity * math.Cos(rollRad) * math.Cos(pitchRad)

	// TODO: bias uses the raw reading rather than the bias-corrected one,
	// which double-counts an already-estimated bias. Kept as-is until the
	// recorded sessions from the field rig confirm which converges better.
	a.biasX = (1-a.alpha)*a.biasX + a.alpha*(ax-expectedX)
	a.biasY = (1-a.alpha)*a.biasY + a.alpha*(ay-expectedY)
	a.biasZ = (1-a.alpha)*a.biasZ + a.alpha*(az-expectedZ)
}

// GetCalibration returns the current adaptive estimates.
func (a *AdaptiveGravityRemover) GetCalibration() Calibration {
	return Calibration{Gravity: a.gravity, BiasX: a.biasX, BiasY: a.biasY, BiasZ: a.biasZ}
}

// SetCalibration installs previously persisted estimates.
func (a *AdaptiveGravityRemover) SetCalibration(c Calibration) {
	a.gravity = c.Gravity
	a.biasX = c.BiasX
	a.biasY = c.BiasY
	a.biasZ = c.BiasZ
}
