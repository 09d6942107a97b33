// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

// Kalman1D smooths a scalar stream. The state transition is identity,
// which suits slowly-varying signals like bar velocity.
//
// Tuning: raise q to respond faster, raise r to smooth harder. For
// velocity q=1e-4..1e-3, r=0.05..0.2 work well at 50 Hz.
type Kalman1D struct {
	q float64 // process variance
	r float64 // measurement variance
	x float64 // state estimate
	p float64 // error covariance
	k float64 // last gain
}

// NewKalman1D creates a filter with the given variances and initial
// state. Both variances must be strictly positive.
func NewKalman1D(processVariance, measurementVariance, initialEstimate, initialError float64) *Kalman1D {
	return &Kalman1D{
		q: processVariance,
		r: measurementVariance,
		x: initialEstimate,
		p: initialError,
	}
}

// Update folds in one measurement and returns the new estimate.
func (f *Kalman1D) Update(measurement float64) float64 {
	xPred := f.x
	pPred := f.p + f.q

	f.k = pPred / (pPred + f.r)
	f.x = xPred + f.k*(measurement-xPred)
	f.p = (1 - f.k) * pPred

	return f.x
}

// Reset restores a known state and error covariance.
func (f *Kalman1D) Reset(value, errorCovariance float64) {
	f.x = value
	f.p = errorCovariance
	f.k = 0
}

// State returns (estimate, error covariance, last gain).
func (f *Kalman1D) State() (x, p, k float64) {
	return f.x, f.p, f.k
}

// AdaptiveKalman1D adjusts its process variance from the innovation
// magnitude: large prediction errors open the filter up, small ones
// tighten it, and in between q decays toward its base value.
type AdaptiveKalman1D struct {
	q     float64
	qBase float64
	r     float64
	x     float64
	p     float64

	alpha float64
	qMin  float64
	qMax  float64

	innovationSq float64 // EMA of innovation²
}

// NewAdaptiveKalman1D creates an adaptive filter. adaptationRate is the
// innovation EMA coefficient.
func NewAdaptiveKalman1D(baseProcessVariance, measurementVariance, adaptationRate, minProcessVariance, maxProcessVariance float64) *AdaptiveKalman1D {
	return &AdaptiveKalman1D{
		q:     baseProcessVariance,
		qBase: baseProcessVariance,
		r:     measurementVariance,
		p:     1.0,
		alpha: adaptationRate,
		qMin:  minProcessVariance,
		qMax:  maxProcessVariance,
	}
}

// Update folds in one measurement, adapting q before the standard step.
func (f *AdaptiveKalman1D) Update(measurement float64) float64 {
	xPred := f.x
	pPred := f.p + f.q

	innovation := measurement - xPred
	f.innovationSq = (1-f.alpha)*f.innovationSq + f.alpha*innovation*innovation

	expected := pPred + f.r
	ratio := f.innovationSq / max64(expected, 1e-10)

	switch {
	case ratio > 1.5:
		f.q = min64(f.q*1.5, f.qMax)
	case ratio < 0.5:
		f.q = max64(f.q*0.8, f.qMin)
	default:
		f.q = f.q*0.95 + f.qBase*0.05
	}

	k := pPred / (pPred + f.r)
	f.x = xPred + k*innovation
	f.p = (1 - k) * pPred

	return f.x
}

// Reset restores the base configuration around a known value.
func (f *AdaptiveKalman1D) Reset(value float64) {
	f.x = value
	f.p = 1.0
	f.q = f.qBase
	f.innovationSq = 0
}

// ProcessVariance returns the current adapted q, for diagnostics.
func (f *AdaptiveKalman1D) ProcessVariance() float64 { return f.q }

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
