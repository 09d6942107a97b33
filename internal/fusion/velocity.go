// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import "math"

// RepVelocity holds per-rep velocity metrics, rounded at finalization.
type RepVelocity struct {
	RepNumber              int     `json:"rep_number"`
	PeakVelocity           float64 `json:"peak_velocity"`
	MeanConcentricVelocity float64 `json:"mean_concentric_velocity"`
	MeanEccentricVelocity  float64 `json:"mean_eccentric_velocity"`
	TimeToPeak             float64 `json:"time_to_peak"`
}

// VelocityEstimator integrates vertical linear acceleration into a
// velocity estimate, smoothing through a 1-D Kalman filter and applying
// zero-velocity updates when the caller declares the bar stable.
type VelocityEstimator struct {
	dt float64

	velocity    float64
	velocityRaw float64 // pre-smoother
	kalman      *Kalman1D

	currentTime float64

	inRep               bool
	repVelocities       []RepVelocity
	currentRepVelocity  []float64
	currentRepTimestamp []float64
	repCount            int

	driftEstimate float64
	driftAlpha    float64
}

// NewVelocityEstimator creates an estimator at the given sample rate
// with the given smoother variances.
func NewVelocityEstimator(sampleRateHz, processVariance, measurementVariance float64) *VelocityEstimator {
	return &VelocityEstimator{
		dt:         1.0 / sampleRateHz,
		kalman:     NewKalman1D(processVariance, measurementVariance, 0, 1.0),
		driftAlpha: 0.001,
	}
}

// Update advances the estimate by one sample. aLinVertical is vertical
// linear acceleration in m/s² (positive up). When isStable is true the
// sample is treated as a zero-velocity observation instead of being
// integrated.
func (v *VelocityEstimator) Update(aLinVertical float64, isStable bool) float64 {
	v.currentTime += v.dt

	if math.IsNaN(v.velocityRaw) || math.IsInf(v.velocityRaw, 0) {
		// Localized recovery: zero the filter rather than poison the chain.
		v.velocity = 0
		v.velocityRaw = 0
		v.kalman.Reset(0, 1.0)
	}

	if isStable {
		v.applyZupt()
	} else {
		v.velocityRaw += finiteOrZero(aLinVertical) * v.dt
		v.velocityRaw -= v.driftEstimate * v.dt
		v.velocity = v.kalman.Update(v.velocityRaw)
	}

	if v.inRep {
		v.currentRepVelocity = append(v.currentRepVelocity, v.velocity)
		v.currentRepTimestamp = append(v.currentRepTimestamp, v.currentTime)
	}

	return v.velocity
}

// applyZupt zeroes the velocity state and folds the residual into the
// drift estimate. At a known standstill any remaining velocity is drift.
func (v *VelocityEstimator) applyZupt() {
	v.driftEstimate = (1-v.driftAlpha)*v.driftEstimate +
		v.driftAlpha*v.velocityRaw/max64(v.currentTime, 1.0)

	v.velocity = 0
	v.velocityRaw = 0
	v.kalman.Reset(0, 1.0)
}

// OnRepStart begins per-rep velocity tracking.
func (v *VelocityEstimator) OnRepStart() {
	v.inRep = true
	v.currentRepVelocity = nil
	v.currentRepTimestamp = nil
}

// OnRepComplete finalizes the current rep and returns its metrics.
func (v *VelocityEstimator) OnRepComplete() RepVelocity {
	v.inRep = false
	v.repCount++

	if len(v.currentRepVelocity) == 0 {
		m := RepVelocity{RepNumber: v.repCount}
		v.repVelocities = append(v.repVelocities, m)
		return m
	}

	peak := v.currentRepVelocity[0]
	peakIdx := 0
	for i, s := range v.currentRepVelocity {
		if s > peak {
			peak = s
			peakIdx = i
		}
	}
	timeToPeak := v.currentRepTimestamp[peakIdx] - v.currentRepTimestamp[0]

	var concentricSum, eccentricSum float64
	var concentricN, eccentricN int
	for _, s := range v.currentRepVelocity {
		if s > 0 {
			concentricSum += s
			concentricN++
		} else if s < 0 {
			eccentricSum += -s
			eccentricN++
		}
	}
	var meanConcentric, meanEccentric float64
	if concentricN > 0 {
		meanConcentric = concentricSum / float64(concentricN)
	}
	if eccentricN > 0 {
		meanEccentric = eccentricSum / float64(eccentricN)
	}

	m := RepVelocity{
		RepNumber:              v.repCount,
		PeakVelocity:           round3(peak),
		MeanConcentricVelocity: round3(meanConcentric),
		MeanEccentricVelocity:  round3(meanEccentric),
		TimeToPeak:             round3(timeToPeak),
	}
	v.repVelocities = append(v.repVelocities, m)
	return m
}

// VelocityLossPct compares first-rep to last-rep peak velocity as a
// fatigue proxy. Nil with fewer than 2 reps or a non-positive first peak.
func (v *VelocityEstimator) VelocityLossPct() *float64 {
	return lossPct(v.peaks())
}

// AveragePeakVelocity averages peak velocity across completed reps.
func (v *VelocityEstimator) AveragePeakVelocity() *float64 {
	peaks := v.peaks()
	if len(peaks) == 0 {
		return nil
	}
	var sum float64
	for _, p := range peaks {
		sum += p
	}
	avg := round3(sum / float64(len(peaks)))
	return &avg
}

// CurrentVelocity returns the latest smoothed estimate.
func (v *VelocityEstimator) CurrentVelocity() float64 { return v.velocity }

// RepVelocities returns metrics for all completed reps.
func (v *VelocityEstimator) RepVelocities() []RepVelocity {
	out := make([]RepVelocity, len(v.repVelocities))
	copy(out, v.repVelocities)
	return out
}

// Reset clears all state for a fresh pipeline.
func (v *VelocityEstimator) Reset() {
	v.velocity = 0
	v.velocityRaw = 0
	v.kalman.Reset(0, 1.0)
	v.currentTime = 0
	v.inRep = false
	v.repVelocities = nil
	v.currentRepVelocity = nil
	v.currentRepTimestamp = nil
	v.repCount = 0
	v.driftEstimate = 0
}

func (v *VelocityEstimator) peaks() []float64 {
	peaks := make([]float64, len(v.repVelocities))
	for i, r := range v.repVelocities {
		peaks[i] = r.PeakVelocity
	}
	return peaks
}

// lossPct is the shared first-vs-last drop formula, clamped to [0, 100].
func lossPct(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	first := values[0]
	last := values[len(values)-1]
	if first <= 0 {
		return nil
	}
	loss := (1.0 - last/first) * 100.0
	loss = round2(math.Max(0.0, math.Min(100.0, loss)))
	return &loss
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
