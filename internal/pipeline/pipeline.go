// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pipeline drives the ~50 Hz sensor loop: orientation, gravity
// decomposition, velocity and ROM integration, rep detection, session
// metric accumulation, classification, and outbound snapshots/events.
// The loop is the single caller of every stateful stage, so the stages
// never reference each other.
package pipeline

import (
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/bartrack/internal/ahrs"
	"github.com/relabs-tech/bartrack/internal/classify"
	"github.com/relabs-tech/bartrack/internal/dispatch"
	"github.com/relabs-tech/bartrack/internal/fusion"
	"github.com/relabs-tech/bartrack/internal/imu"
	"github.com/relabs-tech/bartrack/internal/reps"
	"github.com/relabs-tech/bartrack/internal/session"
)

const (
	// snapshotInterval is the rep_update cadence.
	snapshotInterval = 0.1

	// calibrationSec is the startup window reported as CALIBRATING.
	calibrationSec = 2.0

	// Error policy: per-read retry delay, reinit threshold, reinit
	// backoff, and the minimum spacing of error messages to consumers.
	readRetryDelay     = 50 * time.Millisecond
	reinitBackoff      = 250 * time.Millisecond
	initRetryDelay     = 500 * time.Millisecond
	reinitAfterFails   = 10
	errorReportSpacing = time.Second
)

// Config carries the tunables the loop needs at construction.
type Config struct {
	SampleRateHz float64

	RepThreshold   float64
	RepMinInterval float64
	RepAlpha       float64

	MadgwickBeta float64

	KalmanQ float64
	KalmanR float64

	Gravity         float64
	AdaptiveGravity bool
}

// Pipeline owns every stateful filter by value and shares the recorder
// with the dispatcher through a mutex held across each tick.
type Pipeline struct {
	cfg Config

	source imu.Source
	hub    *dispatch.Hub

	// mu guards recorder and classifier against the dispatcher's
	// command handling.
	mu         *sync.Mutex
	recorder   *session.Recorder
	classifier *classify.Classifier

	orientation     *ahrs.Madgwick
	gravity         *fusion.GravityRemover
	adaptiveGravity *fusion.AdaptiveGravityRemover // nil unless configured
	velocity        *fusion.VelocityEstimator
	rom             *fusion.RomEstimator

	liveCounter    *reps.Counter
	sessionCounter *reps.Counter

	resetRequested atomic.Bool

	thresholds session.Thresholds
}

// Adaptive gravity tuning; the adaptation rate follows the recorded
// rigs, the motion threshold is in m/s² of magnitude deviation.
const (
	gravityAdaptationRate  = 0.01
	gravityMotionThreshold = 0.5
)

// New wires a pipeline over the shared recorder/classifier state.
func New(cfg Config, source imu.Source, hub *dispatch.Hub, mu *sync.Mutex, recorder *session.Recorder, classifier *classify.Classifier) *Pipeline {
	var adaptive *fusion.AdaptiveGravityRemover
	if cfg.AdaptiveGravity {
		adaptive = fusion.NewAdaptiveGravityRemover(cfg.Gravity, gravityAdaptationRate, gravityMotionThreshold)
	}
	return &Pipeline{
		cfg:        cfg,
		source:     source,
		hub:        hub,
		mu:         mu,
		recorder:   recorder,
		classifier: classifier,

		orientation:     ahrs.NewMadgwick(cfg.SampleRateHz, cfg.MadgwickBeta),
		gravity:         fusion.NewGravityRemover(cfg.Gravity),
		adaptiveGravity: adaptive,
		velocity:        fusion.NewVelocityEstimator(cfg.SampleRateHz, cfg.KalmanQ, cfg.KalmanR),
		rom:             fusion.NewRomEstimator(cfg.SampleRateHz),

		liveCounter:    reps.NewCounter(cfg.RepThreshold, cfg.RepMinInterval, cfg.RepAlpha),
		sessionCounter: reps.NewCounter(cfg.RepThreshold, cfg.RepMinInterval, cfg.RepAlpha),

		thresholds: session.Thresholds{
			Threshold:     cfg.RepThreshold,
			MinRepTimeSec: cfg.RepMinInterval,
			Alpha:         cfg.RepAlpha,
		},
	}
}

// Thresholds returns the detector configuration snapshot.
func (p *Pipeline) Thresholds() session.Thresholds { return p.thresholds }

// RequestReset asks the loop to reset all filter state at its next
// tick. Called from the dispatcher.
func (p *Pipeline) RequestReset() { p.resetRequested.Store(true) }

// Run executes the loop until the process exits. It never returns
// under normal operation.
func (p *Pipeline) Run() {
	p.initSensor()

	period := time.Duration(float64(time.Second) / p.cfg.SampleRateHz)
	t0 := time.Now()
	calibUntil := t0.Add(time.Duration(calibrationSec * float64(time.Second)))

	var (
		lastSend            float64
		wasRecording        bool
		lastSessionReps     int
		wasMoving           bool
		consecutiveFailures int
		lastErrorSent       time.Time
		lastPrediction      *classify.Prediction
	)

	for {
		tickStart := time.Now()
		t := tickStart.Sub(t0).Seconds()

		if p.resetRequested.Swap(false) {
			p.resetAll()
			lastSessionReps = 0
			wasMoving = false
			log.Printf("pipeline: state reset")
		}

		ax, ay, az, gx, gy, gz, err := p.source.ReadAccelGyro()
		if err != nil {
			consecutiveFailures++
			if time.Since(lastErrorSent) > errorReportSpacing {
				lastErrorSent = time.Now()
				p.hub.Broadcast(&dispatch.ErrorMsg{
					Type:                "error",
					Where:               "imu_read",
					Error:               err.Error(),
					ConsecutiveFailures: consecutiveFailures,
				})
			}
			time.Sleep(readRetryDelay)

			if consecutiveFailures >= reinitAfterFails {
				p.source.Close()
				if err := p.source.Init(); err != nil {
					time.Sleep(reinitBackoff)
				} else {
					consecutiveFailures = 0
					p.hub.Broadcast(&dispatch.Status{Type: "status", Note: "imu_reinitialized"})
					log.Printf("pipeline: imu reinitialized")
				}
			}
			continue
		}
		consecutiveFailures = 0
		s := imu.Sample{T: t, Ax: ax, Ay: ay, Az: az, Gx: gx, Gy: gy, Gz: gz}

		// Orientation and gravity decomposition.
		euler := p.orientation.Update(s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz)

		// Live motion state drives the UI, TUT, and ZUPT gating.
		_, liveFilt, liveState := p.liveCounter.Update(s.Gx, s.Gy, s.Gz, t)
		moving := liveState == reps.StateMoving

		var linZ float64
		if p.adaptiveGravity != nil {
			_, _, linZ = p.adaptiveGravity.RemoveGravity(s.Ax, s.Ay, s.Az, euler.Roll, euler.Pitch, euler.Yaw, !moving)
		} else {
			_, _, linZ = p.gravity.RemoveGravity(s.Ax, s.Ay, s.Az, euler.Roll, euler.Pitch, euler.Yaw)
		}

		vel := p.velocity.Update(linZ, !moving)
		p.rom.Update(vel)

		uiState := dispatch.StateWaiting
		if moving {
			uiState = dispatch.StateMoving
		}
		if tickStart.Before(calibUntil) {
			uiState = dispatch.StateCalibrating
		}

		p.mu.Lock()

		p.recorder.UpdateTut(moving, t)
		p.recorder.UpdatePeaks(math.Abs(liveFilt))

		recording := p.recorder.Active()

		// Start transition: fresh session counter, fresh metrics, fresh
		// classifier votes. The recorder already reset its metrics on
		// Start; the counters and votes live on this side of the loop.
		if recording && !wasRecording {
			log.Printf("pipeline: recording started (session %s)", p.recorder.SessionID())
			p.sessionCounter.Reset()
			p.classifier.ResetVotes()
			p.velocity.OnRepStart() // discard; clears any stale rep window
			p.rom.OnRepStart()
			lastSessionReps = 0
			wasMoving = false
			lastPrediction = nil
		}
		if !recording && wasRecording {
			log.Printf("pipeline: recording stopped")
		}
		wasRecording = recording

		if pred := p.classifier.Push(s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz); pred != nil {
			lastPrediction = pred
		}

		var repEvent *dispatch.RepEvent
		if recording {
			sessionReps, _, _ := p.sessionCounter.Update(s.Gx, s.Gy, s.Gz, t)

			// Rep boundary bookkeeping for the velocity/ROM windows.
			if moving && !wasMoving {
				p.velocity.OnRepStart()
				p.rom.OnRepStart()
			}
			wasMoving = moving

			if sessionReps > lastSessionReps {
				velMetrics := p.velocity.OnRepComplete()
				romM := p.rom.OnRepComplete()

				tempo, peakGyro, speedProxy := p.recorder.OnRepEvent(
					sessionReps, t, velMetrics.PeakVelocity, romM)

				confidence := math.Min(1.0, math.Max(0.0, math.Abs(liveFilt)/2000.0))

				repEvent = &dispatch.RepEvent{
					Type:           "rep_event",
					Rep:            sessionReps,
					T:              round3(t),
					TempoSec:       tempo,
					Confidence:     round2(confidence),
					PeakGyro:       peakGyro,
					PeakSpeedProxy: speedProxy,
					PeakVelocityMs: velMetrics.PeakVelocity,
					RomM:           round3(romM),
				}
				lastSessionReps = sessionReps
			}
			p.recorder.SetReps(sessionReps)
		}

		var update *dispatch.RepUpdate
		var status *dispatch.Status
		if t-lastSend >= snapshotInterval {
			update = p.buildUpdate(t, uiState, recording, liveFilt, euler, vel, lastPrediction)
			status = &dispatch.Status{
				Type:      "status",
				State:     uiState,
				Reps:      p.recorder.Reps(),
				Recording: recording,
				T:         round3(t),
				GyroFilt:  round1(liveFilt),
			}
			lastSend = t
		}

		// Raw-log while the lock is held so a concurrent STOP cannot
		// close the file mid-line.
		if repEvent != nil {
			p.recorder.Log(repEvent)
		}
		if update != nil {
			p.recorder.Log(update)
		}

		p.mu.Unlock()

		// rep_event goes out before any snapshot that could carry the
		// next rep count.
		if repEvent != nil {
			p.hub.Broadcast(repEvent)
		}
		if update != nil {
			p.hub.SetStatus(status)
			p.hub.Broadcast(update)
		}

		work := time.Since(tickStart)
		if work < period {
			time.Sleep(period - work)
		} else if work > period*2 {
			log.Printf("pipeline: tick overran period: %v", work)
		}
	}
}

// initSensor retries initialization indefinitely, surfacing one error
// message per attempt.
func (p *Pipeline) initSensor() {
	for {
		err := p.source.Init()
		if err == nil {
			log.Printf("pipeline: sensor initialized (%s)", p.source.Info().IMU)
			return
		}
		log.Printf("pipeline: sensor init failed: %v", err)
		p.hub.Broadcast(&dispatch.ErrorMsg{Type: "error", Where: "imu_init", Error: err.Error()})
		p.source.Close()
		time.Sleep(initRetryDelay)
	}
}

// buildUpdate assembles the tick snapshot. Caller holds p.mu.
func (p *Pipeline) buildUpdate(t float64, uiState string, recording bool, liveFilt float64, euler ahrs.Euler, vel float64, pred *classify.Prediction) *dispatch.RepUpdate {
	detected := classify.LabelUnknown
	var liftConfidence float64
	if label, best, ok := p.classifier.SessionPrediction(); ok {
		detected = label
		liftConfidence = best
	} else if pred != nil {
		detected = pred.Label
		liftConfidence = pred.Confidence
	}

	var avgTempo *float64
	if v := p.recorder.AvgTempoSec(); v != nil {
		r := round2(*v)
		avgTempo = &r
	}

	return &dispatch.RepUpdate{
		Type:      "rep_update",
		T:         round3(t),
		Reps:      p.recorder.Reps(),
		State:     uiState,
		Recording: recording,
		GyroFilt:  round1(liveFilt),

		TutSec:            round2(p.recorder.TutSec()),
		AvgTempoSec:       avgTempo,
		OutputLossPct:     p.recorder.OutputLossPct(),
		AvgPeakSpeedProxy: p.recorder.AvgPeakSpeedProxy(),
		SpeedLossPct:      p.recorder.SpeedLossPct(),

		Velocity:     round3(vel),
		Displacement: round3(p.rom.CurrentDisplacement()),
		Roll:         round2(euler.Roll),
		Pitch:        round2(euler.Pitch),
		Yaw:          round2(euler.Yaw),

		AvgVelocityMs:   p.velocity.AveragePeakVelocity(),
		VelocityLossPct: p.velocity.VelocityLossPct(),
		AvgRomM:         avgRound3(p.rom.AverageRom()),
		RomLossPct:      p.rom.RomLossPct(),

		DetectedLift:   detected,
		LiftConfidence: round2(liftConfidence),

		Thresholds: p.thresholds,
	}
}

// resetAll restores every filter to its initial state, the canonical
// full-pipeline RESET semantics.
func (p *Pipeline) resetAll() {
	p.orientation.Reset()
	p.velocity.Reset()
	p.rom.Reset()
	p.liveCounter.Reset()
	p.sessionCounter.Reset()

	p.mu.Lock()
	p.recorder.ResetMetrics()
	p.classifier.ResetVotes()
	p.mu.Unlock()
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func avgRound3(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round3(*v)
	return &r
}
