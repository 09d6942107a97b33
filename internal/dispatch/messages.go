// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package dispatch fronts consumer websocket connections: it replays
// the last-known state to new consumers, fans out tick snapshots and
// rep events, and routes inbound control commands to the daemon.
package dispatch

import (
	"encoding/json"

	"github.com/relabs-tech/bartrack/internal/session"
)

// Pipeline UI states.
const (
	StateCalibrating = "CALIBRATING"
	StateWaiting     = "WAITING"
	StateMoving      = "MOVING"
)

// Command is an inbound control frame. Unknown fields are ignored;
// frames that fail to parse are dropped silently.
type Command struct {
	Type   string `json:"type"`
	Action string `json:"action"`

	SessionID string `json:"session_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Stride    int    `json:"stride,omitempty"`
	StartHTTP *bool  `json:"start_http,omitempty"`
	HTTPPort  int    `json:"http_port,omitempty"`
}

// IsCommand reports whether the frame is a control command.
func (c *Command) IsCommand() bool {
	return c.Type == "cmd" || c.Type == "command"
}

// RepUpdate is the ~10 Hz tick snapshot streamed to all consumers.
type RepUpdate struct {
	Type      string  `json:"type"` // "rep_update"
	T         float64 `json:"t"`
	Reps      int     `json:"reps"`
	State     string  `json:"state"`
	Recording bool    `json:"recording"`
	GyroFilt  float64 `json:"gyro_filt"`

	TutSec            float64  `json:"tut_sec"`
	AvgTempoSec       *float64 `json:"avg_tempo_sec"`
	OutputLossPct     *float64 `json:"output_loss_pct"`
	AvgPeakSpeedProxy *float64 `json:"avg_peak_speed_proxy"`
	SpeedLossPct      *float64 `json:"speed_loss_pct"`

	Velocity     float64 `json:"velocity"`
	Displacement float64 `json:"displacement"`
	Roll         float64 `json:"roll"`
	Pitch        float64 `json:"pitch"`
	Yaw          float64 `json:"yaw"`

	AvgVelocityMs   *float64 `json:"avg_velocity_ms"`
	VelocityLossPct *float64 `json:"velocity_loss_pct"`
	AvgRomM         *float64 `json:"avg_rom_m"`
	RomLossPct      *float64 `json:"rom_loss_pct"`

	DetectedLift   string  `json:"detected_lift"`
	LiftConfidence float64 `json:"lift_confidence"`

	// Detector configuration replayed for diagnostics.
	Thresholds session.Thresholds `json:"thresholds"`
}

// RepEvent is emitted exactly once per detected rep, at the detecting
// tick.
type RepEvent struct {
	Type string  `json:"type"` // "rep_event"
	Rep  int     `json:"rep"`
	T    float64 `json:"t"`

	TempoSec       *float64 `json:"tempo_sec"`
	Confidence     float64  `json:"confidence"`
	PeakGyro       float64  `json:"peak_gyro"`
	PeakSpeedProxy float64  `json:"peak_speed_proxy"`
	PeakVelocityMs float64  `json:"peak_velocity_ms"`
	RomM           float64  `json:"rom_m"`
}

// Status is the replayed last-known state, sent on connect and on
// state changes.
type Status struct {
	Type      string  `json:"type"` // "status"
	State     string  `json:"state"`
	Reps      int     `json:"reps"`
	Recording bool    `json:"recording"`
	T         float64 `json:"t"`
	GyroFilt  float64 `json:"gyro_filt"`
	Note      string  `json:"note,omitempty"`
}

// ErrorMsg surfaces fault conditions to consumers.
type ErrorMsg struct {
	Type                string `json:"type"` // "error"
	Where               string `json:"where"`
	Error               string `json:"error"`
	ConsecutiveFailures int    `json:"consecutive_failures,omitempty"`
}

// Ack is the structured response to every control command.
type Ack struct {
	Type   string `json:"type"` // "ack"
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Note   string `json:"note,omitempty"`

	SessionID string `json:"session_id,omitempty"`
	Dir       string `json:"dir,omitempty"`
	File      string `json:"file,omitempty"`
	Reps      int    `json:"reps,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

// SessionSummaryMsg carries the finished summary after a STOP ack.
type SessionSummaryMsg struct {
	Type      string           `json:"type"` // "session_summary"
	SessionID string           `json:"session_id"`
	Summary   *session.Summary `json:"summary"`
}

// SessionsList answers list_sessions.
type SessionsList struct {
	Type     string             `json:"type"` // "sessions_list"
	Count    int                `json:"count"`
	Sessions []*session.Summary `json:"sessions"`
}

// SessionDetail answers get_session.
type SessionDetail struct {
	Type      string           `json:"type"` // "session_detail"
	SessionID string           `json:"session_id"`
	Summary   *session.Summary `json:"summary"`
}

// SessionRaw answers get_session_raw with downsampled log points.
type SessionRaw struct {
	Type      string            `json:"type"` // "session_raw"
	SessionID string            `json:"session_id"`
	Count     int               `json:"count"`
	Stride    int               `json:"stride"`
	Points    []json.RawMessage `json:"points"`
}

// ExportResultMsg answers export_session.
type ExportResultMsg struct {
	Type      string `json:"type"` // "export_result"
	SessionID string `json:"session_id"`
	Zip       string `json:"zip"`
	URL       string `json:"url,omitempty"`
}
