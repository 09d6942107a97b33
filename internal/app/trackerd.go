// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/relabs-tech/bartrack/internal/classify"
	"github.com/relabs-tech/bartrack/internal/config"
	"github.com/relabs-tech/bartrack/internal/dispatch"
	"github.com/relabs-tech/bartrack/internal/imu"
	"github.com/relabs-tech/bartrack/internal/pipeline"
	"github.com/relabs-tech/bartrack/internal/session"
)

// RunTracker wires the daemon: sensor source, pipeline loop, websocket
// dispatcher, session store/exporter, and the optional MQTT bridge and
// status display. Blocks until the HTTP listener fails.
func RunTracker(cfg *config.Config) error {
	source := newSource(cfg)

	var mu sync.Mutex
	recorder := session.NewRecorder(cfg.SessionsDir)
	store := session.NewStore(cfg.SessionsDir)
	exporter := session.NewExporter(store, cfg.ExportsDir)

	classifier := newClassifier(cfg)
	defer classifier.Close()

	handler := &commandHandler{
		mu:         &mu,
		recorder:   recorder,
		store:      store,
		exporter:   exporter,
		deviceInfo: source.Info(),
	}
	hub := dispatch.NewHub(handler)

	pipe := pipeline.New(pipeline.Config{
		SampleRateHz:    float64(cfg.SampleRateHz),
		RepThreshold:    cfg.RepThreshold,
		RepMinInterval:  cfg.RepMinIntervalSec,
		RepAlpha:        cfg.RepAlpha,
		MadgwickBeta:    cfg.MadgwickBeta,
		KalmanQ:         cfg.KalmanQ,
		KalmanR:         cfg.KalmanR,
		Gravity:         cfg.Gravity,
		AdaptiveGravity: cfg.AdaptiveGravity,
	}, source, hub, &mu, recorder, classifier)
	handler.pipe = pipe

	if cfg.MQTTBroker != "" {
		if err := attachMQTTBridge(cfg, hub); err != nil {
			log.Printf("trackerd: MQTT bridge unavailable: %v", err)
		}
	}

	if cfg.DisplayEnabled {
		if err := attachDisplay(cfg, hub); err != nil {
			log.Printf("trackerd: status display unavailable: %v", err)
		}
	}

	go pipe.Run()

	http.HandleFunc("/ws", hub.ServeWS)
	addr := fmt.Sprintf("%s:%d", cfg.ListenHost, cfg.ListenPort)
	log.Printf("trackerd: listening on ws://%s/ws", addr)
	return http.ListenAndServe(addr, nil)
}

// newSource picks the configured IMU transport.
func newSource(cfg *config.Config) imu.Source {
	switch cfg.IMUTransport {
	case "serial":
		log.Printf("trackerd: using serial IMU on %s", cfg.IMUSerialPort)
		return imu.NewSerialIMU(cfg.IMUSerialPort, cfg.IMUBaudRate)
	case "mock":
		log.Println("trackerd: using mock IMU source")
		return imu.NewMockSource(float64(cfg.SampleRateHz))
	default:
		log.Printf("trackerd: using I2C IMU at 0x%02X", cfg.IMUI2CAddr)
		return imu.NewMPU6050(cfg.IMUI2CBus, cfg.IMUI2CAddr, cfg.IMUAccelRange, cfg.IMUGyroRange, cfg.SampleRateHz)
	}
}

// newClassifier builds the adapter, disabled or not. A disabled
// classifier is a no-op with a recorded reason, never nil.
func newClassifier(cfg *config.Config) *classify.Classifier {
	if !cfg.ClassifierEnabled {
		return classify.Disabled("disabled")
	}
	return classify.New(classify.Options{
		ModelPaths: []string{
			cfg.ClassifierModel,
			"ml/models/lift_classifier.tflite",
			"/usr/share/bartrack/lift_classifier.tflite",
		},
		MetadataPaths: []string{
			cfg.ClassifierMetadata,
			"ml/models/lift_classifier_metadata.json",
			"/usr/share/bartrack/lift_classifier_metadata.json",
		},
		Stride: cfg.ClassifierStride,
	})
}

// commandHandler services inbound control commands on behalf of the
// dispatcher. All session mutation happens under the pipeline mutex.
type commandHandler struct {
	mu         *sync.Mutex
	recorder   *session.Recorder
	store      *session.Store
	exporter   *session.Exporter
	pipe       *pipeline.Pipeline
	deviceInfo imu.DeviceInfo
}

func (h *commandHandler) HandleCommand(cmd *dispatch.Command) []any {
	switch cmd.Action {
	case "start":
		return h.handleStart()
	case "stop":
		return h.handleStop()
	case "reset":
		h.pipe.RequestReset()
		return []any{&dispatch.Ack{Type: "ack", Action: "reset", OK: true}}
	case "list_sessions":
		return h.handleList(cmd)
	case "get_session":
		return h.handleGet(cmd)
	case "get_session_raw":
		return h.handleGetRaw(cmd)
	case "export_session":
		return h.handleExport(cmd)
	default:
		return []any{&dispatch.Ack{Type: "ack", Action: cmd.Action, OK: false, Note: "unknown_action"}}
	}
}

func (h *commandHandler) handleStart() []any {
	h.mu.Lock()
	defer h.mu.Unlock()

	info, err := h.recorder.Start()
	if errors.Is(err, session.ErrAlreadyActive) {
		return []any{&dispatch.Ack{
			Type: "ack", Action: "start", OK: true,
			Note:      "already_active",
			SessionID: info.SessionID,
		}}
	}
	if err != nil {
		return []any{&dispatch.Ack{
			Type: "ack", Action: "start", OK: false,
			Note: err.Error(),
		}}
	}
	return []any{&dispatch.Ack{
		Type: "ack", Action: "start", OK: true,
		Note:      "started",
		SessionID: info.SessionID,
		Dir:       info.Dir,
		File:      info.File,
	}}
}

func (h *commandHandler) handleStop() []any {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.recorder.Active() {
		return []any{&dispatch.Ack{
			Type: "ack", Action: "stop", OK: true,
			Note: "already_inactive",
			Reps: h.recorder.Reps(),
		}}
	}

	summary, err := h.recorder.Stop(h.deviceInfo, h.pipe.Thresholds())
	if err != nil {
		return []any{&dispatch.Ack{
			Type: "ack", Action: "stop", OK: false,
			Note: err.Error(),
		}}
	}

	// The summary file is on disk before either message leaves.
	return []any{
		&dispatch.Ack{
			Type: "ack", Action: "stop", OK: true,
			Reps:      summary.TotalReps,
			SessionID: summary.SessionID,
			Summary:   h.recorder.SummaryPath(),
		},
		&dispatch.SessionSummaryMsg{
			Type:      "session_summary",
			SessionID: summary.SessionID,
			Summary:   summary,
		},
	}
}

func (h *commandHandler) handleList(cmd *dispatch.Command) []any {
	limit := cmd.Limit
	if limit <= 0 {
		limit = session.DefaultListLimit
	}
	summaries, err := h.store.List(limit)
	if err != nil {
		return []any{&dispatch.ErrorMsg{Type: "error", Where: "list_sessions", Error: err.Error()}}
	}
	return []any{&dispatch.SessionsList{
		Type:     "sessions_list",
		Count:    len(summaries),
		Sessions: summaries,
	}}
}

func (h *commandHandler) handleGet(cmd *dispatch.Command) []any {
	summary, err := h.store.Get(cmd.SessionID)
	if err != nil {
		return []any{&dispatch.ErrorMsg{Type: "error", Where: "get_session", Error: err.Error()}}
	}
	return []any{&dispatch.SessionDetail{
		Type:      "session_detail",
		SessionID: cmd.SessionID,
		Summary:   summary,
	}}
}

func (h *commandHandler) handleGetRaw(cmd *dispatch.Command) []any {
	stride := cmd.Stride
	if stride <= 0 {
		stride = session.DefaultRawStride
	}
	points, err := h.store.RawPoints(cmd.SessionID, cmd.Limit, stride)
	if err != nil {
		return []any{&dispatch.ErrorMsg{Type: "error", Where: "get_session_raw", Error: err.Error()}}
	}
	return []any{&dispatch.SessionRaw{
		Type:      "session_raw",
		SessionID: cmd.SessionID,
		Count:     len(points),
		Stride:    stride,
		Points:    points,
	}}
}

func (h *commandHandler) handleExport(cmd *dispatch.Command) []any {
	startHTTP := true
	if cmd.StartHTTP != nil {
		startHTTP = *cmd.StartHTTP
	}
	port := cmd.HTTPPort
	if port <= 0 {
		port = session.DefaultExportHTTPPort
	}

	result, err := h.exporter.Export(cmd.SessionID, h.deviceInfo, h.pipe.Thresholds(), startHTTP, port)
	if err != nil {
		return []any{&dispatch.ErrorMsg{Type: "error", Where: "export_session", Error: err.Error()}}
	}
	return []any{&dispatch.ExportResultMsg{
		Type:      "export_result",
		SessionID: result.SessionID,
		Zip:       result.ZipPath,
		URL:       result.HTTPURL,
	}}
}
