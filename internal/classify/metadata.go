// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package classify runs a pre-trained convolutional exercise classifier
// over sliding windows of the raw 6-channel stream and aggregates its
// per-window predictions into a per-session vote.
package classify

import (
	"encoding/json"
	"fmt"
	"os"
)

// Metadata describes the exported model: label set, window geometry, and
// the per-channel normalization the training pipeline applied.
type Metadata struct {
	Labels              []string  `json:"labels"`
	WindowSamples       int       `json:"window_samples"`
	NormMean            []float64 `json:"norm_mean"`
	NormStd             []float64 `json:"norm_std"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
}

// LoadMetadata reads and validates the model metadata JSON.
func LoadMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classify: read metadata: %w", err)
	}
	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("classify: parse metadata: %w", err)
	}
	if len(md.Labels) == 0 {
		return nil, fmt.Errorf("classify: metadata has no labels")
	}
	if len(md.NormMean) != numChannels || len(md.NormStd) != numChannels {
		return nil, fmt.Errorf("classify: metadata norm vectors must have %d channels, got %d/%d",
			numChannels, len(md.NormMean), len(md.NormStd))
	}
	if md.WindowSamples <= 0 {
		md.WindowSamples = DefaultWindowSamples
	}
	if md.ConfidenceThreshold <= 0 {
		md.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return &md, nil
}

// firstExisting returns the first path that exists on disk, or "".
func firstExisting(paths []string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
