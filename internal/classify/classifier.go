// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package classify

import (
	"errors"
	"fmt"
	"log"
)

const (
	numChannels = 6

	// DefaultWindowSamples is the model window length W.
	DefaultWindowSamples = 250
	// DefaultStride is the sample distance between inferences.
	DefaultStride = 25
	// DefaultConfidenceThreshold gates low-confidence windows to "unknown".
	DefaultConfidenceThreshold = 0.6

	// LabelUnknown is the label given to a window whose top confidence
	// is below the threshold; it is tallied in the session vote like any
	// other label.
	LabelUnknown = "unknown"
)

// ErrRuntimeUnavailable is returned by NewRuntime when the binary
// carries no inference backend.
var ErrRuntimeUnavailable = errors.New("classify: inference runtime unavailable")

// Runtime is the inference backend. Invoke receives one z-score
// normalized window, row-major [W][6].
type Runtime interface {
	Invoke(window []float32) (Output, error)
	Close() error
}

// Prediction is one window's classification result.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// voteState accumulates per-label evidence across a session.
type voteState struct {
	sum  float64
	best float64
}

// Classifier buffers the raw stream and runs strided inference,
// accumulating per-session votes. It never blocks the pipeline for more
// than one inference step, and degrades to a no-op when the runtime or
// model files are unavailable.
type Classifier struct {
	md      *Metadata
	runtime Runtime
	stride  int

	// Ring buffer of the last W samples, row-major [W][6].
	buffer    [][numChannels]float64
	head      int
	filled    bool
	counter   int
	lastInfer int

	votes map[string]*voteState

	// Reason is non-empty when the classifier is a permanent no-op.
	Reason string
}

// Options configures classifier construction.
type Options struct {
	// ModelPaths and MetadataPaths are candidate locations tried in order.
	ModelPaths    []string
	MetadataPaths []string
	Stride        int
}

// New locates the model and metadata and brings up the runtime. The
// returned classifier is always usable: when anything is missing it is
// a no-op with Reason set, matching the rule that classification must
// never take down the pipeline.
func New(opts Options) *Classifier {
	c := &Classifier{stride: opts.Stride}
	if c.stride <= 0 {
		c.stride = DefaultStride
	}

	metaPath := firstExisting(opts.MetadataPaths)
	modelPath := firstExisting(opts.ModelPaths)
	if metaPath == "" || modelPath == "" {
		c.Reason = "model_not_found"
		log.Printf("classify: model or metadata not found, classifier disabled")
		return c
	}

	md, err := LoadMetadata(metaPath)
	if err != nil {
		c.Reason = fmt.Sprintf("init_failed:%v", err)
		log.Printf("classify: %v, classifier disabled", err)
		return c
	}

	runtime, err := NewRuntime(modelPath)
	if err != nil {
		if errors.Is(err, ErrRuntimeUnavailable) {
			c.Reason = "runtime_missing"
		} else {
			c.Reason = fmt.Sprintf("init_failed:%v", err)
		}
		log.Printf("classify: %v, classifier disabled", err)
		return c
	}

	c.md = md
	c.runtime = runtime
	c.buffer = make([][numChannels]float64, md.WindowSamples)
	c.votes = make(map[string]*voteState)
	log.Printf("classify: model loaded (%d labels, window %d, stride %d)",
		len(md.Labels), md.WindowSamples, c.stride)
	return c
}

// Disabled returns a permanent no-op classifier, for configurations
// that opted out of classification entirely.
func Disabled(reason string) *Classifier {
	return &Classifier{Reason: reason}
}

// NewWithRuntime wires an explicit runtime and metadata, bypassing the
// filesystem search. Used by the tests.
func NewWithRuntime(md *Metadata, rt Runtime, stride int) *Classifier {
	if stride <= 0 {
		stride = DefaultStride
	}
	if md.WindowSamples <= 0 {
		md.WindowSamples = DefaultWindowSamples
	}
	return &Classifier{
		md:      md,
		runtime: rt,
		stride:  stride,
		buffer:  make([][numChannels]float64, md.WindowSamples),
		votes:   make(map[string]*voteState),
	}
}

// Enabled reports whether inference will ever run.
func (c *Classifier) Enabled() bool { return c.runtime != nil }

// Push appends one raw sample and runs inference when the buffer is
// full and the stride has elapsed. Returns a prediction when inference
// ran and succeeded, nil otherwise. Inference failure is logged and
// swallowed; the vote tally is unaffected for that tick.
func (c *Classifier) Push(ax, ay, az, gx, gy, gz float64) *Prediction {
	if c.runtime == nil {
		return nil
	}

	c.buffer[c.head] = [numChannels]float64{ax, ay, az, gx, gy, gz}
	c.head = (c.head + 1) % len(c.buffer)
	if c.head == 0 {
		c.filled = true
	}
	c.counter++

	if !c.filled || c.counter-c.lastInfer < c.stride {
		return nil
	}
	c.lastInfer = c.counter

	out, err := c.runtime.Invoke(c.window())
	if err != nil {
		log.Printf("classify: inference failed: %v", err)
		return nil
	}
	if out.Len() != len(c.md.Labels) {
		log.Printf("classify: output size %d does not match %d labels", out.Len(), len(c.md.Labels))
		return nil
	}

	idx, confidence := out.ArgmaxConfidence()
	label := LabelUnknown
	if confidence >= c.md.ConfidenceThreshold {
		label = c.md.Labels[idx]
	}

	v := c.votes[label]
	if v == nil {
		v = &voteState{}
		c.votes[label] = v
	}
	v.sum += confidence
	if confidence > v.best {
		v.best = confidence
	}

	return &Prediction{Label: label, Confidence: confidence}
}

// window assembles the normalized [W][6] tensor in insertion order.
func (c *Classifier) window() []float32 {
	w := len(c.buffer)
	out := make([]float32, 0, w*numChannels)
	for i := 0; i < w; i++ {
		row := c.buffer[(c.head+i)%w]
		for ch := 0; ch < numChannels; ch++ {
			std := c.md.NormStd[ch]
			if std == 0 {
				std = 1
			}
			out = append(out, float32((row[ch]-c.md.NormMean[ch])/std))
		}
	}
	return out
}

// SessionPrediction returns the label with the highest summed
// confidence and that label's best single-window confidence. ok is
// false when no votes have accumulated.
func (c *Classifier) SessionPrediction() (label string, best float64, ok bool) {
	var maxSum float64
	for l, v := range c.votes {
		if v.sum > maxSum {
			maxSum = v.sum
			label = l
			best = v.best
		}
	}
	return label, best, label != ""
}

// ResetVotes clears the session tally. Called at session START, never
// at STOP, so the final prediction survives until the next session.
func (c *Classifier) ResetVotes() {
	if c.votes != nil {
		c.votes = make(map[string]*voteState)
	}
}

// Close releases the inference runtime.
func (c *Classifier) Close() error {
	if c.runtime == nil {
		return nil
	}
	err := c.runtime.Close()
	c.runtime = nil
	return err
}
