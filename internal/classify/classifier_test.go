// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package classify

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRuntime returns pre-baked outputs in sequence.
type scriptedRuntime struct {
	outputs []Output
	calls   int
}

func (s *scriptedRuntime) Invoke(window []float32) (Output, error) {
	out := s.outputs[s.calls%len(s.outputs)]
	s.calls++
	return out, nil
}

func (s *scriptedRuntime) Close() error { return nil }

func testMetadata() *Metadata {
	return &Metadata{
		Labels:              []string{"squat", "bench", "deadlift"},
		WindowSamples:       10,
		NormMean:            []float64{0, 0, 0, 0, 0, 0},
		NormStd:             []float64{1, 1, 1, 1, 1, 1},
		ConfidenceThreshold: 0.6,
	}
}

// logitsFor builds a float output whose softmax peaks at idx with
// roughly the requested confidence (3-class case).
func logitsFor(idx int, confidence float64) Output {
	// softmax([a, 0, 0])[0] = e^a / (e^a + 2) = c  →  a = ln(2c/(1-c))
	a := float32(math.Log(2 * confidence / (1 - confidence)))
	logits := make([]float32, 3)
	logits[idx] = a
	return Float32Output(logits)
}

func TestOutputProbabilitiesSumToOne(t *testing.T) {
	cases := []Output{
		Float32Output([]float32{1.0, 2.0, 0.5}),
		UInt8Output([]uint8{10, 200, 128}, 0.05, 128),
		Int8Output([]int8{-50, 20, 100}, 0.05, 0),
	}
	for _, out := range cases {
		probs := out.Probabilities()
		require.Len(t, probs, 3)
		var sum float64
		for _, p := range probs {
			assert.GreaterOrEqual(t, p, 0.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestOutputDequantizationSymmetric(t *testing.T) {
	// uint8 value at the zero point dequantizes to exactly 0, and
	// values equidistant from it mirror each other.
	out := UInt8Output([]uint8{128, 138, 118}, 0.1, 128)
	logits := out.logits()
	assert.InDelta(t, 0.0, logits[0], 1e-9)
	assert.InDelta(t, 1.0, logits[1], 1e-9)
	assert.InDelta(t, -1.0, logits[2], 1e-9)
}

func TestOutputArgmax(t *testing.T) {
	out := logitsFor(1, 0.9)
	idx, conf := out.ArgmaxConfidence()
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 0.9, conf, 1e-6)
}

func TestClassifierStrideAndWindow(t *testing.T) {
	rt := &scriptedRuntime{outputs: []Output{logitsFor(0, 0.9)}}
	c := NewWithRuntime(testMetadata(), rt, 5)

	// Nothing fires until the 10-sample window fills.
	for i := 0; i < 9; i++ {
		assert.Nil(t, c.Push(0, 0, 0, 0, 0, 0))
	}
	assert.NotNil(t, c.Push(0, 0, 0, 0, 0, 0))
	assert.Equal(t, 1, rt.calls)

	// Then once every stride samples.
	for i := 0; i < 4; i++ {
		assert.Nil(t, c.Push(0, 0, 0, 0, 0, 0))
	}
	assert.NotNil(t, c.Push(0, 0, 0, 0, 0, 0))
	assert.Equal(t, 2, rt.calls)
}

func TestClassifierThresholdGatesToUnknown(t *testing.T) {
	rt := &scriptedRuntime{outputs: []Output{logitsFor(2, 0.45)}}
	c := NewWithRuntime(testMetadata(), rt, 1)

	var pred *Prediction
	for i := 0; i < 10; i++ {
		pred = c.Push(0, 0, 0, 0, 0, 0)
	}
	require.NotNil(t, pred)
	assert.Equal(t, LabelUnknown, pred.Label)
	assert.InDelta(t, 0.45, pred.Confidence, 0.01)
}

func TestClassifierSessionVote(t *testing.T) {
	// Window confidences: A 0.7, A 0.8, B 0.9, A 0.75, B 0.6, A 0.65,
	// B 0.7, A 0.8, A 0.72, B 0.65. A's sum 4.42 beats B's 2.85; A's
	// best is 0.8.
	seq := []Output{
		logitsFor(0, 0.7), logitsFor(0, 0.8), logitsFor(1, 0.9),
		logitsFor(0, 0.75), logitsFor(1, 0.6), logitsFor(0, 0.65),
		logitsFor(1, 0.7), logitsFor(0, 0.8), logitsFor(0, 0.72),
		logitsFor(1, 0.65),
	}
	rt := &scriptedRuntime{outputs: seq}
	c := NewWithRuntime(testMetadata(), rt, 1)

	// Fill the window (first inference fires on sample 10), then nine
	// more pushes for ten windows in total.
	for i := 0; i < 19; i++ {
		c.Push(0, 0, 0, 0, 0, 0)
	}
	require.Equal(t, 10, rt.calls)

	label, best, ok := c.SessionPrediction()
	require.True(t, ok)
	assert.Equal(t, "squat", label)
	assert.InDelta(t, 0.8, best, 0.01)
}

func TestClassifierResetVotes(t *testing.T) {
	rt := &scriptedRuntime{outputs: []Output{logitsFor(0, 0.9)}}
	c := NewWithRuntime(testMetadata(), rt, 1)
	for i := 0; i < 12; i++ {
		c.Push(0, 0, 0, 0, 0, 0)
	}
	_, _, ok := c.SessionPrediction()
	require.True(t, ok)

	c.ResetVotes()
	_, _, ok = c.SessionPrediction()
	assert.False(t, ok)
}

func TestClassifierDisabledWhenModelMissing(t *testing.T) {
	c := New(Options{
		ModelPaths:    []string{"/nonexistent/model.tflite"},
		MetadataPaths: []string{"/nonexistent/meta.json"},
	})
	assert.False(t, c.Enabled())
	assert.Equal(t, "model_not_found", c.Reason)
	assert.Nil(t, c.Push(0, 0, 0, 0, 0, 0))
}

func TestClassifierNormalization(t *testing.T) {
	md := testMetadata()
	md.NormMean = []float64{1, 1, 1, 1, 1, 1}
	md.NormStd = []float64{2, 2, 2, 2, 2, 2}

	var captured []float32
	rt := &captureRuntime{onInvoke: func(w []float32) { captured = w }}
	c := NewWithRuntime(md, rt, 1)

	for i := 0; i < 10; i++ {
		c.Push(3, 3, 3, 3, 3, 3)
	}
	require.NotEmpty(t, captured)
	for _, v := range captured {
		assert.InDelta(t, 1.0, float64(v), 1e-6) // (3-1)/2
	}
}

type captureRuntime struct {
	onInvoke func([]float32)
}

func (c *captureRuntime) Invoke(window []float32) (Output, error) {
	c.onInvoke(window)
	return Float32Output([]float32{1, 0, 0}), nil
}

func (c *captureRuntime) Close() error { return nil }

func TestLoadMetadataValidation(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "meta.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"labels": ["a", "b"],
		"window_samples": 250,
		"norm_mean": [0,0,0,0,0,0],
		"norm_std": [1,1,1,1,1,1],
		"confidence_threshold": 0.7
	}`), 0o644))

	md, err := LoadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, md.Labels)
	assert.Equal(t, 0.7, md.ConfidenceThreshold)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"labels": [], "norm_mean": [], "norm_std": []}`), 0o644))
	_, err = LoadMetadata(bad)
	assert.Error(t, err)
}
