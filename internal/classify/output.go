// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package classify

import "math"

// outputKind tags the runtime dtype of an inference result.
type outputKind int

const (
	outputFloat32 outputKind = iota
	outputUInt8
	outputInt8
)

// Output is the model's raw result regardless of export dtype. Callers
// never branch on the dtype; Probabilities dequantizes and softmaxes.
type Output struct {
	kind outputKind

	f32 []float32
	u8  []uint8
	i8  []int8

	scale     float64
	zeroPoint int
}

// Float32Output wraps a float logit vector.
func Float32Output(data []float32) Output {
	return Output{kind: outputFloat32, f32: data}
}

// UInt8Output wraps a uint8-quantized logit vector with its
// quantization parameters.
func UInt8Output(data []uint8, scale float64, zeroPoint int) Output {
	return Output{kind: outputUInt8, u8: data, scale: scale, zeroPoint: zeroPoint}
}

// Int8Output wraps an int8-quantized logit vector with its quantization
// parameters.
func Int8Output(data []int8, scale float64, zeroPoint int) Output {
	return Output{kind: outputInt8, i8: data, scale: scale, zeroPoint: zeroPoint}
}

// Len returns the class count.
func (o Output) Len() int {
	switch o.kind {
	case outputUInt8:
		return len(o.u8)
	case outputInt8:
		return len(o.i8)
	default:
		return len(o.f32)
	}
}

// logits dequantizes symmetrically around the zero point.
func (o Output) logits() []float64 {
	switch o.kind {
	case outputUInt8:
		out := make([]float64, len(o.u8))
		for i, v := range o.u8 {
			out[i] = o.scale * float64(int(v)-o.zeroPoint)
		}
		return out
	case outputInt8:
		out := make([]float64, len(o.i8))
		for i, v := range o.i8 {
			out[i] = o.scale * float64(int(v)-o.zeroPoint)
		}
		return out
	default:
		out := make([]float64, len(o.f32))
		for i, v := range o.f32 {
			out[i] = float64(v)
		}
		return out
	}
}

// Probabilities returns the softmax distribution over classes.
func (o Output) Probabilities() []float64 {
	logits := o.logits()
	if len(logits) == 0 {
		return nil
	}

	// Shift by the max for numerical stability.
	maxLogit := logits[0]
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(v - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// ArgmaxConfidence returns the winning class index and its softmax
// probability.
func (o Output) ArgmaxConfidence() (idx int, confidence float64) {
	probs := o.Probabilities()
	for i, p := range probs {
		if p > confidence {
			confidence = p
			idx = i
		}
	}
	return idx, confidence
}
