//go:build tflite

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package classify

import (
	"fmt"

	"github.com/mattn/go-tflite"
)

// tfliteRuntime wraps a go-tflite interpreter for the [1, W, 6] window
// model. Built only with -tags=tflite; the stub variant serves builds
// without the native library.
type tfliteRuntime struct {
	model       *tflite.Model
	interpreter *tflite.Interpreter
}

// NewRuntime loads the model and allocates tensors.
func NewRuntime(modelPath string) (Runtime, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("classify: failed to load tflite model: %s", modelPath)
	}
	interpreter := tflite.NewInterpreter(model, nil)
	if interpreter == nil {
		model.Delete()
		return nil, fmt.Errorf("classify: failed to create tflite interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("classify: failed to allocate tensors")
	}
	return &tfliteRuntime{model: model, interpreter: interpreter}, nil
}

// Invoke feeds one normalized window (row-major [W][6]) and returns the
// model output. Quantized input tensors get the tensor's own
// scale/zero-point applied.
func (r *tfliteRuntime) Invoke(window []float32) (Output, error) {
	input := r.interpreter.GetInputTensor(0)
	if input == nil {
		return Output{}, fmt.Errorf("classify: input tensor unavailable")
	}

	switch input.Type() {
	case tflite.Float32:
		buf := make([]float32, len(window))
		copy(buf, window)
		if status := input.CopyFromBuffer(&buf[0]); status != tflite.OK {
			return Output{}, fmt.Errorf("classify: failed to copy float input")
		}
	case tflite.UInt8:
		q := input.QuantizationParams()
		buf := make([]uint8, len(window))
		for i, v := range window {
			buf[i] = quantizeUint8(v, q.Scale, q.ZeroPoint)
		}
		if status := input.CopyFromBuffer(&buf[0]); status != tflite.OK {
			return Output{}, fmt.Errorf("classify: failed to copy uint8 input")
		}
	case tflite.Int8:
		q := input.QuantizationParams()
		buf := make([]int8, len(window))
		for i, v := range window {
			buf[i] = quantizeInt8(v, q.Scale, q.ZeroPoint)
		}
		if status := input.CopyFromBuffer(&buf[0]); status != tflite.OK {
			return Output{}, fmt.Errorf("classify: failed to copy int8 input")
		}
	default:
		return Output{}, fmt.Errorf("classify: unsupported input tensor type: %v", input.Type())
	}

	if status := r.interpreter.Invoke(); status != tflite.OK {
		return Output{}, fmt.Errorf("classify: tflite invoke failed")
	}

	output := r.interpreter.GetOutputTensor(0)
	if output == nil {
		return Output{}, fmt.Errorf("classify: output tensor unavailable")
	}

	switch output.Type() {
	case tflite.Float32:
		buf := make([]float32, output.ByteSize()/4)
		if status := output.CopyToBuffer(&buf[0]); status != tflite.OK {
			return Output{}, fmt.Errorf("classify: failed to read float output")
		}
		return Float32Output(buf), nil
	case tflite.UInt8:
		buf := make([]uint8, output.ByteSize())
		if status := output.CopyToBuffer(&buf[0]); status != tflite.OK {
			return Output{}, fmt.Errorf("classify: failed to read uint8 output")
		}
		q := output.QuantizationParams()
		return UInt8Output(buf, q.Scale, q.ZeroPoint), nil
	case tflite.Int8:
		buf := make([]int8, output.ByteSize())
		if status := output.CopyToBuffer(&buf[0]); status != tflite.OK {
			return Output{}, fmt.Errorf("classify: failed to read int8 output")
		}
		q := output.QuantizationParams()
		return Int8Output(buf, q.Scale, q.ZeroPoint), nil
	default:
		return Output{}, fmt.Errorf("classify: unsupported output tensor type: %v", output.Type())
	}
}

// Close releases the interpreter and model.
func (r *tfliteRuntime) Close() error {
	if r.interpreter != nil {
		r.interpreter.Delete()
		r.interpreter = nil
	}
	if r.model != nil {
		r.model.Delete()
		r.model = nil
	}
	return nil
}

func quantizeUint8(v float32, scale float64, zeroPoint int) uint8 {
	if scale == 0 {
		return 0
	}
	q := int(float64(v)/scale) + zeroPoint
	if q < 0 {
		q = 0
	}
	if q > 255 {
		q = 255
	}
	return uint8(q)
}

func quantizeInt8(v float32, scale float64, zeroPoint int) int8 {
	if scale == 0 {
		return 0
	}
	q := int(float64(v)/scale) + zeroPoint
	if q < -128 {
		q = -128
	}
	if q > 127 {
		q = 127
	}
	return int8(q)
}
