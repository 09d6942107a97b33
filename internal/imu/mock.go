// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "math"

// MockSource generates a synthetic lifting pattern: the sensor rests for
// restSec, then repeats a 2 s cycle of a half-second burst of high
// angular rate followed by a 1.5 s pause, approximating repeated reps. Useful for bench
// development without hardware.
type MockSource struct {
	sampleRateHz float64
	restSec      float64

	n int
}

// NewMockSource creates a synthetic source at the given sample rate.
func NewMockSource(sampleRateHz float64) *MockSource {
	return &MockSource{sampleRateHz: sampleRateHz, restSec: 3.0}
}

func (m *MockSource) Init() error { return nil }

func (m *MockSource) ReadAccelGyro() (ax, ay, az, gx, gy, gz float64, err error) {
	t := float64(m.n) / m.sampleRateHz
	m.n++

	// Gravity plus a small vertical wobble.
	az = 9.81
	if t >= m.restSec {
		phase := math.Mod(t-m.restSec, 2.0)
		if phase < 0.5 {
			// Burst: well above any sensible rep threshold.
			gx = 1400.0
			gy = 900.0
			gz = 500.0
			az = 9.81 + 2.0*math.Sin(2*math.Pi*phase)
		}
	}
	return 0, 0, az, gx, gy, gz, nil
}

func (m *MockSource) Close() error { return nil }

func (m *MockSource) Info() DeviceInfo {
	return DeviceInfo{
		Model:        "mock",
		IMU:          "synthetic",
		Bus:          "none",
		Addr:         "n/a",
		SampleRateHz: int(m.sampleRateHz),
	}
}
