// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// Sample is a single 6-channel inertial reading in physical units.
// Accelerations are m/s², angular rates deg/s. T is seconds on the
// pipeline's monotonic clock.
type Sample struct {
	T float64 `json:"t"`

	Ax float64 `json:"ax"`
	Ay float64 `json:"ay"`
	Az float64 `json:"az"`

	Gx float64 `json:"gx"`
	Gy float64 `json:"gy"`
	Gz float64 `json:"gz"`
}

// Source is anything that can deliver raw accel/gyro readings.
// Implementations: I2C MPU-6050 class devices, serial-attached IMUs,
// and the synthetic source used for bench testing and replay.
type Source interface {
	// Init brings up the device. Must be called before ReadAccelGyro.
	Init() error
	// ReadAccelGyro returns one sample (ax, ay, az in m/s², gx, gy, gz
	// in deg/s). Errors are I/O failures; the caller owns retry policy.
	ReadAccelGyro() (ax, ay, az, gx, gy, gz float64, err error)
	// Close releases the underlying bus or port.
	Close() error
	// Info describes the device for the session device-info snapshot.
	Info() DeviceInfo
}

// DeviceInfo is the hardware snapshot embedded into session summaries.
type DeviceInfo struct {
	Model        string `json:"model"`
	IMU          string `json:"imu"`
	Bus          string `json:"bus"`
	Addr         string `json:"imu_addr"`
	SampleRateHz int    `json:"sample_rate_hz"`
}
