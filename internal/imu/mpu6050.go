// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/binary"
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// MPU-6050 register map (subset used here).
const (
	regSmplrtDiv   = 0x19
	regConfig      = 0x1A
	regGyroConfig  = 0x1B
	regAccelConfig = 0x1C
	regAccelXoutH  = 0x3B
	regPwrMgmt1    = 0x6B
	regWhoAmI      = 0x75

	whoAmIMPU6050 = 0x68
)

// Full-scale sensitivities per range code.
var (
	accelLSBPerG   = []float64{16384, 8192, 4096, 2048}
	gyroLSBPerDps  = []float64{131, 65.5, 32.8, 16.4}
	accelRangeG    = []int{2, 4, 8, 16}
	gyroRangeDps   = []int{250, 500, 1000, 2000}
	gravityMPerSSq = 9.80665
)

// MPU6050 reads an MPU-6050 class IMU over I2C.
type MPU6050 struct {
	busName      string
	addr         uint16
	accelRange   byte
	gyroRange    byte
	sampleRateHz int

	bus i2c.BusCloser
	dev i2c.Dev

	accelScale float64 // LSB -> m/s²
	gyroScale  float64 // LSB -> deg/s
}

// NewMPU6050 creates an uninitialized driver. busName "" picks the first
// available I2C bus, matching i2creg semantics.
func NewMPU6050(busName string, addr uint16, accelRange, gyroRange byte, sampleRateHz int) *MPU6050 {
	return &MPU6050{
		busName:      busName,
		addr:         addr,
		accelRange:   accelRange,
		gyroRange:    gyroRange,
		sampleRateHz: sampleRateHz,
	}
}

// Init opens the bus, verifies the device identity, and configures
// ranges and the sample-rate divider.
func (m *MPU6050) Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("imu: periph host init: %w", err)
	}

	bus, err := i2creg.Open(m.busName)
	if err != nil {
		return fmt.Errorf("imu: open I2C bus %q: %w", m.busName, err)
	}
	m.bus = bus
	m.dev = i2c.Dev{Bus: bus, Addr: m.addr}

	id, err := m.readReg(regWhoAmI)
	if err != nil {
		m.closeBus()
		return fmt.Errorf("imu: WHO_AM_I read: %w", err)
	}
	if id != whoAmIMPU6050 {
		m.closeBus()
		return fmt.Errorf("imu: unexpected WHO_AM_I 0x%02X at 0x%02X", id, m.addr)
	}

	// Wake from sleep, clock from gyro X PLL.
	if err := m.writeReg(regPwrMgmt1, 0x01); err != nil {
		m.closeBus()
		return fmt.Errorf("imu: power management: %w", err)
	}

	if int(m.accelRange) >= len(accelLSBPerG) || int(m.gyroRange) >= len(gyroLSBPerDps) {
		m.closeBus()
		return fmt.Errorf("imu: range codes out of bounds: accel=%d gyro=%d", m.accelRange, m.gyroRange)
	}
	if err := m.writeReg(regAccelConfig, m.accelRange<<3); err != nil {
		m.closeBus()
		return fmt.Errorf("imu: set accel range: %w", err)
	}
	log.Printf("imu: accelerometer range set to %d (±%dg)", m.accelRange, accelRangeG[m.accelRange])

	if err := m.writeReg(regGyroConfig, m.gyroRange<<3); err != nil {
		m.closeBus()
		return fmt.Errorf("imu: set gyro range: %w", err)
	}
	log.Printf("imu: gyroscope range set to %d (±%d°/s)", m.gyroRange, gyroRangeDps[m.gyroRange])

	// DLPF at 44 Hz (cfg 3) gives a 1 kHz internal rate; divide down to
	// the requested output rate.
	if err := m.writeReg(regConfig, 0x03); err != nil {
		m.closeBus()
		return fmt.Errorf("imu: set DLPF config: %w", err)
	}
	div := byte(0)
	if m.sampleRateHz > 0 && m.sampleRateHz <= 1000 {
		div = byte(1000/m.sampleRateHz - 1)
	}
	if err := m.writeReg(regSmplrtDiv, div); err != nil {
		m.closeBus()
		return fmt.Errorf("imu: set sample rate divider: %w", err)
	}
	log.Printf("imu: sample rate divider set to %d (output rate: %d Hz)", div, 1000/(1+int(div)))

	m.accelScale = gravityMPerSSq / accelLSBPerG[m.accelRange]
	m.gyroScale = 1.0 / gyroLSBPerDps[m.gyroRange]
	return nil
}

// ReadAccelGyro reads the 14-byte sensor block in one transaction and
// converts to physical units. Temperature bytes are skipped.
func (m *MPU6050) ReadAccelGyro() (ax, ay, az, gx, gy, gz float64, err error) {
	var buf [14]byte
	if err = m.dev.Tx([]byte{regAccelXoutH}, buf[:]); err != nil {
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("imu: burst read: %w", err)
	}

	rawAx := int16(binary.BigEndian.Uint16(buf[0:2]))
	rawAy := int16(binary.BigEndian.Uint16(buf[2:4]))
	rawAz := int16(binary.BigEndian.Uint16(buf[4:6]))
	rawGx := int16(binary.BigEndian.Uint16(buf[8:10]))
	rawGy := int16(binary.BigEndian.Uint16(buf[10:12]))
	rawGz := int16(binary.BigEndian.Uint16(buf[12:14]))

	ax = float64(rawAx) * m.accelScale
	ay = float64(rawAy) * m.accelScale
	az = float64(rawAz) * m.accelScale
	gx = float64(rawGx) * m.gyroScale
	gy = float64(rawGy) * m.gyroScale
	gz = float64(rawGz) * m.gyroScale
	return ax, ay, az, gx, gy, gz, nil
}

// Close releases the I2C bus.
func (m *MPU6050) Close() error {
	return m.closeBus()
}

func (m *MPU6050) closeBus() error {
	if m.bus == nil {
		return nil
	}
	err := m.bus.Close()
	m.bus = nil
	return err
}

// Info describes the device for session summaries.
func (m *MPU6050) Info() DeviceInfo {
	return DeviceInfo{
		Model:        "mpu6050",
		IMU:          "MPU-6050",
		Bus:          m.busName,
		Addr:         fmt.Sprintf("0x%02X", m.addr),
		SampleRateHz: m.sampleRateHz,
	}
}

func (m *MPU6050) readReg(reg byte) (byte, error) {
	var out [1]byte
	if err := m.dev.Tx([]byte{reg}, out[:]); err != nil {
		return 0, err
	}
	return out[0], nil
}

func (m *MPU6050) writeReg(reg, val byte) error {
	return m.dev.Tx([]byte{reg, val}, nil)
}
