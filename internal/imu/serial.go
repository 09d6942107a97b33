// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"bufio"
	"fmt"
	"io"
	"log"

	serial "github.com/jacobsa/go-serial/serial"
)

// WitMotion-style binary frame layout: 0x55 <type> <8 data bytes> <checksum>.
const (
	witFrameHeader = 0x55
	witFrameAccel  = 0x51
	witFrameGyro   = 0x52
	witFrameLen    = 11

	witAccelFullScaleG   = 16.0
	witGyroFullScaleDps  = 2000.0
)

// SerialIMU reads a serial-attached IMU that emits WitMotion-style
// accel/gyro frames. Acceleration and angular-rate frames arrive
// interleaved; ReadAccelGyro blocks until it has one of each.
type SerialIMU struct {
	portName string
	baudRate uint

	port   io.ReadWriteCloser
	reader *bufio.Reader
}

// NewSerialIMU creates an uninitialized serial IMU source.
func NewSerialIMU(portName string, baudRate int) *SerialIMU {
	return &SerialIMU{portName: portName, baudRate: uint(baudRate)}
}

// Init opens the serial port.
func (s *SerialIMU) Init() error {
	opts := serial.OpenOptions{
		PortName:              s.portName,
		BaudRate:              s.baudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return fmt.Errorf("imu: open serial port %s: %w", s.portName, err)
	}
	s.port = port
	s.reader = bufio.NewReader(port)
	log.Printf("imu: serial port opened on %s at %d baud", s.portName, s.baudRate)
	return nil
}

// ReadAccelGyro consumes frames until both an accel and a gyro frame
// have been seen, then returns the pair in physical units.
func (s *SerialIMU) ReadAccelGyro() (ax, ay, az, gx, gy, gz float64, err error) {
	if s.reader == nil {
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("imu: serial port not initialized")
	}

	var haveAccel, haveGyro bool
	for !(haveAccel && haveGyro) {
		frame, err := s.readFrame()
		if err != nil {
			return 0, 0, 0, 0, 0, 0, err
		}
		x := float64(int16(uint16(frame[3])<<8 | uint16(frame[2])))
		y := float64(int16(uint16(frame[5])<<8 | uint16(frame[4])))
		z := float64(int16(uint16(frame[7])<<8 | uint16(frame[6])))

		switch frame[1] {
		case witFrameAccel:
			scale := witAccelFullScaleG * gravityMPerSSq / 32768.0
			ax, ay, az = x*scale, y*scale, z*scale
			haveAccel = true
		case witFrameGyro:
			scale := witGyroFullScaleDps / 32768.0
			gx, gy, gz = x*scale, y*scale, z*scale
			haveGyro = true
		}
	}
	return ax, ay, az, gx, gy, gz, nil
}

// readFrame scans for the header byte, reads a full frame, and
// validates the additive checksum. Bad frames are skipped, not errors.
func (s *SerialIMU) readFrame() ([]byte, error) {
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("imu: serial read: %w", err)
		}
		if b != witFrameHeader {
			continue
		}

		frame := make([]byte, witFrameLen)
		frame[0] = b
		if _, err := io.ReadFull(s.reader, frame[1:]); err != nil {
			return nil, fmt.Errorf("imu: serial read frame: %w", err)
		}

		var sum byte
		for _, v := range frame[:witFrameLen-1] {
			sum += v
		}
		if sum != frame[witFrameLen-1] {
			continue // resync on checksum mismatch
		}
		return frame, nil
	}
}

// Close closes the serial port.
func (s *SerialIMU) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.reader = nil
	return err
}

// Info describes the device for session summaries.
func (s *SerialIMU) Info() DeviceInfo {
	return DeviceInfo{
		Model:        "serial",
		IMU:          "WitMotion-compatible",
		Bus:          s.portName,
		Addr:         "n/a",
		SampleRateHz: 50,
	}
}
