// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display renders the live rep state onto a small SSD1306 OLED
// for rigs without a phone nearby.
package display

import (
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

const updateInterval = 250 * time.Millisecond

// Snapshot is the subset of tick state the display shows.
type Snapshot struct {
	Reps      int
	State     string
	Recording bool
	TutSec    float64
	Lift      string
}

// Display drives one SSD1306 panel from a latest-value cell.
type Display struct {
	dev *ssd1306.Dev

	mu   sync.Mutex
	snap Snapshot
}

// New opens the I2C display and shows a splash line. addr appears only
// in the log and error messages: ssd1306.NewI2C always talks to the
// panel at address 0x3C.
func New(addr uint16) (*Display, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("display: periph host init: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return nil, fmt.Errorf("display: open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("display: init at 0x%02X: %w", addr, err)
	}
	log.Printf("display: initialized at 0x%02X", addr)

	d := &Display{dev: dev}
	d.render(Snapshot{State: "READY"})
	return d, nil
}

// Update stores the latest snapshot; the render loop picks it up.
func (d *Display) Update(s Snapshot) {
	d.mu.Lock()
	d.snap = s
	d.mu.Unlock()
}

// Run redraws at a fixed cadence until the process exits.
func (d *Display) Run() {
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()
	for range ticker.C {
		d.mu.Lock()
		snap := d.snap
		d.mu.Unlock()
		d.render(snap)
	}
}

func (d *Display) render(s Snapshot) {
	bounds := d.dev.Bounds()
	img := image1bit.NewVerticalLSB(bounds)

	rec := " "
	if s.Recording {
		rec = "*"
	}
	drawText(img, 0, 12, fmt.Sprintf("REPS %d %s", s.Reps, rec))
	drawText(img, 0, 28, s.State)
	drawText(img, 0, 44, fmt.Sprintf("TUT %.1fs", s.TutSec))
	if s.Lift != "" {
		drawText(img, 0, 60, s.Lift)
	}

	if err := d.dev.Draw(bounds, img, image.Point{}); err != nil {
		log.Printf("display: draw error: %v", err)
	}
}

func drawText(img *image1bit.VerticalLSB, x, y int, text string) {
	drawer := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}
