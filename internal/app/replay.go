// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/relabs-tech/bartrack/internal/dispatch"
)

// RunReplay re-reads a recorded raw.jsonl offline, prints every logged
// rep event, recomputes the loss percentages from those events, and
// prints the last logged rep count and TUT. It reads only raw.jsonl,
// not summary.json.
func RunReplay(rawPath string) error {
	f, err := os.Open(rawPath)
	if err != nil {
		return fmt.Errorf("replay: open %s: %w", rawPath, err)
	}
	defer f.Close()

	var (
		updates    int
		lastUpdate dispatch.RepUpdate
		events     []dispatch.RepEvent
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()

		var header struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(line, &header); err != nil {
			continue
		}

		switch header.Type {
		case "rep_update":
			var u dispatch.RepUpdate
			if err := json.Unmarshal(line, &u); err == nil {
				lastUpdate = u
				updates++
			}
		case "rep_event":
			var e dispatch.RepEvent
			if err := json.Unmarshal(line, &e); err == nil {
				events = append(events, e)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("replay: read: %w", err)
	}

	fmt.Printf("replayed %d snapshots, %d rep events\n\n", updates, len(events))

	var peakGyro, peakVel, roms []float64
	for _, e := range events {
		tempo := "    -"
		if e.TempoSec != nil {
			tempo = fmt.Sprintf("%.3f", *e.TempoSec)
		}
		fmt.Printf("rep %2d  t=%7.2f  tempo=%s  peak_gyro=%7.1f  v=%.3f m/s  rom=%.3f m\n",
			e.Rep, e.T, tempo, e.PeakGyro, e.PeakVelocityMs, e.RomM)
		peakGyro = append(peakGyro, e.PeakGyro)
		peakVel = append(peakVel, e.PeakVelocityMs)
		roms = append(roms, e.RomM)
	}

	fmt.Println()
	printLoss("output_loss_pct", peakGyro)
	printLoss("velocity_loss_pct", peakVel)
	printLoss("rom_loss_pct", roms)
	if updates > 0 {
		fmt.Printf("final state: reps=%d tut=%.2fs\n", lastUpdate.Reps, lastUpdate.TutSec)
	}
	return nil
}

func printLoss(name string, values []float64) {
	if len(values) < 2 || values[0] <= 0 {
		fmt.Printf("%s: n/a\n", name)
		return
	}
	loss := (1.0 - values[len(values)-1]/values[0]) * 100.0
	if loss < 0 {
		loss = 0
	}
	if loss > 100 {
		loss = 100
	}
	fmt.Printf("%s: %.2f\n", name, loss)
}
