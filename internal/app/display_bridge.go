// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"github.com/relabs-tech/bartrack/internal/config"
	"github.com/relabs-tech/bartrack/internal/dispatch"
	"github.com/relabs-tech/bartrack/internal/display"
)

// attachDisplay feeds the OLED status panel from broadcast snapshots.
func attachDisplay(cfg *config.Config, hub *dispatch.Hub) error {
	d, err := display.New(cfg.DisplayI2CAddr)
	if err != nil {
		return err
	}
	go d.Run()

	hub.AddTap(func(msg any) {
		update, ok := msg.(*dispatch.RepUpdate)
		if !ok {
			return
		}
		d.Update(display.Snapshot{
			Reps:      update.Reps,
			State:     update.State,
			Recording: update.Recording,
			TutSec:    update.TutSec,
			Lift:      update.DetectedLift,
		})
	})
	return nil
}
