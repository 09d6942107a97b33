// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandParsing(t *testing.T) {
	cases := []struct {
		raw    string
		isCmd  bool
		action string
	}{
		{`{"type":"cmd","action":"start"}`, true, "start"},
		{`{"type":"command","action":"stop"}`, true, "stop"},
		{`{"type":"rep_update"}`, false, ""},
		{`{"type":"cmd","action":"get_session_raw","session_id":"x","limit":500,"stride":2}`, true, "get_session_raw"},
	}
	for _, tc := range cases {
		var cmd Command
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &cmd))
		assert.Equal(t, tc.isCmd, cmd.IsCommand())
		assert.Equal(t, tc.action, cmd.Action)
	}
}

func TestRepUpdateNullableFields(t *testing.T) {
	u := RepUpdate{Type: "rep_update", State: StateWaiting}
	data, err := json.Marshal(&u)
	require.NoError(t, err)

	// Unset rollups serialize as explicit nulls, not omissions: the
	// consumer schema keys on their presence.
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"avg_tempo_sec", "output_loss_pct", "velocity_loss_pct", "rom_loss_pct", "avg_rom_m"} {
		v, present := m[key]
		assert.True(t, present, "%s missing", key)
		assert.Nil(t, v, "%s should be null", key)
	}
	assert.Equal(t, "WAITING", m["state"])
}

func TestRepEventRoundTrip(t *testing.T) {
	tempo := 1.25
	e := RepEvent{
		Type: "rep_event", Rep: 2, T: 3.42,
		TempoSec: &tempo, Confidence: 0.8,
		PeakGyro: 1534.2, PeakSpeedProxy: 1534.2,
		PeakVelocityMs: 0.92, RomM: 0.48,
	}
	data, err := json.Marshal(&e)
	require.NoError(t, err)

	var back RepEvent
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e, back)
}
