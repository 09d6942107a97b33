// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/gorilla/websocket"
)

// RunConsole attaches to a running trackerd as a consumer and prints
// the live stream. When command is non-empty, it is sent first.
func RunConsole(host string, port int, command string) error {
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", host, port), Path: "/ws"}
	log.Printf("console: connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("console: dial: %w", err)
	}
	defer conn.Close()

	if command != "" {
		cmd := map[string]string{"type": "cmd", "action": command}
		if err := conn.WriteJSON(cmd); err != nil {
			return fmt.Errorf("console: send %s: %w", command, err)
		}
		log.Printf("console: sent command %q", command)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("console: read: %w", err)
		}

		var header struct {
			Type  string  `json:"type"`
			T     float64 `json:"t"`
			Reps  int     `json:"reps"`
			State string  `json:"state"`
			Rep   int     `json:"rep"`
		}
		if err := json.Unmarshal(raw, &header); err != nil {
			continue
		}

		switch header.Type {
		case "rep_update":
			fmt.Printf("t=%7.2f  reps=%3d  state=%s\n", header.T, header.Reps, header.State)
		case "rep_event":
			fmt.Printf("t=%7.2f  REP %d\n", header.T, header.Rep)
		default:
			fmt.Printf("%s\n", raw)
		}
	}
}
