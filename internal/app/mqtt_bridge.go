// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bartrack/internal/config"
	"github.com/relabs-tech/bartrack/internal/dispatch"
)

// attachMQTTBridge mirrors outbound tick snapshots and rep events onto
// MQTT topics so dashboards that already speak MQTT can consume them
// without a websocket client. Publishes are fire-and-forget; a slow
// broker never stalls the pipeline.
func attachMQTTBridge(cfg *config.Config, hub *dispatch.Hub) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("trackerd: connected to MQTT broker at %s", cfg.MQTTBroker)

	hub.AddTap(func(msg any) {
		var topic string
		var retain bool
		switch msg.(type) {
		case *dispatch.RepUpdate:
			topic = cfg.TopicRepUpdates
			retain = true
		case *dispatch.RepEvent:
			topic = cfg.TopicRepEvents
		default:
			return
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			log.Printf("trackerd: MQTT marshal error: %v", err)
			return
		}
		client.Publish(topic, 0, retain, payload)
	})
	return nil
}
