// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dispatch

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Heartbeat: ping every pingPeriod, expect traffic within pongWait.
	pingPeriod = 20 * time.Second
	pongWait   = 20 * time.Second

	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local gym-network deployment, any origin may attach
	},
}

// CommandHandler processes one parsed control command and returns the
// messages to send back to the issuing consumer, in order.
type CommandHandler interface {
	HandleCommand(cmd *Command) []any
}

// Hub owns the consumer set and the last-status replay cell. Broadcast
// drops consumers whose send fails; there is no queueing or retry.
type Hub struct {
	handler CommandHandler

	mu         sync.Mutex
	consumers  map[*consumer]struct{}
	lastStatus *Status
	taps       []func(any)
}

type consumer struct {
	conn *websocket.Conn
	// Gorilla allows one concurrent writer; broadcasts and command
	// replies race, so every write holds this.
	writeMu sync.Mutex
}

// NewHub creates a hub routing commands to handler.
func NewHub(handler CommandHandler) *Hub {
	return &Hub{
		handler:   handler,
		consumers: make(map[*consumer]struct{}),
		lastStatus: &Status{
			Type:  "status",
			State: StateWaiting,
		},
	}
}

// ServeWS upgrades one consumer connection and runs its read loop until
// close. Registered as an http.HandlerFunc.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("dispatch: websocket upgrade error: %v", err)
		return
	}

	c := &consumer{conn: conn}

	// Capture the last-known state in the same critical section that adds
	// the consumer to the broadcast set, so the replayed snapshot is never
	// newer than later broadcasts. The replay is sent after unlocking.
	h.mu.Lock()
	replay := *h.lastStatus
	h.consumers[c] = struct{}{}
	h.mu.Unlock()

	log.Printf("dispatch: consumer connected (%s)", conn.RemoteAddr())
	if err := c.send(replay); err != nil {
		h.drop(c)
		return
	}

	go h.pingLoop(c)
	h.readLoop(c)
}

// readLoop services inbound frames until the connection dies.
// Unparseable frames and non-command messages are dropped silently.
func (h *Hub) readLoop(c *consumer) {
	defer h.drop(c)

	c.conn.SetReadDeadline(time.Now().Add(pongWait + pingPeriod))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait + pingPeriod))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait + pingPeriod))

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		if !cmd.IsCommand() || cmd.Action == "" {
			continue
		}
		log.Printf("dispatch: command received: %s", cmd.Action)

		for _, msg := range h.handler.HandleCommand(&cmd) {
			if err := c.send(msg); err != nil {
				return
			}
		}
	}
}

// pingLoop keeps the heartbeat going; a failed ping write ends the
// consumer via the read loop's deadline.
func (h *Hub) pingLoop(c *consumer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		c.writeMu.Lock()
		err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// AddTap registers a sink that observes every broadcast message, used
// by the MQTT bridge and the status display. Taps must not block.
// Not safe to call once Broadcast is running.
func (h *Hub) AddTap(fn func(any)) {
	h.taps = append(h.taps, fn)
}

// Broadcast fans one message out to every consumer, dropping any whose
// send fails.
func (h *Hub) Broadcast(msg any) {
	for _, tap := range h.taps {
		tap(msg)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("dispatch: broadcast marshal error: %v", err)
		return
	}

	h.mu.Lock()
	targets := make([]*consumer, 0, len(h.consumers))
	for c := range h.consumers {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.sendRaw(data); err != nil {
			h.drop(c)
		}
	}
}

// SetStatus updates the replay cell shown to newly connecting
// consumers.
func (h *Hub) SetStatus(s *Status) {
	h.mu.Lock()
	h.lastStatus = s
	h.mu.Unlock()
}

// ConsumerCount returns the live consumer count, for diagnostics.
func (h *Hub) ConsumerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.consumers)
}

// drop removes a consumer and closes its connection. Close is silent.
func (h *Hub) drop(c *consumer) {
	h.mu.Lock()
	_, present := h.consumers[c]
	delete(h.consumers, c)
	h.mu.Unlock()

	if present {
		c.conn.Close()
		log.Printf("dispatch: consumer disconnected")
	}
}

func (c *consumer) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.sendRaw(data)
}

func (c *consumer) sendRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
