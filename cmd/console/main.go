// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/bartrack/internal/app"
)

func main() {
	host := flag.String("host", "127.0.0.1", "trackerd host")
	port := flag.Int("port", 8765, "trackerd port")
	command := flag.String("cmd", "", "command to send before streaming (start, stop, reset)")
	flag.Parse()

	log.Println("starting bartrack console")

	if err := app.RunConsole(*host, *port, *command); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
