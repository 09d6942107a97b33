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
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatalf("usage: replay <path/to/raw.jsonl>")
	}

	if err := app.RunReplay(flag.Arg(0)); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
