// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/bartrack/internal/app"
	"github.com/relabs-tech/bartrack/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to KEY=VALUE config file (optional)")
	listenHost := flag.String("host", "", "override listen host")
	listenPort := flag.Int("port", 0, "override listen port")
	transport := flag.String("imu", "", "override IMU transport: i2c, serial, or mock")
	classifier := flag.Bool("classifier", false, "enable exercise classification")
	model := flag.String("model", "", "override classifier model path")
	metadata := flag.String("metadata", "", "override classifier metadata path")
	stride := flag.Int("stride", 0, "override classifier inference stride")
	flag.Parse()

	log.Println("starting bartrack trackerd")

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	// Command-line overrides win over the file.
	if *listenHost != "" {
		cfg.ListenHost = *listenHost
	}
	if *listenPort != 0 {
		cfg.ListenPort = *listenPort
	}
	if *transport != "" {
		cfg.IMUTransport = *transport
	}
	if *classifier {
		cfg.ClassifierEnabled = true
	}
	if *model != "" {
		cfg.ClassifierModel = *model
	}
	if *metadata != "" {
		cfg.ClassifierMetadata = *metadata
	}
	if *stride != 0 {
		cfg.ClassifierStride = *stride
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := app.RunTracker(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
