// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/gps_forwarder/internal/app"
	"github.com/relabs-tech/gps_forwarder/internal/config"
	"github.com/relabs-tech/gps_forwarder/internal/logger"
)

func main() {
	configPath := flag.String("config", "gps_config.txt", "path to the KEY=VALUE config file")
	replay := flag.String("replay", "", "read a captured NMEA byte log instead of the serial port")
	flag.Parse()

	log.Println("starting gps forwarder (NMEA GGA → HTTP collector)")

	var overrides []config.Override
	if *replay != "" {
		overrides = append(overrides, config.WithReplayFile(*replay))
	}
	if err := config.InitGlobal(*configPath, overrides...); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg := config.Get()
	logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "gps_forwarder",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunGPSForwarder(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
