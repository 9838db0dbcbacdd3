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
	flag.Parse()

	log.Println("starting gps console (MQTT subscriber)")

	if err := config.InitGlobal(*configPath, config.WithoutSerial()); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg := config.Get()
	logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "console_mqtt",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
