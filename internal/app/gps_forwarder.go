// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gps_forwarder/internal/config"
	"github.com/relabs-tech/gps_forwarder/internal/forward"
	"github.com/relabs-tech/gps_forwarder/internal/logger"
	"github.com/relabs-tech/gps_forwarder/internal/monitor"
	"github.com/relabs-tech/gps_forwarder/internal/pipeline"
)

// RunGPSForwarder opens the GPS source, decodes position fixes and forwards
// each one to the collector (and the MQTT mirror when a broker is
// configured) until ctx is cancelled or the source ends.
func RunGPSForwarder(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}
	_, err := runForwarder(ctx, cfg)
	return err
}

// runForwarder runs one session with cfg and returns its final counters.
func runForwarder(ctx context.Context, cfg *config.Config) (pipeline.Stats, error) {
	// stops the hub, web server and display once the session is over
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logger.Component("gps_forwarder")

	// ---- 1) Outbound side ----
	httpFwd, err := forward.NewHTTPForwarder(forward.HTTPConfig{
		URL:     cfg.ForwardURL,
		Timeout: cfg.ForwardTimeout(),
	}, logger.Component("forward"))
	if err != nil {
		return pipeline.Stats{}, err
	}
	fwd := forward.Fanout{httpFwd}
	log.Info().Str("url", httpFwd.URL()).Msg("gps_forwarder: forwarding fixes to collector")

	if cfg.MQTTBroker != "" {
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientIDForwarder).
			SetAutoReconnect(true)

		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return pipeline.Stats{}, fmt.Errorf("mqtt connect: %w", token.Error())
		}
		defer client.Disconnect(250)

		fwd = append(fwd, forward.NewMQTTForwarder(client, cfg.TopicGPS, cfg.ForwardTimeout()))
		log.Info().Str("broker", cfg.MQTTBroker).Str("topic", cfg.TopicGPS).Msg("gps_forwarder: mirroring fixes to MQTT")
	}

	// ---- 2) Inbound side ----
	src, err := openSource(cfg)
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer src.Close()
	log.Info().Str("source", src.desc).Msg("gps_forwarder: reading NMEA")

	// ---- 3) Session ----
	hub := monitor.NewHub()
	p := pipeline.New(fwd, pipeline.Options{
		MaxPending: cfg.GPSMaxLineBytes,
		Observer:   hub,
		Log:        logger.Component("pipeline"),
	})
	hub.SetStatsSource(p.Stats)
	if src.port != nil {
		hub.SetPort(src.port)
	}

	// background helpers end with ctx
	var bg sync.WaitGroup
	defer func() {
		cancel()
		bg.Wait()
	}()

	bg.Add(1)
	go func() {
		defer bg.Done()
		hub.Run(ctx, time.Duration(cfg.RawClearInterval)*time.Millisecond)
	}()

	if cfg.WebServerPort > 0 {
		startWeb(ctx, &bg, cfg.WebServerPort, hub)
	}
	if cfg.DisplayEnabled {
		bg.Add(1)
		go func() {
			defer bg.Done()
			if err := RunDisplay(ctx, cfg, hub); err != nil {
				log.Error().Err(err).Msg("gps_forwarder: display stopped")
			}
		}()
	}

	// ---- 4) Read until the source ends ----

	// a blocked serial read only returns once the port is closed
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			hub.SetPort(nil)
			src.Close()
		case <-done:
		}
	}()

	runErr := p.Run(ctx, src, cfg.GPSReadSize)
	hub.SetPort(nil)

	// outcomes still count until the session is closed
	log.Info().Msg("gps_forwarder: waiting for in-flight submissions")
	fwd.Wait()
	p.Close()

	st := p.Stats()
	log.Info().
		Uint64("lines", st.Lines).
		Uint64("fixes", st.Fixes).
		Uint64("delivered", st.Delivered).
		Uint64("failed", st.Failed).
		Uint64("rejected", st.Rejected).
		Uint64("invalid", st.Invalid).
		Msg("gps_forwarder: session ended")

	return st, runErr
}
