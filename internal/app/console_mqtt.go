// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gps_forwarder/internal/config"
	"github.com/relabs-tech/gps_forwarder/internal/gps"
	"github.com/relabs-tech/gps_forwarder/internal/logger"
)

// RunConsoleMQTT prints every fix mirrored on the GPS topic until ctx is
// cancelled.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not set")
	}
	log := logger.Component("console")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Info().Str("broker", cfg.MQTTBroker).Msg("console: connected to MQTT broker")

	token := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := printFix(os.Stdout, msg.Payload()); err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("console: gps unmarshal error")
		}
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Info().Str("topic", cfg.TopicGPS).Msg("console: subscribed")

	<-ctx.Done()
	log.Info().Msg("console: shutting down")
	return nil
}

func printFix(w io.Writer, payload []byte) error {
	var f gps.Fix
	if err := json.Unmarshal(payload, &f); err != nil {
		return err
	}
	t := f.Time
	if t == "" {
		t = "--:--:--"
	}
	_, err := fmt.Fprintf(w, "[GPS ]  time=%s lat=%s lon=%s\n", t, f.LatitudeString(), f.LongitudeString())
	return err
}
