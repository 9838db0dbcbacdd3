// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package forward

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/gps_forwarder/internal/gps"
)

// Publisher is the slice of mqtt.Client the mirror needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTForwarder mirrors fixes as retained JSON messages on a topic.
type MQTTForwarder struct {
	pub     Publisher
	topic   string
	timeout time.Duration

	wg sync.WaitGroup
}

// NewMQTTForwarder returns a mirror publishing to topic.
func NewMQTTForwarder(pub Publisher, topic string, timeout time.Duration) *MQTTForwarder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTForwarder{pub: pub, topic: topic, timeout: timeout}
}

func (m *MQTTForwarder) Submit(fix gps.Fix, onOutcome OutcomeFunc) {
	id := uuid.New()
	start := time.Now()
	dest := "mqtt:" + m.topic

	report := func(err error) {
		if onOutcome != nil {
			onOutcome(Outcome{ID: id, Fix: fix, Destination: dest, Err: err, Latency: time.Since(start)})
		}
	}

	payload, err := json.Marshal(fix)
	if err != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			report(fmt.Errorf("forward: marshal fix: %w", err))
		}()
		return
	}

	token := m.pub.Publish(m.topic, 0, true, payload)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if !token.WaitTimeout(m.timeout) {
			report(fmt.Errorf("%w: publish timed out after %s", ErrTransport, m.timeout))
			return
		}
		if err := token.Error(); err != nil {
			report(fmt.Errorf("%w: %v", ErrTransport, err))
			return
		}
		report(nil)
	}()
}

func (m *MQTTForwarder) Wait() { m.wg.Wait() }
