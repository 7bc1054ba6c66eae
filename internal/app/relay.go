// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/sensorscope/internal/logging"
	"github.com/relabs-tech/sensorscope/internal/sensors"
)

const relayTimeout = 2 * time.Second

// modeReader is the part of the selector the relay announces from.
type modeReader interface {
	Mode() sensors.Kind
}

// modeRelay shares the selected mode between binaries over a retained
// MQTT topic, so the OLED follows what the web or console user picked.
// Announced modes are published one at a time, in order, by a single
// goroutine; Close stops it.
type modeRelay struct {
	client mqtt.Client
	topic  string
	log    *zap.SugaredLogger

	mu        sync.Mutex
	pending   chan sensors.Kind
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

func newModeRelay(client mqtt.Client, topic string) *modeRelay {
	r := &modeRelay{
		client:  client,
		topic:   topic,
		log:     logging.Named("relay"),
		pending: make(chan sensors.Kind, 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go r.loop()
	return r
}

// Announce queues the current mode of sel. The mode is read and queued
// under one lock, so the last announcement carries the latest selection.
// A queued mode not yet published is replaced. A nil relay is a no-op.
func (r *modeRelay) Announce(sel modeReader) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	mode := sel.Mode()
	if !mode.Valid() {
		return
	}
	select {
	case <-r.pending:
	default:
	}
	r.pending <- mode
}

func (r *modeRelay) loop() {
	defer close(r.exited)
	for {
		select {
		case mode := <-r.pending:
			r.Publish(mode)
		case <-r.done:
			select {
			case mode := <-r.pending:
				r.Publish(mode)
			default:
			}
			return
		}
	}
}

// Close publishes the last queued mode, if any, and stops the relay.
func (r *modeRelay) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() { close(r.done) })
	<-r.exited
}

// Publish announces mode. A nil relay is a no-op.
func (r *modeRelay) Publish(mode sensors.Kind) {
	if r == nil || r.client == nil {
		return
	}
	token := r.client.Publish(r.topic, 1, true, mode.String())
	if !token.WaitTimeout(relayTimeout) {
		r.log.Warnw("publish mode timed out", "topic", r.topic, "mode", mode)
		return
	}
	if err := token.Error(); err != nil {
		r.log.Warnw("publish mode", "topic", r.topic, "mode", mode, "error", err)
		return
	}
	r.log.Debugw("mode published", "topic", r.topic, "mode", mode)
}

// Follow selects every mode announced on the topic.
func (r *modeRelay) Follow(sel modeSelector) error {
	token := r.client.Subscribe(r.topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		mode, err := sensors.ParseKind(string(msg.Payload()))
		if err != nil || !mode.Valid() {
			r.log.Warnw("ignoring mode", "payload", string(msg.Payload()), "error", err)
			return
		}
		if err := sel.SelectMode(mode); err != nil {
			r.log.Warnw("follow mode", "mode", mode, "error", err)
			return
		}
		r.log.Infow("following mode", "mode", mode)
	})
	if !token.WaitTimeout(relayTimeout) {
		return fmt.Errorf("relay: subscribe %s: timeout", r.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("relay: subscribe %s: %w", r.topic, err)
	}
	r.log.Infow("subscribed to mode topic", "topic", r.topic)
	return nil
}
