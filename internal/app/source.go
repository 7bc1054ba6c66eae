// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/sensorscope/internal/config"
	"github.com/relabs-tech/sensorscope/internal/logging"
	"github.com/relabs-tech/sensorscope/internal/sensors"
)

const mqttConnectTimeout = 10 * time.Second

// connectMQTT connects to broker and returns the client. Callers disconnect.
func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	log := logging.Named("mqtt")

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		// handlers may subscribe (mode relay), which blocks the router otherwise
		SetOrderMatters(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnw("connection lost", "broker", broker, "error", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt: connect %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", broker, err)
	}
	log.Infow("connected to MQTT broker", "broker", broker, "client_id", clientID)
	return client, nil
}

// openSource builds the sensor source named by cfg.SensorSource. client is
// only used by the mqtt source and may be nil otherwise. The returned func
// releases the source.
func openSource(cfg *config.Config, client mqtt.Client) (sensors.Source, func(), error) {
	log := logging.Named("source")

	switch cfg.SensorSource {
	case config.SourceMock:
		log.Infow("using mock sensors")
		return sensors.NewMockSource(), func() {}, nil

	case config.SourceHardware:
		hw, err := sensors.NewHardwareSource(cfg.Hardware())
		if err != nil {
			return nil, nil, fmt.Errorf("source: %w", err)
		}
		for _, k := range sensors.Kinds {
			if _, err := hw.Info(k); err != nil {
				log.Warnw("sensor unavailable", "kind", k, "error", err)
			}
		}
		return hw, func() {
			if err := hw.Close(); err != nil {
				log.Warnw("close hardware", "error", err)
			}
		}, nil

	case config.SourceMQTT:
		if client == nil {
			return nil, nil, fmt.Errorf("source: mqtt source needs a broker connection")
		}
		src, err := sensors.NewMQTTSource(client, cfg.Topics())
		if err != nil {
			return nil, nil, fmt.Errorf("source: %w", err)
		}
		log.Infow("using MQTT sensors", "broker", cfg.MQTTBroker)
		return src, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("source: unknown sensor source %q", cfg.SensorSource)
	}
}

type modeSelector interface {
	SelectMode(mode sensors.Kind) error
}

// selectInitial selects cfg.InitialMode, falling back to the first
// available sensor when it is absent.
func selectInitial(sel modeSelector, src sensors.Source, mode sensors.Kind) sensors.Kind {
	log := logging.Named("source")

	candidates := append([]sensors.Kind{mode}, sensors.Kinds...)
	for _, k := range candidates {
		if !k.Valid() || !sensors.Available(src, k) {
			continue
		}
		if err := sel.SelectMode(k); err != nil {
			log.Warnw("initial selection failed", "mode", k, "error", err)
			continue
		}
		return k
	}
	log.Warnw("no sensor available, starting without a mode")
	return sensors.None
}
