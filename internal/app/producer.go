// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/sensorscope/internal/config"
	"github.com/relabs-tech/sensorscope/internal/logging"
	"github.com/relabs-tech/sensorscope/internal/sensors"
)

const publishTimeout = 2 * time.Second

// ErrNothingToPublish is returned by Producer.Start when no sensor is present.
var ErrNothingToPublish = errors.New("no sensor available to publish")

// Producer publishes every available sensor of a local source to MQTT:
// retained Info on <topic>/info and one JSON message per sample on <topic>.
type Producer struct {
	client mqtt.Client
	src    sensors.Source
	topics map[sensors.Kind]string
	rate   sensors.Rate
	log    *zap.SugaredLogger

	mu        sync.Mutex
	subs      []sensors.Subscription
	announced []sensors.Kind
	wg        sync.WaitGroup
}

func NewProducer(client mqtt.Client, src sensors.Source, topics map[sensors.Kind]string, rate sensors.Rate) *Producer {
	return &Producer{
		client: client,
		src:    src,
		topics: topics,
		rate:   rate,
		log:    logging.Named("producer"),
	}
}

// Start announces and subscribes every available sensor. It returns the
// kinds being published.
func (p *Producer) Start() ([]sensors.Kind, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, kind := range sensors.Kinds {
		topic, ok := p.topics[kind]
		if !ok {
			continue
		}
		info, err := p.src.Info(kind)
		if err != nil {
			p.log.Warnw("sensor unavailable, not publishing", "kind", kind, "error", err)
			continue
		}

		payload, err := json.Marshal(info)
		if err != nil {
			return nil, fmt.Errorf("producer: marshal %s info: %w", kind, err)
		}
		if err := p.publish(sensors.InfoTopic(topic), 1, true, payload); err != nil {
			p.stopLocked()
			return nil, fmt.Errorf("producer: announce %s: %w", kind, err)
		}

		sub, err := p.src.Subscribe(kind, p.rate)
		if err != nil {
			p.log.Warnw("subscribe error", "kind", kind, "error", err)
			_ = p.publish(sensors.InfoTopic(topic), 1, true, nil)
			continue
		}
		p.subs = append(p.subs, sub)
		p.announced = append(p.announced, kind)
		p.wg.Add(1)
		go p.pump(sub, topic)
		p.log.Infow("publishing sensor", "kind", kind, "name", info.Name, "topic", topic, "rate", p.rate)
	}

	if len(p.announced) == 0 {
		return nil, ErrNothingToPublish
	}
	return append([]sensors.Kind(nil), p.announced...), nil
}

func (p *Producer) pump(sub sensors.Subscription, topic string) {
	defer p.wg.Done()
	var published int
	for sample := range sub.C() {
		payload, err := json.Marshal(sample)
		if err != nil {
			p.log.Warnw("json marshal error", "kind", sample.Kind, "error", err)
			continue
		}
		if err := p.publish(topic, 0, false, payload); err != nil {
			p.log.Warnw("MQTT publish error", "topic", topic, "error", err)
			continue
		}
		published++
		if published%100 == 0 {
			p.log.Debugw("tick", "kind", sample.Kind, "published", published, "values", sample.Values)
		}
	}
}

// Stop closes every subscription, waits for pending publishes and clears
// the retained Info so consumers see the sensors go away.
func (p *Producer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Producer) stopLocked() {
	for _, sub := range p.subs {
		if err := sub.Close(); err != nil {
			p.log.Warnw("close subscription", "kind", sub.Kind(), "error", err)
		}
	}
	p.wg.Wait()

	for _, kind := range p.announced {
		if err := p.publish(sensors.InfoTopic(p.topics[kind]), 1, true, nil); err != nil {
			p.log.Warnw("withdraw info", "kind", kind, "error", err)
		}
	}
	p.subs = nil
	p.announced = nil
}

func (p *Producer) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	return token.Error()
}

// RunProducer publishes the local sensors until ctx is cancelled.
func RunProducer(ctx context.Context) error {
	cfg := config.Get()
	log := logging.Named("producer")

	if cfg.SensorSource == config.SourceMQTT {
		return fmt.Errorf("producer: SENSOR_SOURCE must be %q or %q", config.SourceHardware, config.SourceMock)
	}

	src, release, err := openSource(cfg, nil)
	if err != nil {
		return err
	}
	defer release()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	producer := NewProducer(client, src, cfg.Topics(), cfg.SampleRate)
	kinds, err := producer.Start()
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	log.Infow("connected to MQTT, publish loop running", "kinds", kinds)

	<-ctx.Done()
	log.Infow("stopping producer")
	producer.Stop()
	return nil
}
