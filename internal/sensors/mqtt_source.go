// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/sensorscope/internal/logging"
)

// InfoTopic is where a producer announces the metadata of the sensor
// publishing on topic. Info messages are retained.
func InfoTopic(topic string) string {
	return topic + "/info"
}

// MQTTSource delivers samples published by a producer on one topic per kind.
// A kind is available once its retained info message has been received.
type MQTTSource struct {
	client  mqtt.Client
	topics  map[Kind]string
	timeout time.Duration
	log     *zap.SugaredLogger

	mu   sync.RWMutex
	info map[Kind]Info
}

// NewMQTTSource subscribes to the info topic of every kind in topics.
// client must already be connected.
func NewMQTTSource(client mqtt.Client, topics map[Kind]string) (*MQTTSource, error) {
	m := &MQTTSource{
		client:  client,
		topics:  topics,
		timeout: 5 * time.Second,
		log:     logging.Named("mqtt-source"),
		info:    make(map[Kind]Info),
	}

	for kind, topic := range topics {
		if err := checkKind(kind); err != nil {
			return nil, err
		}
		kind := kind
		token := client.Subscribe(InfoTopic(topic), 1, func(_ mqtt.Client, msg mqtt.Message) {
			// an empty retained message withdraws the sensor
			if len(msg.Payload()) == 0 {
				m.mu.Lock()
				delete(m.info, kind)
				m.mu.Unlock()
				m.log.Infow("sensor withdrawn", "kind", kind)
				return
			}
			var info Info
			if err := json.Unmarshal(msg.Payload(), &info); err != nil {
				m.log.Warnw("info unmarshal error", "topic", msg.Topic(), "error", err)
				return
			}
			m.mu.Lock()
			m.info[kind] = info
			m.mu.Unlock()
			m.log.Infow("sensor announced", "kind", kind, "name", info.Name)
		})
		if err := waitToken(token, m.timeout); err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", InfoTopic(topic), err)
		}
		m.log.Infow("subscribed to info topic", "topic", InfoTopic(topic))
	}
	return m, nil
}

func (m *MQTTSource) Info(kind Kind) (Info, error) {
	if err := checkKind(kind); err != nil {
		return Info{}, err
	}
	m.mu.RLock()
	info, ok := m.info[kind]
	m.mu.RUnlock()
	if !ok {
		return Info{}, fmt.Errorf("%s not announced on MQTT: %w", kind, ErrUnavailable)
	}
	return info, nil
}

// Subscribe subscribes to the sample topic of kind. The producer decides the
// actual rate; rate is only logged.
func (m *MQTTSource) Subscribe(kind Kind, rate Rate) (Subscription, error) {
	if _, err := m.Info(kind); err != nil {
		return nil, err
	}
	topic := m.topics[kind]

	sub := &mqttSubscription{
		kind:    kind,
		topic:   topic,
		client:  m.client,
		timeout: m.timeout,
		ch:      make(chan Sample, sampleBuffer),
	}
	token := m.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		sample, err := DecodeSample(msg.Payload())
		if err != nil {
			m.log.Warnw("sample decode error", "topic", msg.Topic(), "error", err)
			return
		}
		if sample.Kind != kind {
			m.log.Warnw("sample of wrong kind", "topic", msg.Topic(), "want", kind, "got", sample.Kind)
			return
		}
		sub.deliver(sample)
	})
	if err := waitToken(token, m.timeout); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	m.log.Infow("subscribed", "kind", kind, "topic", topic, "rate", rate)
	return sub, nil
}

// DecodeSample parses a sample published by a producer and checks it has
// the number of values its kind requires.
func DecodeSample(payload []byte) (Sample, error) {
	var s Sample
	if err := json.Unmarshal(payload, &s); err != nil {
		return Sample{}, fmt.Errorf("unmarshal sample: %w", err)
	}
	if err := checkKind(s.Kind); err != nil {
		return Sample{}, err
	}
	if len(s.Values) < s.Kind.Axes() {
		return Sample{}, fmt.Errorf("%s sample has %d values, want %d", s.Kind, len(s.Values), s.Kind.Axes())
	}
	return s, nil
}

type mqttSubscription struct {
	kind    Kind
	topic   string
	client  mqtt.Client
	timeout time.Duration

	mu     sync.Mutex
	ch     chan Sample
	closed bool
}

func (s *mqttSubscription) deliver(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- sample:
	default:
	}
}

func (s *mqttSubscription) Kind() Kind { return s.kind }

func (s *mqttSubscription) C() <-chan Sample { return s.ch }

// Close unsubscribes the topic and closes C.
func (s *mqttSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	if err := waitToken(s.client.Unsubscribe(s.topic), s.timeout); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", s.topic, err)
	}
	return nil
}

func waitToken(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out after %s", timeout)
	}
	return token.Error()
}
