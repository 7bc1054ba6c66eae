// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return m.retained }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// broker is an in-memory mqtt.Client: publishes reach the handler
// subscribed to the exact topic, retained messages are replayed on
// subscribe. Unused mqtt.Client methods panic through the nil embedding.
type broker struct {
	mqtt.Client

	// beforePublish, if set, runs before a publish is delivered
	beforePublish func(topic string)

	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	retained  map[string][]byte
	published []fakeMessage
}

func newBroker() *broker {
	return &broker{
		handlers: make(map[string]mqtt.MessageHandler),
		retained: make(map[string][]byte),
	}
}

func (b *broker) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	var data []byte
	switch p := payload.(type) {
	case string:
		data = []byte(p)
	case []byte:
		data = p
	}
	msg := fakeMessage{topic: topic, payload: data, retained: retained}
	if b.beforePublish != nil {
		b.beforePublish(topic)
	}

	b.mu.Lock()
	b.published = append(b.published, msg)
	if retained {
		if len(data) == 0 {
			delete(b.retained, topic)
		} else {
			b.retained[topic] = data
		}
	}
	cb := b.handlers[topic]
	b.mu.Unlock()

	if cb != nil {
		cb(b, msg)
	}
	return doneToken{}
}

func (b *broker) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	b.mu.Lock()
	b.handlers[topic] = cb
	data, ok := b.retained[topic]
	b.mu.Unlock()

	if ok {
		cb(b, fakeMessage{topic: topic, payload: data, retained: true})
	}
	return doneToken{}
}

func (b *broker) Unsubscribe(topics ...string) mqtt.Token {
	b.mu.Lock()
	for _, t := range topics {
		delete(b.handlers, t)
	}
	b.mu.Unlock()
	return doneToken{}
}

// messages returns what was published on topic, oldest first.
func (b *broker) messages(topic string) []fakeMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []fakeMessage
	for _, m := range b.published {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// retainedPayload returns the message a new subscriber to topic would get.
func (b *broker) retainedPayload(topic string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.retained[topic]
	return string(data), ok
}

func (b *broker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}
