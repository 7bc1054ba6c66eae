// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/sensorscope/internal/selector"
	"github.com/relabs-tech/sensorscope/internal/sensors"
)

func TestModeRelayPublishIsRetained(t *testing.T) {
	b := newBroker()
	r := newModeRelay(b, "sensorscope/mode")
	t.Cleanup(r.Close)

	r.Publish(sensors.Light)

	msgs := b.messages("sensorscope/mode")
	require.Len(t, msgs, 1)
	assert.Equal(t, "light", string(msgs[0].payload))
	assert.True(t, msgs[0].retained)
}

func TestNilModeRelayPublishIsNoop(t *testing.T) {
	var r *modeRelay
	assert.NotPanics(t, func() {
		r.Publish(sensors.Gyroscope)
		r.Announce(nil)
		r.Close()
	})
}

func TestModeRelayFollow(t *testing.T) {
	b := newBroker()
	r := newModeRelay(b, "sensorscope/mode")
	t.Cleanup(r.Close)
	// a mode retained before the follower starts is applied on subscribe
	r.Publish(sensors.Gyroscope)

	sel := selector.New(sensors.NewMockSource(sensors.Light), sensors.RateNormal)
	t.Cleanup(func() { _ = sel.Close() })

	require.NoError(t, r.Follow(sel))
	assert.Equal(t, sensors.Gyroscope, sel.Mode())

	b.Publish("sensorscope/mode", 1, true, "accelerometer")
	assert.Equal(t, sensors.Accelerometer, sel.Mode())

	// unknown, empty and unavailable modes leave the selection alone
	b.Publish("sensorscope/mode", 1, true, "barometer")
	b.Publish("sensorscope/mode", 1, false, "none")
	b.Publish("sensorscope/mode", 1, true, "light")
	assert.Equal(t, sensors.Accelerometer, sel.Mode())
}

type fixedMode sensors.Kind

func (m fixedMode) Mode() sensors.Kind { return sensors.Kind(m) }

func TestModeRelayAnnounceKeepsLatest(t *testing.T) {
	b := newBroker()
	release := make(chan struct{})
	var once sync.Once
	b.beforePublish = func(string) {
		// hold the first publish until every mode is queued
		once.Do(func() { <-release })
	}
	r := newModeRelay(b, "sensorscope/mode")

	r.Announce(fixedMode(sensors.Accelerometer))
	assert.Eventually(t, func() bool { return len(r.pending) == 0 }, time.Second, time.Millisecond)
	r.Announce(fixedMode(sensors.Gyroscope))
	r.Announce(fixedMode(sensors.Light))
	r.Announce(fixedMode(sensors.None))
	close(release)
	r.Close()

	msgs := b.messages("sensorscope/mode")
	require.Len(t, msgs, 2)
	assert.Equal(t, "accelerometer", string(msgs[0].payload))
	assert.Equal(t, "light", string(msgs[1].payload))
	retained, ok := b.retainedPayload("sensorscope/mode")
	require.True(t, ok)
	assert.Equal(t, "light", retained)
}
