// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/sensorscope/internal/config"
	"github.com/relabs-tech/sensorscope/internal/selector"
	"github.com/relabs-tech/sensorscope/internal/sensors"
)

func TestProducerAnnouncesAndPublishes(t *testing.T) {
	b := newBroker()
	topics := config.Default().Topics()
	p := NewProducer(b, sensors.NewMockSource(sensors.Gyroscope), topics, sensors.RateFastest)

	kinds, err := p.Start()
	require.NoError(t, err)
	assert.Equal(t, []sensors.Kind{sensors.Accelerometer, sensors.Light}, kinds)

	infos := b.messages(sensors.InfoTopic(topics[sensors.Accelerometer]))
	require.Len(t, infos, 1)
	assert.True(t, infos[0].retained)
	var info sensors.Info
	require.NoError(t, json.Unmarshal(infos[0].payload, &info))
	assert.Equal(t, "Mock Accelerometer", info.Name)
	assert.Empty(t, b.messages(sensors.InfoTopic(topics[sensors.Gyroscope])))

	require.Eventually(t, func() bool {
		return len(b.messages(topics[sensors.Light])) >= 3
	}, 2*time.Second, 10*time.Millisecond)
	s, err := sensors.DecodeSample(b.messages(topics[sensors.Light])[0].payload)
	require.NoError(t, err)
	assert.Equal(t, sensors.Light, s.Kind)

	p.Stop()
	infos = b.messages(sensors.InfoTopic(topics[sensors.Accelerometer]))
	last := infos[len(infos)-1]
	assert.True(t, last.retained)
	assert.Empty(t, last.payload, "info withdrawn on stop")

	n := b.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, b.count(), "no publishes after stop")
}

func TestProducerNothingToPublish(t *testing.T) {
	src := sensors.NewMockSource(sensors.Accelerometer, sensors.Gyroscope, sensors.Light)
	p := NewProducer(newBroker(), src, config.Default().Topics(), sensors.RateNormal)
	_, err := p.Start()
	assert.ErrorIs(t, err, ErrNothingToPublish)
}

func TestProducerFeedsMQTTSource(t *testing.T) {
	b := newBroker()
	topics := config.Default().Topics()

	p := NewProducer(b, sensors.NewMockSource(sensors.Light), topics, sensors.RateFastest)
	_, err := p.Start()
	require.NoError(t, err)
	t.Cleanup(p.Stop)

	// subscribes after the producer, so availability comes from retained info
	src, err := sensors.NewMQTTSource(b, topics)
	require.NoError(t, err)
	assert.True(t, sensors.Available(src, sensors.Gyroscope))
	assert.False(t, sensors.Available(src, sensors.Light))

	sel := selector.New(src, sensors.RateNormal)
	t.Cleanup(func() { _ = sel.Close() })
	require.NoError(t, sel.SelectMode(sensors.Gyroscope))

	require.Eventually(t, func() bool {
		st := sel.Snapshot()
		return st.Samples > 0 && len(st.Series[2].Points) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3.0, sel.Snapshot().Series[2].Points[0].X)

	err = sel.SelectMode(sensors.Light)
	assert.ErrorIs(t, err, sensors.ErrUnavailable)
	assert.Equal(t, sensors.Gyroscope, sel.Mode())
}
