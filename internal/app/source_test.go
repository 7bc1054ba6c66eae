// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/sensorscope/internal/config"
	"github.com/relabs-tech/sensorscope/internal/selector"
	"github.com/relabs-tech/sensorscope/internal/sensors"
)

func TestOpenSource(t *testing.T) {
	cfg := config.Default()

	src, release, err := openSource(cfg, nil)
	require.NoError(t, err)
	defer release()
	assert.IsType(t, &sensors.MockSource{}, src)

	cfg.SensorSource = config.SourceMQTT
	_, _, err = openSource(cfg, nil)
	assert.Error(t, err, "mqtt needs a client")

	mqttSrc, release2, err := openSource(cfg, newBroker())
	require.NoError(t, err)
	defer release2()
	assert.IsType(t, &sensors.MQTTSource{}, mqttSrc)

	cfg.SensorSource = "carrier-pigeon"
	_, _, err = openSource(cfg, nil)
	assert.Error(t, err)
}

func TestSelectInitialFallsBack(t *testing.T) {
	src := sensors.NewMockSource(sensors.Accelerometer)
	sel := selector.New(src, sensors.RateNormal)
	t.Cleanup(func() { _ = sel.Close() })

	assert.Equal(t, sensors.Gyroscope, selectInitial(sel, src, sensors.Accelerometer))
	assert.Equal(t, sensors.Gyroscope, sel.Mode())
}

func TestSelectInitialNothingAvailable(t *testing.T) {
	src := sensors.NewMockSource(sensors.Accelerometer, sensors.Gyroscope, sensors.Light)
	sel := selector.New(src, sensors.RateNormal)
	t.Cleanup(func() { _ = sel.Close() })

	assert.Equal(t, sensors.None, selectInitial(sel, src, sensors.Light))
	assert.Equal(t, sensors.None, sel.Mode())
}
