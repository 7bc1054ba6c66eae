// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, tc := range []struct {
		input    string
		expected Kind
		err      bool
	}{
		{input: "accelerometer", expected: Accelerometer},
		{input: "Gyroscope", expected: Gyroscope},
		{input: " light ", expected: Light},
		{input: "lux", expected: Light},
		{input: "", expected: None},
		{input: "magnetometer", err: true},
	} {
		t.Run(tc.input, func(t *testing.T) {
			k, err := ParseKind(tc.input)
			if tc.err {
				assert.ErrorIs(t, err, ErrUnknownKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, k)
		})
	}
}

func TestKindAxes(t *testing.T) {
	assert.Equal(t, 3, Accelerometer.Axes())
	assert.Equal(t, 3, Gyroscope.Axes())
	assert.Equal(t, 1, Light.Axes())
	assert.False(t, None.Valid())
}

func TestSampleJSONUsesKindNames(t *testing.T) {
	s := Sample{Kind: Gyroscope, Values: []float64{1, 2, 3}, Time: time.Unix(0, 0).UTC()}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"gyroscope"`)

	var back Sample
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, Gyroscope, back.Kind)
}

func TestParseRate(t *testing.T) {
	r, err := ParseRate("normal")
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, r.Interval())

	r, err = ParseRate("GAME")
	require.NoError(t, err)
	assert.Equal(t, RateGame, r)

	_, err = ParseRate("ludicrous")
	assert.Error(t, err)
}

func TestUnitConversions(t *testing.T) {
	// +1g at the ±2g range is half of full scale
	assert.InDelta(t, standardGravity, accelToSI(16384, 0), 1e-9)
	assert.InDelta(t, -2*standardGravity, accelToSI(-16384, 1), 1e-9)
	// 250°/s full scale, half scale is 125°/s
	assert.InDelta(t, 2.1816615649929116, gyroToSI(16384, 0), 1e-9)
	// 0x01 0x2C = 300 counts -> 250 lx
	assert.InDelta(t, 250.0, rawToLux([]byte{0x01, 0x2C}), 1e-9)
}
