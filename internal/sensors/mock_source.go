// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/sensorscope/internal/logging"
)

const standardGravity = 9.80665

// MockSource generates smoothly changing readings for every kind.
type MockSource struct {
	start    time.Time
	disabled map[Kind]bool
}

// NewMockSource creates a mock source. Kinds listed in disabled report
// ErrUnavailable, which is handy to exercise the disabled menu items.
func NewMockSource(disabled ...Kind) *MockSource {
	m := &MockSource{start: time.Now(), disabled: make(map[Kind]bool)}
	for _, k := range disabled {
		m.disabled[k] = true
	}
	return m
}

func (m *MockSource) Info(kind Kind) (Info, error) {
	if err := checkKind(kind); err != nil {
		return Info{}, err
	}
	if m.disabled[kind] {
		return Info{}, fmt.Errorf("mock %s: %w", kind, ErrUnavailable)
	}
	return Info{
		Name:    "Mock " + kind.Label(),
		Version: 1,
		Vendor:  "Relabs Tech",
	}, nil
}

func (m *MockSource) Subscribe(kind Kind, rate Rate) (Subscription, error) {
	if _, err := m.Info(kind); err != nil {
		return nil, err
	}
	log := logging.Named("mock")
	log.Debugw("subscribed", "kind", kind, "rate", rate)
	return startPolling(kind, rate, func(now time.Time) ([]float64, error) {
		return m.Values(kind, now), nil
	}, log), nil
}

// Values returns the reading of kind at time t.
func (m *MockSource) Values(kind Kind, t time.Time) []float64 {
	elapsed := t.Sub(m.start).Seconds()

	switch kind {
	case Accelerometer:
		// device lying flat, gently rocked
		tilt := 0.2 * math.Sin(elapsed)
		return []float64{
			standardGravity * math.Sin(tilt),
			1.5 * math.Cos(elapsed*0.7),
			standardGravity * math.Cos(tilt),
		}
	case Gyroscope:
		return []float64{
			4 * math.Sin(elapsed*1.3),
			3 * math.Cos(elapsed*0.9),
			2 * math.Sin(elapsed*0.4),
		}
	case Light:
		return []float64{20000 + 15000*math.Sin(elapsed/5)}
	}
	return nil
}
