// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package selector keeps exactly one sensor subscription alive and feeds
// its samples into the chart of the active mode.
package selector

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/relabs-tech/sensorscope/internal/chart"
	"github.com/relabs-tech/sensorscope/internal/logging"
	"github.com/relabs-tech/sensorscope/internal/sensors"
)

// ErrClosed is returned by SelectMode after Close.
var ErrClosed = errors.New("selector closed")

// Observer receives a copy of the chart after every change. Observers run
// with the selector locked and must not call back into it.
type Observer func(chart.State)

// MenuItem is one entry of the sensor selection menu.
type MenuItem struct {
	Mode      sensors.Kind `json:"mode"`
	Label     string       `json:"label"`
	Available bool         `json:"available"`
	Active    bool         `json:"active"`
}

// Selector owns the active mode, its subscription and its chart state.
type Selector struct {
	src  sensors.Source
	rate sensors.Rate
	log  *zap.SugaredLogger

	mu        sync.Mutex
	sub       sensors.Subscription
	state     chart.State
	gen       uint64
	observers []Observer
	closed    bool
}

// New returns a selector with no active mode.
func New(src sensors.Source, rate sensors.Rate) *Selector {
	return &Selector{
		src:   src,
		rate:  rate,
		log:   logging.Named("selector"),
		state: chart.NewState(sensors.None, sensors.Info{}),
	}
}

// Observe registers fn and immediately sends it the current chart.
func (s *Selector) Observe(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
	fn(s.state.Clone())
}

// SelectMode switches the chart to mode. An unavailable sensor leaves the
// current mode running and returns an error wrapping sensors.ErrUnavailable.
func (s *Selector) SelectMode(mode sensors.Kind) error {
	if !mode.Valid() {
		return fmt.Errorf("select %d: %w", int(mode), sensors.ErrUnknownKind)
	}
	info, err := s.src.Info(mode)
	if err != nil {
		return fmt.Errorf("select %s: %w", mode, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.releaseLocked()
	s.gen++
	s.state = chart.NewState(mode, info)
	s.state.Generation = s.gen

	sub, err := s.src.Subscribe(mode, s.rate)
	if err != nil {
		s.state = chart.NewState(sensors.None, sensors.Info{})
		s.state.Generation = s.gen
		s.notifyLocked()
		return fmt.Errorf("select %s: subscribe: %w", mode, err)
	}
	s.sub = sub
	go s.pump(sub)

	s.log.Infow("mode selected", "mode", mode, "sensor", info.Name, "vendor", info.Vendor, "rate", s.rate)
	s.notifyLocked()
	return nil
}

// Deliver applies sample if from is still the active subscription. Samples
// of released subscriptions are dropped and reported as not applied.
func (s *Selector) Deliver(from sensors.Subscription, sample sensors.Sample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if from == nil || from != s.sub {
		return false
	}
	applied, err := s.state.Apply(sample)
	if err != nil {
		s.log.Warnw("sample rejected", "mode", s.state.Mode, "error", err)
		return false
	}
	if applied {
		s.notifyLocked()
	}
	return applied
}

func (s *Selector) pump(sub sensors.Subscription) {
	for sample := range sub.C() {
		s.Deliver(sub, sample)
	}
}

// Mode returns the active mode, None before the first selection.
func (s *Selector) Mode() sensors.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Mode
}

// Snapshot returns a copy of the current chart.
func (s *Selector) Snapshot() chart.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Menu lists every selectable sensor; absent sensors are not available.
func (s *Selector) Menu() []MenuItem {
	current := s.Mode()
	items := make([]MenuItem, 0, len(sensors.Kinds))
	for _, k := range sensors.Kinds {
		items = append(items, MenuItem{
			Mode:      k,
			Label:     k.Label(),
			Available: sensors.Available(s.src, k),
			Active:    k == current,
		})
	}
	return items
}

// Close releases the active subscription. Further selections fail.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.releaseLocked()
	return nil
}

// releaseLocked closes the current subscription. Close is called with the
// lock held; the pump may be blocked in Deliver, so it must not be waited on
// beyond the source's own Close.
func (s *Selector) releaseLocked() {
	if s.sub == nil {
		return
	}
	sub := s.sub
	s.sub = nil
	if err := sub.Close(); err != nil {
		s.log.Warnw("release subscription", "mode", sub.Kind(), "error", err)
	}
	s.log.Debugw("subscription released", "mode", sub.Kind())
}

func (s *Selector) notifyLocked() {
	for _, fn := range s.observers {
		fn(s.state.Clone())
	}
}
