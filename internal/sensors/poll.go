// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// sampleBuffer is how many undelivered samples a subscription keeps before
// it starts dropping new ones.
const sampleBuffer = 16

// readFunc reads one set of axis values from a sensor.
type readFunc func(now time.Time) ([]float64, error)

// pollSubscription samples a readFunc on a ticker until closed.
type pollSubscription struct {
	kind Kind
	ch   chan Sample
	done chan struct{}
	exit chan struct{}
	once sync.Once
}

func startPolling(kind Kind, rate Rate, read readFunc, log *zap.SugaredLogger) *pollSubscription {
	s := &pollSubscription{
		kind: kind,
		ch:   make(chan Sample, sampleBuffer),
		done: make(chan struct{}),
		exit: make(chan struct{}),
	}
	go s.run(rate.Interval(), read, log)
	return s
}

func (s *pollSubscription) run(interval time.Duration, read readFunc, log *zap.SugaredLogger) {
	defer close(s.exit)
	defer close(s.ch)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case t := <-ticker.C:
			values, err := read(t)
			if err != nil {
				log.Warnw("sensor read failed", "kind", s.kind, "error", err)
				continue
			}
			sample := Sample{Kind: s.kind, Values: values, Time: t}
			select {
			case s.ch <- sample:
			case <-s.done:
				return
			default:
				log.Debugw("subscriber is behind, sample dropped", "kind", s.kind)
			}
		}
	}
}

func (s *pollSubscription) Kind() Kind       { return s.kind }
func (s *pollSubscription) C() <-chan Sample { return s.ch }

// Close stops the sampling goroutine and waits for it to exit.
func (s *pollSubscription) Close() error {
	s.once.Do(func() { close(s.done) })
	<-s.exit
	return nil
}
