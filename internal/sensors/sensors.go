// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors defines the sensor kinds charted by sensorscope and the
// sources that deliver their samples (mock, periph hardware, MQTT).
package sensors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnavailable is returned when a sensor is not present on this device.
	ErrUnavailable = errors.New("sensor unavailable")
	// ErrUnknownKind is returned for kinds outside Accelerometer/Gyroscope/Light.
	ErrUnknownKind = errors.New("unknown sensor kind")
)

// Kind identifies one of the chartable sensors.
type Kind int

const (
	None Kind = iota
	Accelerometer
	Gyroscope
	Light
)

// Kinds lists the selectable sensors in menu order.
var Kinds = []Kind{Accelerometer, Gyroscope, Light}

func (k Kind) String() string {
	switch k {
	case Accelerometer:
		return "accelerometer"
	case Gyroscope:
		return "gyroscope"
	case Light:
		return "light"
	default:
		return "none"
	}
}

// Label is the human readable name shown in menus.
func (k Kind) Label() string {
	switch k {
	case Accelerometer:
		return "Accelerometer"
	case Gyroscope:
		return "Gyroscope"
	case Light:
		return "Light sensor"
	default:
		return "None"
	}
}

// Axes returns the number of values carried by a sample of this kind.
func (k Kind) Axes() int {
	switch k {
	case Accelerometer, Gyroscope:
		return 3
	case Light:
		return 1
	default:
		return 0
	}
}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	return k.Axes() > 0
}

// ParseKind accepts the names produced by String, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accelerometer", "accel":
		return Accelerometer, nil
	case "gyroscope", "gyro":
		return Gyroscope, nil
	case "light", "lux":
		return Light, nil
	case "none", "":
		return None, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Rate is a sampling rate class, matching the usual mobile sensor delays.
type Rate int

const (
	RateNormal Rate = iota
	RateUI
	RateGame
	RateFastest
)

// Interval is the delay between two samples at this rate.
func (r Rate) Interval() time.Duration {
	switch r {
	case RateUI:
		return 66 * time.Millisecond
	case RateGame:
		return 20 * time.Millisecond
	case RateFastest:
		return 5 * time.Millisecond
	default:
		return 200 * time.Millisecond
	}
}

func (r Rate) String() string {
	switch r {
	case RateUI:
		return "ui"
	case RateGame:
		return "game"
	case RateFastest:
		return "fastest"
	default:
		return "normal"
	}
}

// ParseRate parses "normal", "ui", "game" or "fastest".
func ParseRate(s string) (Rate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "":
		return RateNormal, nil
	case "ui":
		return RateUI, nil
	case "game":
		return RateGame, nil
	case "fastest":
		return RateFastest, nil
	}
	return RateNormal, fmt.Errorf("unknown sampling rate %q", s)
}

// Sample is one reading. Motion kinds carry x, y, z (m/s² or rad/s),
// Light carries a single lux value.
type Sample struct {
	Kind   Kind      `json:"kind"`
	Values []float64 `json:"values"`
	Time   time.Time `json:"time"`
}

// Info is the static metadata a sensor reports about itself.
type Info struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
	Vendor  string `json:"vendor"`
}

// Source hands out sample subscriptions for the sensors it knows about.
type Source interface {
	// Info returns the sensor metadata, or an error wrapping ErrUnavailable
	// when the sensor is absent.
	Info(kind Kind) (Info, error)
	// Subscribe starts delivering samples of kind at rate until the returned
	// subscription is closed.
	Subscribe(kind Kind, rate Rate) (Subscription, error)
}

// Subscription is a handle on a running sample stream. Its owner must call
// Close exactly once it is done; Close is idempotent and closes C.
type Subscription interface {
	Kind() Kind
	C() <-chan Sample
	Close() error
}

// Available reports whether src can deliver samples of kind.
func Available(src Source, kind Kind) bool {
	_, err := src.Info(kind)
	return err == nil
}

func checkKind(kind Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	return nil
}
