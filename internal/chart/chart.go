// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package chart turns sensor samples into the series, bounds and labels
// a chart front end draws.
package chart

import (
	"errors"
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/relabs-tech/sensorscope/internal/sensors"
)

// LightWindow is how many light readings stay on the chart.
const LightWindow = 40

// ErrShortSample is returned when a sample carries fewer values than its
// kind has axes.
var ErrShortSample = errors.New("sample has too few values")

// Style selects how a series is drawn.
type Style string

const (
	StyleBar  Style = "bar"
	StyleLine Style = "line"
)

var (
	colorX     = colorful.Color{R: 1, G: 0, B: 0}.Hex()
	colorY     = colorful.Color{R: 0, G: 1, B: 0}.Hex()
	colorZ     = colorful.Color{R: 0, G: 0, B: 1}.Hex()
	colorLight = colorful.Hsv(200, 0.9, 0.85).Hex()
)

// Point is one plotted (x, y) pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Series is one trace on the chart.
type Series struct {
	Name        string  `json:"name"`
	Color       string  `json:"color"`
	Style       Style   `json:"style"`
	ValuesOnTop bool    `json:"values_on_top,omitempty"`
	MaxPoints   int     `json:"max_points,omitempty"`
	Points      []Point `json:"points"`
}

// Reset replaces all points of the series.
func (s *Series) Reset(points ...Point) {
	s.Points = append(s.Points[:0:0], points...)
}

// Append adds p, dropping the oldest points beyond MaxPoints.
func (s *Series) Append(p Point) {
	s.Points = append(s.Points, p)
	if s.MaxPoints > 0 && len(s.Points) > s.MaxPoints {
		s.Points = append(s.Points[:0:0], s.Points[len(s.Points)-s.MaxPoints:]...)
	}
}

// Bounds are the manual axis limits of the viewport.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Legend configures the series legend.
type Legend struct {
	Visible bool   `json:"visible"`
	Align   string `json:"align,omitempty"`
}

// State is everything needed to draw the chart of one mode. It is rebuilt
// by NewState on every mode switch and only mutated through Apply.
// Generation is set by the owner of the state and grows with every switch.
type State struct {
	Generation uint64       `json:"generation"`
	Mode       sensors.Kind `json:"mode"`
	Title      string       `json:"title"`
	Sensor     sensors.Info `json:"sensor"`
	Bounds     Bounds       `json:"bounds"`
	Legend     Legend       `json:"legend"`
	Series     []Series     `json:"series"`
	Counter    int          `json:"counter"`
	Samples    int          `json:"samples"`
}

// NewState returns the empty chart for mode.
func NewState(mode sensors.Kind, info sensors.Info) State {
	st := State{
		Mode:   mode,
		Title:  mode.Label(),
		Sensor: info,
	}

	switch mode {
	case sensors.Accelerometer, sensors.Gyroscope:
		st.Bounds = Bounds{MinX: 0, MaxX: 4, MinY: -10, MaxY: 10}
		st.Legend = Legend{Visible: true, Align: "bottom"}
		onTop := mode == sensors.Gyroscope
		st.Series = []Series{
			{Name: "X Axis", Color: colorX, Style: StyleBar, ValuesOnTop: onTop, Points: []Point{}},
			{Name: "Y Axis", Color: colorY, Style: StyleBar, ValuesOnTop: onTop, Points: []Point{}},
			{Name: "Z Axis", Color: colorZ, Style: StyleBar, ValuesOnTop: onTop, Points: []Point{}},
		}
	case sensors.Light:
		st.Bounds = Bounds{MinX: 0, MaxX: LightWindow, MinY: 0, MaxY: 40000}
		st.Series = []Series{
			{Name: "Light", Color: colorLight, Style: StyleLine, MaxPoints: LightWindow, Points: []Point{}},
		}
	}
	return st
}

// Apply plots sample. Samples of another kind than the state's mode are
// ignored and reported as not applied.
func (st *State) Apply(sample sensors.Sample) (bool, error) {
	if sample.Kind != st.Mode || !st.Mode.Valid() {
		return false, nil
	}
	if len(sample.Values) < st.Mode.Axes() {
		return false, fmt.Errorf("%s: %w (%d)", st.Mode, ErrShortSample, len(sample.Values))
	}

	switch st.Mode {
	case sensors.Accelerometer, sensors.Gyroscope:
		for axis := range st.Series {
			st.Series[axis].Reset(Point{X: float64(axis + 1), Y: sample.Values[axis]})
		}
	case sensors.Light:
		st.Series[0].Append(Point{X: float64(st.Counter), Y: sample.Values[0]})
		st.Counter++
	}
	st.Samples++
	return true, nil
}

// Clone returns a deep copy that shares no slices with st.
func (st State) Clone() State {
	c := st
	c.Series = make([]Series, len(st.Series))
	for i, s := range st.Series {
		c.Series[i] = s
		c.Series[i].Points = append([]Point{}, s.Points...)
	}
	return c
}
