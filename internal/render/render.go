// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package render turns a chart.State into a go-chart chart, for the OLED
// display and the PNG endpoint.
package render

import (
	"fmt"
	"image"
	"io"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/relabs-tech/sensorscope/internal/chart"
)

// Options sizes the chart. Monochrome draws white on black with no legend,
// which is what a 1 bit panel needs.
type Options struct {
	Width      int
	Height     int
	Monochrome bool
}

type palette struct {
	bg, fg     drawing.Color
	monochrome bool
}

func (p palette) series(hex string) drawing.Color {
	if p.monochrome {
		return p.fg
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return p.fg
	}
	r, g, b := c.RGB255()
	return drawing.Color{R: r, G: g, B: b, A: 255}
}

// placeholder bounds keep the ranges valid when there is nothing to plot
var placeholder = chart.Bounds{MinX: 0, MaxX: 1, MinY: 0, MaxY: 1}

// Chart builds the go-chart description of st.
func Chart(st chart.State, opts Options) gochart.Chart {
	p := palette{bg: drawing.ColorWhite, fg: drawing.ColorBlack}
	padding := gochart.Box{Top: 28, Left: 12, Right: 8, Bottom: 8}
	titleSize := 12.0
	if opts.Monochrome {
		p = palette{bg: drawing.ColorBlack, fg: drawing.ColorWhite, monochrome: true}
		padding = gochart.Box{Top: 14, Left: 2, Right: 2, Bottom: 2}
		titleSize = 8
	}

	bounds := st.Bounds
	if !st.Mode.Valid() {
		bounds = placeholder
	}

	ch := gochart.Chart{
		Title:      title(st),
		TitleStyle: gochart.Style{FontColor: p.fg, FontSize: titleSize},
		Width:      opts.Width,
		Height:     opts.Height,
		Background: gochart.Style{FillColor: p.bg, Padding: padding},
		Canvas:     gochart.Style{FillColor: p.bg},
		XAxis: gochart.XAxis{
			Style: gochart.Hidden(),
			Range: &gochart.ContinuousRange{Min: bounds.MinX, Max: bounds.MaxX},
		},
		YAxis: gochart.YAxis{
			Style: gochart.Style{Hidden: opts.Monochrome, FontColor: p.fg, StrokeColor: p.fg},
			Range: &gochart.ContinuousRange{Min: bounds.MinY, Max: bounds.MaxY},
		},
	}

	if st.Mode.Valid() {
		barWidth := barStroke(opts.Width, bounds)
		for i, s := range st.Series {
			col := p.series(s.Color)
			switch s.Style {
			case chart.StyleBar:
				ch.Series = append(ch.Series, barSeries(s, float64(i+1), bounds, col, barWidth))
				if s.ValuesOnTop {
					ch.Series = append(ch.Series, valueLabels(s, bounds, p))
				}
			case chart.StyleLine:
				ch.Series = append(ch.Series, lineSeries(s, bounds, col))
			}
		}
		// every series is the same colour on the panel
		if st.Legend.Visible && !opts.Monochrome {
			ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
		}
	}
	if len(ch.Series) == 0 {
		ch.Series = []gochart.Series{hiddenSeries(bounds)}
	}
	return ch
}

// PNG writes st as a PNG image.
func PNG(w io.Writer, st chart.State, opts Options) error {
	ch := Chart(st, opts)
	if err := ch.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render %s: %w", st.Mode, err)
	}
	return nil
}

// Image renders st into memory.
func Image(st chart.State, opts Options) (image.Image, error) {
	ch := Chart(st, opts)
	iw := &gochart.ImageWriter{}
	if err := ch.Render(gochart.PNG, iw); err != nil {
		return nil, fmt.Errorf("render %s: %w", st.Mode, err)
	}
	return iw.Image()
}

func title(st chart.State) string {
	if !st.Mode.Valid() {
		return "No sensor"
	}
	if st.Mode.Axes() == 1 {
		if n := len(st.Series[0].Points); n > 0 {
			return fmt.Sprintf("%s %.0f", st.Title, st.Series[0].Points[n-1].Y)
		}
	}
	return st.Title
}

// barStroke is half a slot wide in pixels.
func barStroke(width int, b chart.Bounds) float64 {
	return math.Max(2, float64(width)/(b.MaxX-b.MinX)/2)
}

// barSeries draws one axis as a thick vertical stroke from zero to its value.
func barSeries(s chart.Series, slot float64, b chart.Bounds, col drawing.Color, width float64) gochart.Series {
	v := 0.0
	if len(s.Points) > 0 {
		slot, v = s.Points[0].X, s.Points[0].Y
	}
	base := clamp(0, b.MinY, b.MaxY)
	return gochart.ContinuousSeries{
		Name:    s.Name,
		XValues: []float64{slot, slot},
		YValues: []float64{base, clamp(v, b.MinY, b.MaxY)},
		Style:   gochart.Style{StrokeColor: col, StrokeWidth: width},
	}
}

func valueLabels(s chart.Series, b chart.Bounds, p palette) gochart.Series {
	labels := make([]gochart.Value2, 0, len(s.Points))
	for _, pt := range s.Points {
		labels = append(labels, gochart.Value2{
			XValue: pt.X,
			YValue: clamp(pt.Y, b.MinY, b.MaxY),
			Label:  fmt.Sprintf("%.2f", pt.Y),
		})
	}
	return gochart.AnnotationSeries{
		Name:        s.Name + " values",
		Annotations: labels,
		Style:       gochart.Style{FontColor: p.fg, FillColor: p.bg, StrokeColor: p.fg, FontSize: 7},
	}
}

func lineSeries(s chart.Series, b chart.Bounds, col drawing.Color) gochart.Series {
	if len(s.Points) == 0 {
		return hiddenSeries(b)
	}
	// light points keep counting past the window, slide the x axis along
	offset := 0.0
	if last := s.Points[len(s.Points)-1].X; last > b.MaxX {
		offset = last - b.MaxX
	}
	xs := make([]float64, 0, len(s.Points)+1)
	ys := make([]float64, 0, len(s.Points)+1)
	for _, pt := range s.Points {
		xs = append(xs, pt.X-offset)
		ys = append(ys, clamp(pt.Y, b.MinY, b.MaxY))
	}
	if len(xs) == 1 {
		xs = append(xs, xs[0])
		ys = append(ys, ys[0])
	}
	return gochart.ContinuousSeries{
		Name:    s.Name,
		XValues: xs,
		YValues: ys,
		Style:   gochart.Style{StrokeColor: col, StrokeWidth: 2},
	}
}

func hiddenSeries(b chart.Bounds) gochart.Series {
	return gochart.ContinuousSeries{
		XValues: []float64{b.MinX, b.MaxX},
		YValues: []float64{b.MinY, b.MinY},
		Style:   gochart.Hidden(),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
