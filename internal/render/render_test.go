// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package render

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gochart "github.com/wcharczuk/go-chart/v2"

	"github.com/relabs-tech/sensorscope/internal/chart"
	"github.com/relabs-tech/sensorscope/internal/sensors"
)

// countNear counts pixels within a small distance of hex.
func countNear(t *testing.T, img image.Image, hex string) int {
	t.Helper()
	want, err := colorful.Hex(hex)
	require.NoError(t, err)
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			got, ok := colorful.MakeColor(img.At(x, y))
			if ok && got.DistanceRgb(want) < 0.1 {
				n++
			}
		}
	}
	return n
}

func TestChartMotionSeries(t *testing.T) {
	st := chart.NewState(sensors.Gyroscope, sensors.Info{})
	_, err := st.Apply(sensors.Sample{Kind: sensors.Gyroscope, Values: []float64{1, -2, 25}})
	require.NoError(t, err)

	ch := Chart(st, Options{Width: 320, Height: 160})
	assert.Equal(t, "Gyroscope", ch.Title)
	assert.Equal(t, -10.0, ch.YAxis.Range.GetMin())
	assert.Equal(t, 10.0, ch.YAxis.Range.GetMax())
	require.Len(t, ch.Elements, 1, "legend")

	var bars []gochart.ContinuousSeries
	var labels []gochart.AnnotationSeries
	for _, s := range ch.Series {
		switch typed := s.(type) {
		case gochart.ContinuousSeries:
			bars = append(bars, typed)
		case gochart.AnnotationSeries:
			labels = append(labels, typed)
		}
	}
	require.Len(t, bars, 3)
	require.Len(t, labels, 3)
	assert.Equal(t, "X Axis", bars[0].Name)
	assert.Equal(t, []float64{1, 1}, bars[0].XValues)
	assert.Equal(t, []float64{0, -2}, bars[1].YValues)
	// out of range values are clamped to the viewport, the label keeps the reading
	assert.Equal(t, []float64{0, 10}, bars[2].YValues)
	assert.Equal(t, "25.00", labels[2].Annotations[0].Label)
}

func TestImageMotionBarsInSeriesColours(t *testing.T) {
	st := chart.NewState(sensors.Accelerometer, sensors.Info{})
	_, err := st.Apply(sensors.Sample{Kind: sensors.Accelerometer, Values: []float64{5, -5, 9.8}})
	require.NoError(t, err)

	img, err := Image(st, Options{Width: 320, Height: 160})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 160), img.Bounds())

	red := countNear(t, img, st.Series[0].Color)
	green := countNear(t, img, st.Series[1].Color)
	blue := countNear(t, img, st.Series[2].Color)
	assert.Positive(t, red)
	assert.Positive(t, green)
	// z is almost at full scale, so its bar is the tallest
	assert.Greater(t, blue, red)
}

func TestImageMonochromeIsGreyscale(t *testing.T) {
	st := chart.NewState(sensors.Gyroscope, sensors.Info{})
	_, err := st.Apply(sensors.Sample{Kind: sensors.Gyroscope, Values: []float64{1, 2, 3}})
	require.NoError(t, err)

	ch := Chart(st, Options{Width: 128, Height: 64, Monochrome: true})
	assert.Empty(t, ch.Elements)

	img, err := Image(st, Options{Width: 128, Height: 64, Monochrome: true})
	require.NoError(t, err)

	lit := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			require.True(t, r == g && g == bl, "pixel %d,%d is coloured", x, y)
			if r >= 0x8000 {
				lit++
			}
		}
	}
	assert.Positive(t, lit)
}

func TestImageLightPastWindow(t *testing.T) {
	st := chart.NewState(sensors.Light, sensors.Info{})
	for i := 0; i < 60; i++ {
		_, err := st.Apply(sensors.Sample{Kind: sensors.Light, Values: []float64{float64(i * 500)}})
		require.NoError(t, err)
	}
	assert.Equal(t, "Light sensor 29500", title(st))

	ch := Chart(st, Options{Width: 320, Height: 160})
	require.Len(t, ch.Series, 1)
	line := ch.Series[0].(gochart.ContinuousSeries)
	require.Len(t, line.XValues, chart.LightWindow)
	// the newest point sits at the right edge of the window
	assert.Equal(t, float64(chart.LightWindow), line.XValues[len(line.XValues)-1])

	img, err := Image(st, Options{Width: 320, Height: 160})
	require.NoError(t, err)
	assert.Greater(t, countNear(t, img, st.Series[0].Color), 40)
}

func TestImageSingleLightPoint(t *testing.T) {
	st := chart.NewState(sensors.Light, sensors.Info{})
	_, err := st.Apply(sensors.Sample{Kind: sensors.Light, Values: []float64{120}})
	require.NoError(t, err)

	_, err = Image(st, Options{Width: 128, Height: 64})
	assert.NoError(t, err)
}

func TestRenderEmptyStates(t *testing.T) {
	for _, mode := range []sensors.Kind{sensors.None, sensors.Accelerometer, sensors.Light} {
		t.Run(mode.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, PNG(&buf, chart.NewState(mode, sensors.Info{}), Options{Width: 128, Height: 64}))
			img, err := png.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, 128, img.Bounds().Dx())
		})
	}
	assert.Equal(t, "No sensor", title(chart.NewState(sensors.None, sensors.Info{})))
}
