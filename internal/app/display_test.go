// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/sensorscope/internal/selector"
	"github.com/relabs-tech/sensorscope/internal/sensors"
)

type fakePanel struct {
	mu     sync.Mutex
	frames []image.Image
}

func (p *fakePanel) Bounds() image.Rectangle { return image.Rect(0, 0, 128, 64) }

func (p *fakePanel) Draw(_ image.Rectangle, src image.Image, _ image.Point) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, src)
	return nil
}

func (p *fakePanel) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

func (p *fakePanel) last() image.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames[len(p.frames)-1]
}

func litPixels(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.At(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestDisplayRefreshSkipsUnchangedFrames(t *testing.T) {
	sel := selector.New(sensors.NewMockSource(), sensors.RateNormal)
	t.Cleanup(func() { _ = sel.Close() })
	panel := &fakePanel{}
	d := NewDisplay(panel, sel, 10*time.Millisecond)

	drawn, err := d.Refresh()
	require.NoError(t, err)
	assert.True(t, drawn)

	drawn, err = d.Refresh()
	require.NoError(t, err)
	assert.False(t, drawn)
	assert.Equal(t, 1, panel.count())

	require.NoError(t, sel.SelectMode(sensors.Accelerometer))
	drawn, err = d.Refresh()
	require.NoError(t, err)
	assert.True(t, drawn)
	assert.Positive(t, litPixels(panel.last()))
}

func TestDisplayRedrawsAfterReselectingSameMode(t *testing.T) {
	sel := selector.New(sensors.NewMockSource(), sensors.RateNormal)
	t.Cleanup(func() { _ = sel.Close() })
	panel := &fakePanel{}
	d := NewDisplay(panel, sel, time.Second)

	require.NoError(t, sel.SelectMode(sensors.Gyroscope))
	drawn, err := d.Refresh()
	require.NoError(t, err)
	require.True(t, drawn)

	// a fresh chart is drawn even when its sample count matches the last frame
	require.NoError(t, sel.SelectMode(sensors.Gyroscope))
	drawn, err = d.Refresh()
	require.NoError(t, err)
	assert.True(t, drawn)
}

func TestDisplaySplash(t *testing.T) {
	sel := selector.New(sensors.NewMockSource(), sensors.RateNormal)
	t.Cleanup(func() { _ = sel.Close() })
	panel := &fakePanel{}

	require.NoError(t, NewDisplay(panel, sel, time.Second).Splash("sensorscope", "waiting..."))
	assert.Positive(t, litPixels(panel.last()))
}

func TestDisplayRunFollowsSamples(t *testing.T) {
	sel := selector.New(sensors.NewMockSource(), sensors.RateFastest)
	t.Cleanup(func() { _ = sel.Close() })
	require.NoError(t, sel.SelectMode(sensors.Light))
	panel := &fakePanel{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewDisplay(panel, sel, 5*time.Millisecond).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return panel.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("display loop did not stop")
	}
}
