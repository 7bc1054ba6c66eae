// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/sensorscope/internal/chart"
	"github.com/relabs-tech/sensorscope/internal/config"
	"github.com/relabs-tech/sensorscope/internal/logging"
	"github.com/relabs-tech/sensorscope/internal/render"
	"github.com/relabs-tech/sensorscope/internal/selector"
)

// panel is the part of *ssd1306.Dev the display loop needs.
type panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Display redraws the active chart on a 1 bit panel.
type Display struct {
	dev      panel
	sel      *selector.Selector
	interval time.Duration
	log      *zap.SugaredLogger

	// selection and sample count of the last frame drawn
	lastGeneration uint64
	lastSamples    int
}

func NewDisplay(dev panel, sel *selector.Selector, interval time.Duration) *Display {
	return &Display{
		dev:         dev,
		sel:         sel,
		interval:    interval,
		log:         logging.Named("display"),
		lastSamples: -1,
	}
}

// Refresh draws the current chart if it changed since the last frame.
func (d *Display) Refresh() (bool, error) {
	st := d.sel.Snapshot()
	if st.Generation == d.lastGeneration && st.Samples == d.lastSamples {
		return false, nil
	}
	if err := d.drawState(st); err != nil {
		return false, err
	}
	d.lastGeneration = st.Generation
	d.lastSamples = st.Samples
	return true, nil
}

func (d *Display) drawState(st chart.State) error {
	b := d.dev.Bounds()
	frame, err := render.Image(st, render.Options{Width: b.Dx(), Height: b.Dy(), Monochrome: true})
	if err != nil {
		return err
	}
	// image1bit thresholds every pixel on the way in
	img := image1bit.NewVerticalLSB(b)
	draw.Draw(img, b, frame, frame.Bounds().Min, draw.Src)
	return d.dev.Draw(b, img, image.Point{})
}

// Splash shows the program name until the first chart arrives.
func (d *Display) Splash(lines ...string) error {
	img := image1bit.NewVerticalLSB(d.dev.Bounds())
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(5, 26+i*17)
		drawer.DrawString(line)
	}
	return d.dev.Draw(d.dev.Bounds(), img, image.Point{})
}

// Run refreshes the panel every interval until ctx is cancelled.
func (d *Display) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Infow("starting update loop", "interval", d.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Refresh(); err != nil {
				d.log.Warnw("error updating display", "error", err)
			}
		}
	}
}

// RunDisplay renders the active chart on the SSD1306 and follows the mode
// selected by the other front ends.
func RunDisplay(ctx context.Context) error {
	cfg := config.Get()
	log := logging.Named("display")

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus %q: %w", cfg.DisplayI2CBus, err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer func() {
		if err := dev.Halt(); err != nil {
			log.Warnw("halt display", "error", err)
		}
	}()
	log.Infow("display initialized", "bus", bus.String(), "bounds", dev.Bounds())

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		if cfg.SensorSource == config.SourceMQTT {
			return err
		}
		log.Warnw("running without MQTT, the mode stays at its initial value", "error", err)
		client = nil
	} else {
		defer client.Disconnect(250)
	}

	src, release, err := openSource(cfg, client)
	if err != nil {
		return err
	}
	defer release()

	sel := selector.New(src, cfg.SampleRate)
	defer sel.Close()

	display := NewDisplay(dev, sel, time.Duration(cfg.DisplayUpdateInterval)*time.Millisecond)
	if err := display.Splash("sensorscope", "waiting..."); err != nil {
		log.Warnw("error showing splash", "error", err)
	}

	selectInitial(sel, src, cfg.InitialMode)
	if client != nil {
		// the retained mode, if any, overrides the initial one
		relay := newModeRelay(client, cfg.TopicMode)
		defer relay.Close()
		if err := relay.Follow(sel); err != nil {
			log.Warnw("not following mode changes", "error", err)
		}
	}

	display.Run(ctx)
	return nil
}
