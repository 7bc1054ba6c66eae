// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// BH1750 (GY-32 breakout) opcodes.
const (
	bh1750PowerOn        = 0x01
	bh1750Reset          = 0x07
	bh1750ContinuousHRes = 0x10

	// measurement time of the high resolution mode
	bh1750MeasureTime = 180 * time.Millisecond
)

// lightDevice is a BH1750 ambient light sensor on I2C.
type lightDevice struct {
	mu  sync.Mutex
	dev *i2c.Dev
}

func newLightDevice(bus i2c.Bus, addr uint16) (*lightDevice, error) {
	dev := &i2c.Dev{Bus: bus, Addr: addr}

	for _, op := range []byte{bh1750PowerOn, bh1750Reset, bh1750ContinuousHRes} {
		if _, err := dev.Write([]byte{op}); err != nil {
			return nil, fmt.Errorf("light: write opcode 0x%02X: %w", op, err)
		}
	}
	time.Sleep(bh1750MeasureTime)

	return &lightDevice{dev: dev}, nil
}

// ReadLux returns the latest continuous measurement in lux.
func (d *lightDevice) ReadLux() ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf := make([]byte, 2)
	if err := d.dev.Tx(nil, buf); err != nil {
		return nil, fmt.Errorf("light: read: %w", err)
	}
	return []float64{rawToLux(buf)}, nil
}

// rawToLux converts the big endian measurement of the high resolution mode.
func rawToLux(b []byte) float64 {
	raw := uint16(b[0])<<8 | uint16(b[1])
	return float64(raw) / 1.2
}
