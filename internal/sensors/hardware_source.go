// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/sensorscope/internal/logging"
)

// HardwareConfig tells the hardware source where the chips are wired.
type HardwareConfig struct {
	IMUSPIDevice  string
	IMUCSPin      string
	IMUAccelRange byte
	IMUGyroRange  byte

	LightI2CBus  string
	LightI2CAddr uint16
}

// HardwareSource reads an MPU9250 (accelerometer, gyroscope) and a BH1750
// (light) through periph. A chip that fails to initialize makes its kinds
// unavailable instead of failing the whole source.
type HardwareSource struct {
	imu      *imuDevice
	imuErr   error
	light    *lightDevice
	lightErr error
	bus      i2c.BusCloser
}

// NewHardwareSource initializes periph and probes both chips.
func NewHardwareSource(cfg HardwareConfig) (*HardwareSource, error) {
	log := logging.Named("hardware")

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	h := &HardwareSource{}

	h.imu, h.imuErr = newIMUDevice(cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelRange, cfg.IMUGyroRange, log)
	if h.imuErr != nil {
		log.Warnw("IMU not available, accelerometer and gyroscope disabled", "error", h.imuErr)
	} else {
		log.Infow("IMU initialized", "spi", cfg.IMUSPIDevice, "cs", cfg.IMUCSPin)
	}

	bus, err := i2creg.Open(cfg.LightI2CBus)
	if err != nil {
		h.lightErr = fmt.Errorf("light: open I2C bus %q: %w", cfg.LightI2CBus, err)
	} else {
		h.bus = bus
		h.light, h.lightErr = newLightDevice(bus, cfg.LightI2CAddr)
	}
	if h.lightErr != nil {
		log.Warnw("light sensor not available", "error", h.lightErr)
	} else {
		log.Infof("light sensor initialized at 0x%02X", cfg.LightI2CAddr)
	}

	return h, nil
}

func (h *HardwareSource) Info(kind Kind) (Info, error) {
	if err := checkKind(kind); err != nil {
		return Info{}, err
	}
	switch kind {
	case Accelerometer, Gyroscope:
		if h.imuErr != nil {
			return Info{}, fmt.Errorf("%s: %w (%v)", kind, ErrUnavailable, h.imuErr)
		}
		return Info{Name: "MPU9250 " + kind.Label(), Version: 1, Vendor: "InvenSense"}, nil
	default:
		if h.lightErr != nil {
			return Info{}, fmt.Errorf("%s: %w (%v)", kind, ErrUnavailable, h.lightErr)
		}
		return Info{Name: "BH1750 Ambient Light", Version: 1, Vendor: "ROHM"}, nil
	}
}

func (h *HardwareSource) Subscribe(kind Kind, rate Rate) (Subscription, error) {
	if _, err := h.Info(kind); err != nil {
		return nil, err
	}

	var read readFunc
	switch kind {
	case Accelerometer:
		read = func(time.Time) ([]float64, error) { return h.imu.ReadAcceleration() }
	case Gyroscope:
		read = func(time.Time) ([]float64, error) { return h.imu.ReadRotation() }
	default:
		read = func(time.Time) ([]float64, error) { return h.light.ReadLux() }
	}
	return startPolling(kind, rate, read, logging.Named("hardware")), nil
}

// Close releases the I2C bus.
func (h *HardwareSource) Close() error {
	if h.bus != nil {
		return h.bus.Close()
	}
	return nil
}
