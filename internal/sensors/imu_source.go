// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
)

// accelFullScale and gyroFullScale index the MPU9250 range registers
// (0..3) to the full scale value in g and °/s.
var (
	accelFullScale = []float64{2, 4, 8, 16}
	gyroFullScale  = []float64{250, 500, 1000, 2000}
)

// imuDevice is an MPU9250 on SPI, shared by the accelerometer and the
// gyroscope kinds.
type imuDevice struct {
	mu         sync.Mutex
	imu        *mpu9250.MPU9250
	accelRange byte
	gyroRange  byte
}

func newIMUDevice(spiDev, csPin string, accelRange, gyroRange byte, log *zap.SugaredLogger) (*imuDevice, error) {
	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := imu.SetAccelRange(accelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	log.Infof("IMU: accelerometer range set to %d (±%.0fg)", accelRange, accelFullScale[accelRange])

	if err := imu.SetGyroRange(gyroRange); err != nil {
		return nil, fmt.Errorf("IMU: set gyro range: %w", err)
	}
	log.Infof("IMU: gyroscope range set to %d (±%.0f°/s)", gyroRange, gyroFullScale[gyroRange])

	if err := imu.Calibrate(); err != nil {
		log.Warnf("IMU: calibration failed: %v", err)
	} else {
		log.Info("IMU: calibration complete")
	}

	return &imuDevice{imu: imu, accelRange: accelRange, gyroRange: gyroRange}, nil
}

// ReadAcceleration returns x, y, z in m/s².
func (d *imuDevice) ReadAcceleration() ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ax, err := d.imu.GetAccelerationX()
	if err != nil {
		return nil, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := d.imu.GetAccelerationY()
	if err != nil {
		return nil, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := d.imu.GetAccelerationZ()
	if err != nil {
		return nil, fmt.Errorf("IMU accel Z: %w", err)
	}
	return []float64{
		accelToSI(ax, d.accelRange),
		accelToSI(ay, d.accelRange),
		accelToSI(az, d.accelRange),
	}, nil
}

// ReadRotation returns x, y, z in rad/s.
func (d *imuDevice) ReadRotation() ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	gx, err := d.imu.GetRotationX()
	if err != nil {
		return nil, fmt.Errorf("IMU gyro X: %w", err)
	}
	gy, err := d.imu.GetRotationY()
	if err != nil {
		return nil, fmt.Errorf("IMU gyro Y: %w", err)
	}
	gz, err := d.imu.GetRotationZ()
	if err != nil {
		return nil, fmt.Errorf("IMU gyro Z: %w", err)
	}
	return []float64{
		gyroToSI(gx, d.gyroRange),
		gyroToSI(gy, d.gyroRange),
		gyroToSI(gz, d.gyroRange),
	}, nil
}

// accelToSI converts a raw 16 bit reading to m/s².
func accelToSI(raw int16, rangeSel byte) float64 {
	return float64(raw) / 32768 * accelFullScale[rangeSel] * standardGravity
}

// gyroToSI converts a raw 16 bit reading to rad/s.
func gyroToSI(raw int16, rangeSel byte) float64 {
	return float64(raw) / 32768 * gyroFullScale[rangeSel] * math.Pi / 180
}
