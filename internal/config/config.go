// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/go-ini/ini"

	"github.com/relabs-tech/sensorscope/internal/sensors"
)

// Source names accepted by SENSOR_SOURCE.
const (
	SourceMock     = "mock"
	SourceHardware = "hardware"
	SourceMQTT     = "mqtt"
)

// Config holds all application configuration values.
type Config struct {
	// Sensors
	SensorSource string
	InitialMode  sensors.Kind
	SampleRate   sensors.Rate

	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string
	MQTTClientIDConsole  string

	// Topics
	TopicAccel string
	TopicGyro  string
	TopicLight string
	TopicMode  string

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// Light sensor Hardware
	LightI2CBus  string
	LightI2CAddr uint16

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds

	// Logging
	LogLevel  string
	LogFormat string
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal() and Get().
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		SensorSource: SourceMock,
		InitialMode:  sensors.Accelerometer,
		SampleRate:   sensors.RateNormal,

		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDProducer: "sensorscope-producer",
		MQTTClientIDWeb:      "sensorscope-web",
		MQTTClientIDDisplay:  "sensorscope-display",
		MQTTClientIDConsole:  "sensorscope-console",

		TopicAccel: "sensorscope/accelerometer",
		TopicGyro:  "sensorscope/gyroscope",
		TopicLight: "sensorscope/light",
		TopicMode:  "sensorscope/mode",

		IMUSPIDevice: "/dev/spidev0.0",
		IMUCSPin:     "8",

		LightI2CBus:  "",
		LightI2CAddr: 0x23,

		WebServerPort: 8080,

		DisplayI2CBus:         "",
		DisplayUpdateInterval: 200,

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load reads a KEY=VALUE configuration file ('#' starts a comment) on top
// of Default().
func Load(configPath string) (*Config, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		KeyValueDelimiters:         "=",
		SkipUnrecognizableLines:    false,
		AllowPythonMultilineValues: false,
	}, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg := Default()
	for _, key := range file.Section(ini.DefaultSection).Keys() {
		if err := cfg.setValue(key.Name(), key.String()); err != nil {
			return nil, fmt.Errorf("config %s: %w", configPath, err)
		}
	}
	if len(file.Sections()) > 1 {
		return nil, fmt.Errorf("config %s: sections are not supported, got [%s]", configPath, file.Sections()[1].Name())
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Sensors
	case "SENSOR_SOURCE":
		c.SensorSource = value
	case "INITIAL_MODE":
		mode, err := sensors.ParseKind(value)
		if err != nil {
			return fmt.Errorf("invalid INITIAL_MODE: %w", err)
		}
		c.InitialMode = mode
	case "SAMPLE_RATE":
		rate, err := sensors.ParseRate(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLE_RATE: %w", err)
		}
		c.SampleRate = rate

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_ACCEL":
		c.TopicAccel = value
	case "TOPIC_GYRO":
		c.TopicGyro = value
	case "TOPIC_LIGHT":
		c.TopicLight = value
	case "TOPIC_MODE":
		c.TopicMode = value

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	// Light sensor Hardware
	case "LIGHT_I2C_BUS":
		c.LightI2CBus = value
	case "LIGHT_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid LIGHT_I2C_ADDR %q: %w", value, err)
		}
		if addr != 0x23 && addr != 0x5C {
			return fmt.Errorf("LIGHT_I2C_ADDR must be 0x23 or 0x5C, got 0x%02X", addr)
		}
		c.LightI2CAddr = uint16(addr)

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = value
	case "LOG_FORMAT":
		c.LogFormat = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that the combination of values is usable.
func (c *Config) validate() error {
	switch c.SensorSource {
	case SourceMock, SourceHardware, SourceMQTT:
	default:
		return fmt.Errorf("SENSOR_SOURCE must be mock, hardware or mqtt, got %q", c.SensorSource)
	}
	if c.SensorSource == SourceMQTT && c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required when SENSOR_SOURCE=mqtt")
	}
	if !c.InitialMode.Valid() {
		return fmt.Errorf("INITIAL_MODE is required")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive, got %d", c.DisplayUpdateInterval)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// Topics maps each sensor kind to its sample topic.
func (c *Config) Topics() map[sensors.Kind]string {
	return map[sensors.Kind]string{
		sensors.Accelerometer: c.TopicAccel,
		sensors.Gyroscope:     c.TopicGyro,
		sensors.Light:         c.TopicLight,
	}
}

// Hardware returns the wiring of the sensor chips.
func (c *Config) Hardware() sensors.HardwareConfig {
	return sensors.HardwareConfig{
		IMUSPIDevice:  c.IMUSPIDevice,
		IMUCSPin:      c.IMUCSPin,
		IMUAccelRange: c.IMUAccelRange,
		IMUGyroRange:  c.IMUGyroRange,
		LightI2CBus:   c.LightI2CBus,
		LightI2CAddr:  c.LightI2CAddr,
	}
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
