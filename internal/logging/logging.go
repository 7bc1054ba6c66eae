// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package logging wraps the zap logger shared by every sensorscope binary.
package logging

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base   = zap.NewNop()
	baseMu sync.RWMutex
)

// Init builds the process logger. level is a zap level name ("debug",
// "info", ...), format is "console" or "json".
func Init(level, format string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logging: invalid level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return fmt.Errorf("logging: unknown format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return fmt.Errorf("logging: build: %w", err)
	}

	baseMu.Lock()
	base = logger
	baseMu.Unlock()
	return nil
}

// InitWriter sends plain console-encoded entries to w, for front ends that
// own the terminal.
func InitWriter(level string, w io.Writer) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logging: invalid level %q: %w", level, err)
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), lvl)

	baseMu.Lock()
	base = zap.New(core)
	baseMu.Unlock()
	return nil
}

// Set replaces the process logger, mostly for tests (zaptest, zap.NewNop).
func Set(logger *zap.Logger) {
	baseMu.Lock()
	base = logger
	baseMu.Unlock()
}

// Named returns a sugared logger scoped to a component.
func Named(component string) *zap.SugaredLogger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return base.Named(component).Sugar()
}

// Sync flushes buffered entries; call it before exit.
func Sync() {
	baseMu.RLock()
	defer baseMu.RUnlock()
	_ = base.Sync()
}
