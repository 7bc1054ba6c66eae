// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/sensorscope/internal/app"
	"github.com/relabs-tech/sensorscope/internal/config"
	"github.com/relabs-tech/sensorscope/internal/logging"
)

func main() {
	configPath := flag.String("config", "./sensorscope_config.txt", "path to configuration file")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()
	if err := logging.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()
	log := logging.Named("main")

	log.Infow("starting sensorscope producer (sensors -> MQTT)", "source", cfg.SensorSource, "config", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunProducer(ctx); err != nil {
		log.Errorw("fatal", "error", err)
		logging.Sync()
		os.Exit(1)
	}
}
