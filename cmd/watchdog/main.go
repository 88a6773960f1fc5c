// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command watchdog starts the AleutianVehicle watchdog HTTP server.
//
// This is the main entry point for the vehicle watchdog service. It reads
// configuration from environment variables, loads the resource overuse
// configuration files, and starts the admin API server.
//
// # Environment Variables
//
//   - WATCHDOG_PORT: HTTP server port (default: 12220)
//   - WATCHDOG_BUILD_CONFIG_DIR: build config directory (default: /etc/carwatchdog)
//   - WATCHDOG_LATEST_CONFIG_DIR: latest config directory (default: /var/lib/carwatchdog)
//   - WATCHDOG_WATCH_LATEST: "true" enables the latest-config file watcher
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: aleutian-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o watchdog ./cmd/watchdog
//
//	# Run
//	./watchdog
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/AleutianAI/AleutianVehicle/services/watchdog"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := watchdog.Config{
		Port:            getEnvInt("WATCHDOG_PORT", 12220),
		BuildConfigDir:  getEnvString("WATCHDOG_BUILD_CONFIG_DIR", "/etc/carwatchdog"),
		LatestConfigDir: getEnvString("WATCHDOG_LATEST_CONFIG_DIR", "/var/lib/carwatchdog"),
		WatchLatest:     getEnvBool("WATCHDOG_WATCH_LATEST", false),
		OTelEndpoint:    getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "aleutian-otel-collector:4317"),
	}

	slog.Info("Starting watchdog",
		"port", cfg.Port,
		"build_config_dir", cfg.BuildConfigDir,
		"latest_config_dir", cfg.LatestConfigDir,
		"watch_latest", cfg.WatchLatest,
	)

	svc, err := watchdog.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create watchdog: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Watchdog error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
