// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command watchdogctl is the operator CLI for the watchdog admin API.
//
// # Usage
//
//	watchdogctl configs get
//	watchdogctl configs update --file vendor.yaml
//	watchdogctl threshold --package com.vendor.maps --component VENDOR --category MAPS
package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianVehicle/pkg/logging"
)

// serverURL is the base URL of the watchdog daemon's admin API.
var serverURL string

// verbose enables debug-level diagnostics on stderr.
var verbose bool

// logger is shared by all subcommands; initialized in PersistentPreRun.
var logger = logging.Default()

var rootCmd = &cobra.Command{
	Use:   "watchdogctl",
	Short: "Operate the AleutianVehicle watchdog service",
	Long: `watchdogctl talks to a running watchdog daemon over its admin HTTP API.

It can fetch the currently active resource overuse configurations, push
configuration updates from YAML files, and resolve the effective disk write
threshold for a package.`,
}

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:12220",
		"Base URL of the watchdog daemon")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := logging.LevelInfo
		if verbose {
			level = logging.LevelDebug
		}
		if l, err := logging.New(logging.Config{Level: level, Service: "watchdogctl"}); err == nil {
			logger = l
		}
	}
}
