// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianVehicle/services/watchdog/datatypes"
	"github.com/AleutianAI/AleutianVehicle/services/watchdog/ioconfig"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var updateFiles []string // YAML config files to push as one batch

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var configsCmd = &cobra.Command{
	Use:   "configs",
	Short: "Inspect and update resource overuse configurations",
}

var configsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Fetch the currently active configurations",
	RunE:  runConfigsGet,
}

// configsUpdateCmd pushes one or more YAML files as a single update batch.
// The files use the same schema as the on-disk build/latest configs, so an
// OEM can validate a file locally before pushing it to a fleet.
var configsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Push configuration updates from YAML files",
	Long: `Parses each --file as a per-component configuration and applies them as one
all-or-nothing batch. A validation failure on any record leaves the daemon's
active configuration unchanged.

Examples:
  watchdogctl configs update --file vendor.yaml
  watchdogctl configs update --file system.yaml --file vendor.yaml`,
	RunE: runConfigsUpdate,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	configsUpdateCmd.Flags().StringSliceVar(&updateFiles, "file", nil,
		"YAML configuration file to include in the batch (repeatable)")
	configsUpdateCmd.MarkFlagRequired("file")

	configsCmd.AddCommand(configsGetCmd)
	configsCmd.AddCommand(configsUpdateCmd)
	rootCmd.AddCommand(configsCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runConfigsGet(cmd *cobra.Command, args []string) error {
	body, err := httpGet(serverURL + "/v1/resource-overuse/configs")
	if err != nil {
		return err
	}
	return printJSON(body)
}

func runConfigsUpdate(cmd *cobra.Command, args []string) error {
	parser := ioconfig.NewYAMLParser()

	var records []datatypes.ResourceOveruseConfiguration
	for _, file := range updateFiles {
		record, err := parser.Parse(file)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", file, err)
		}
		logger.Debug("Parsed configuration file",
			"file", file, "component", record.ComponentType.String())
		records = append(records, *record)
	}

	payload, err := json.Marshal(map[string]any{"configurations": records})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(serverURL+"/v1/resource-overuse/configs",
		"application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update rejected (%s): %s", resp.Status, string(body))
	}

	fmt.Printf("Applied %d configuration record(s)\n", len(records))
	return printJSON(body)
}

// =============================================================================
// HELPERS
// =============================================================================

func httpGet(url string) ([]byte, error) {
	logger.Debug("GET", "url", url)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed (%s): %s", resp.Status, string(body))
	}
	return body, nil
}

// printJSON re-indents a JSON payload for the terminal.
func printJSON(body []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		// Not JSON; print as-is.
		fmt.Println(string(body))
		return nil
	}
	buf.WriteTo(os.Stdout)
	fmt.Println()
	return nil
}
