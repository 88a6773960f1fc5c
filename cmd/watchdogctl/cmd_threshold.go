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
	"net/url"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	thresholdPackage   string // Package name to resolve
	thresholdComponent string // Component type (SYSTEM, VENDOR, THIRD_PARTY)
	thresholdCategory  string // Application category (MAPS, MEDIA, OTHERS)
	thresholdUidType   string // Uid type (APPLICATION, NATIVE)
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var thresholdCmd = &cobra.Command{
	Use:   "threshold",
	Short: "Resolve the effective disk write threshold for a package",
	Long: `Asks the daemon which per-state write threshold applies to a package, and
whether the package may be terminated on overuse.

Examples:
  watchdogctl threshold --package com.vendor.maps --component VENDOR --category MAPS
  watchdogctl threshold --package watchdogd --component SYSTEM --uid-type NATIVE`,
	RunE: runThreshold,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	thresholdCmd.Flags().StringVar(&thresholdPackage, "package", "", "Package name (required)")
	thresholdCmd.Flags().StringVar(&thresholdComponent, "component", "", "Component type (required)")
	thresholdCmd.Flags().StringVar(&thresholdCategory, "category", "", "Application category")
	thresholdCmd.Flags().StringVar(&thresholdUidType, "uid-type", "", "Uid type")
	thresholdCmd.MarkFlagRequired("package")
	thresholdCmd.MarkFlagRequired("component")

	rootCmd.AddCommand(thresholdCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runThreshold(cmd *cobra.Command, args []string) error {
	query := url.Values{}
	query.Set("package", thresholdPackage)
	query.Set("component", thresholdComponent)
	if thresholdCategory != "" {
		query.Set("category", thresholdCategory)
	}
	if thresholdUidType != "" {
		query.Set("uid_type", thresholdUidType)
	}

	body, err := httpGet(serverURL + "/v1/resource-overuse/threshold?" + query.Encode())
	if err != nil {
		return err
	}
	return printJSON(body)
}
