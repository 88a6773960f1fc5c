// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the watchdog admin HTTP handlers: fetching and
// updating resource overuse configurations and resolving thresholds for
// diagnostics.
package handlers

import "github.com/AleutianAI/AleutianVehicle/services/watchdog/datatypes"

// UpdateConfigsRequest is the POST /v1/resource-overuse/configs payload: one
// record per component to replace.
type UpdateConfigsRequest struct {
	Configurations []datatypes.ResourceOveruseConfiguration `json:"configurations" binding:"required"`
}

// ConfigsResponse is the GET /v1/resource-overuse/configs payload.
type ConfigsResponse struct {
	Configurations []datatypes.ResourceOveruseConfiguration `json:"configurations"`
}

// ThresholdResponse is the GET /v1/resource-overuse/threshold payload: the
// resolved threshold and kill eligibility for one package.
type ThresholdResponse struct {
	PackageName   string                  `json:"package_name"`
	ComponentType datatypes.ComponentType `json:"component_type"`
	Threshold     datatypes.PerStateBytes `json:"threshold"`
	SafeToKill    bool                    `json:"safe_to_kill"`
}
