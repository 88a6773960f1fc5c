// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianVehicle/services/watchdog/datatypes"
	"github.com/AleutianAI/AleutianVehicle/services/watchdog/ioconfig"
	"github.com/AleutianAI/AleutianVehicle/services/watchdog/observability"
)

// GetConfigs returns the currently configured resource overuse records.
func GetConfigs(engine *ioconfig.IoOveruseConfigs) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ConfigsResponse{Configurations: engine.Get()})
	}
}

// UpdateConfigs replaces the configurations of the components named in the
// request body. The batch is all-or-nothing: validation failures return 400
// with the accumulated errors and leave the engine unchanged.
func UpdateConfigs(engine *ioconfig.IoOveruseConfigs, metrics *observability.WatchdogMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateConfigsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Warn("Rejected malformed config update request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		if len(req.Configurations) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "configurations must not be empty"})
			return
		}

		if err := engine.Update(req.Configurations); err != nil {
			slog.Warn("Rejected resource overuse config update", "error", err)
			metrics.RecordUpdate(observability.SourceAPI, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		configured := engine.Get()
		metrics.RecordUpdate(observability.SourceAPI, true)
		metrics.SetConfiguredComponents(len(configured))
		slog.Info("Applied resource overuse config update",
			"records", len(req.Configurations), "configured_components", len(configured))
		c.JSON(http.StatusOK, gin.H{"status": "success", "configured_components": len(configured)})
	}
}

// GetThreshold resolves the threshold and kill eligibility for one package.
//
// Query parameters: package (required), component (required), category
// (optional, defaults to OTHERS), uid_type (optional, defaults to
// APPLICATION).
func GetThreshold(engine *ioconfig.IoOveruseConfigs, metrics *observability.WatchdogMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		packageName := c.Query("package")
		if packageName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "package query parameter is required"})
			return
		}
		component, err := datatypes.ParseComponentType(c.Query("component"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		category, err := datatypes.ParseApplicationCategory(c.Query("category"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		uidType, err := datatypes.ParseUidType(c.Query("uid_type"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		id := datatypes.PackageIdentity{
			PackageName:   packageName,
			UidType:       uidType,
			ComponentType: component,
			AppCategory:   category,
		}
		metrics.RecordThresholdQuery(component.String())
		c.JSON(http.StatusOK, ThresholdResponse{
			PackageName:   packageName,
			ComponentType: component,
			Threshold:     engine.FetchThreshold(id),
			SafeToKill:    engine.IsSafeToKill(id),
		})
	}
}
