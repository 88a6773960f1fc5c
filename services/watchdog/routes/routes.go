// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianVehicle/services/watchdog/handlers"
	"github.com/AleutianAI/AleutianVehicle/services/watchdog/ioconfig"
	"github.com/AleutianAI/AleutianVehicle/services/watchdog/observability"
)

func SetupRoutes(router *gin.Engine, engine *ioconfig.IoOveruseConfigs,
	metrics *observability.WatchdogMetrics) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		overuse := v1.Group("/resource-overuse")
		{
			overuse.GET("/configs", handlers.GetConfigs(engine))
			overuse.POST("/configs", handlers.UpdateConfigs(engine, metrics))
			overuse.GET("/threshold", handlers.GetThreshold(engine, metrics))
		}
	}
}
