// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
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

	"github.com/CormorantAI/CormorantFOSS/services/investigation/engine"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/handlers"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/querycache"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/store"
)

func SetupRoutes(router *gin.Engine, orch *engine.Orchestrator, recordStore *store.Store,
	cache *querycache.QueryCache) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		investigations := v1.Group("/investigations")
		{
			investigations.POST("", handlers.RunInvestigation(orch))
			investigations.GET("", handlers.ListInvestigations(recordStore))
			investigations.GET("/:id", handlers.GetInvestigation(recordStore))
		}
		v1.GET("/cache/stats", handlers.CacheStats(cache))
	}
}
