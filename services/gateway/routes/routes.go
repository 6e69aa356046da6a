// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
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

	"github.com/CascadiaHealth/CascadiaGate/pkg/extensions"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/handlers"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/middleware"
)

// SetupRoutes registers every gateway endpoint. Health and metrics stay
// outside the authenticated group; everything under /v1 passes through
// authentication and per-client rate limiting.
func SetupRoutes(router *gin.Engine, env *handlers.Env, opts extensions.ServiceOptions,
	rateCfg middleware.RateLimitConfig) {

	router.GET("/health", handlers.HandleHealth(env))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(opts.AuthProvider))
	v1.Use(middleware.RateLimitMiddleware(rateCfg))
	{
		v1.POST("/chat", handlers.HandleChat(env))
		v1.GET("/chat/ws", handlers.HandleWebSocketChat(env))

		v1.POST("/documents", handlers.HandleAddDocument(env))
		v1.GET("/documents", handlers.HandleListDocuments(env))

		// Session administration routes
		sessions := v1.Group("/sessions")
		{
			sessions.GET("", handlers.HandleListSessions(env))
			sessions.POST("/clear", handlers.HandleClearSession(env))
		}

		// Tool routes
		tools := v1.Group("/tools")
		{
			tools.POST("/web-search", handlers.HandleWebSearch(env))
			tools.POST("/file-search", handlers.HandleFileSearch(env))
			tools.POST("/browser-action", handlers.HandleBrowserAction(env))
			tools.POST("/browser-action/confirm", handlers.HandleConfirmPlan(env))
			tools.GET("/browser-action/plans", handlers.HandleListPlans(env))
		}
	}
}
