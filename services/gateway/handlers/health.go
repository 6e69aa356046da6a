// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
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
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
)

// healthProbeTimeout bounds the backend reachability check so a hung model
// server cannot stall the health endpoint.
const healthProbeTimeout = 2 * time.Second

// HandleHealth reports gateway liveness plus model backend reachability.
// The endpoint always returns 200; degraded state shows in the body.
func HandleHealth(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
		defer cancel()

		modelOK := env.Model.Healthy(ctx) == nil

		archiveMode := "disabled"
		if env.Archive != nil {
			archiveMode = "weaviate"
		}

		status := "ok"
		if !modelOK {
			status = "degraded"
		}

		c.JSON(http.StatusOK, datatypes.HealthResponse{
			Status:    status,
			Model:     env.Model.Name(),
			ModelOK:   modelOK,
			Archive:   archiveMode,
			Timestamp: time.Now().UTC(),
		})
	}
}
