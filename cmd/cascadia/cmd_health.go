// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
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
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/CascadiaHealth/CascadiaGate/pkg/ux"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
)

// runHealth prints a styled summary of GET /health.
func runHealth(cmd *cobra.Command, args []string) error {
	client := newGatewayClient(config)

	var health datatypes.HealthResponse
	if err := client.do(cmd.Context(), http.MethodGet, "/health", nil, &health); err != nil {
		ux.Error(fmt.Sprintf("Gateway unreachable at %s", config.GatewayURL))
		return err
	}

	modelIcon := ux.IconSuccess
	if !health.ModelOK {
		modelIcon = ux.IconError
	}

	if health.Status == "ok" {
		ux.Success(fmt.Sprintf("Gateway healthy at %s", config.GatewayURL))
	} else {
		ux.Warning(fmt.Sprintf("Gateway %s at %s", health.Status, config.GatewayURL))
	}
	ux.Info(fmt.Sprintf("%s model backend: %s", modelIcon.Render(), health.Model))
	ux.Info(fmt.Sprintf("%s archive: %s", ux.IconBullet.Render(), health.Archive))
	ux.Muted(fmt.Sprintf("checked at %s", health.Timestamp.Local().Format("2006-01-02 15:04:05")))
	return nil
}
